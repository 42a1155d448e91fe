// Command foiacquire runs the acquisition pipeline described by
// SPEC_FULL.md: discovery, fetch, page decomposition, analysis dispatch,
// archive provenance checks, and service heartbeats, all driven from one
// declarative config file (spec.md §6). The CLI itself is peripheral to
// the pipeline's semantics (spec.md §1) — it exists to wire the
// components together and start/stop them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/foiacquire/foiacquire/internal/analysis"
	"github.com/foiacquire/foiacquire/internal/archive"
	"github.com/foiacquire/foiacquire/internal/cas"
	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/discovery"
	"github.com/foiacquire/foiacquire/internal/fetchpipe"
	"github.com/foiacquire/foiacquire/internal/logging"
	"github.com/foiacquire/foiacquire/internal/pages"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/status"
	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
	"github.com/foiacquire/foiacquire/internal/workers"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "foiacquire",
	Short: "foiacquire acquires, catalogs, and analyzes public records",
	Long:  "A document acquisition pipeline: discovers sources, fetches and deduplicates content, decomposes paginated artifacts, dispatches analysis backends, and tracks archive provenance.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start discovery, fetch, and analysis workers against the configured sources",
	RunE:  runPipeline,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "foiacquire.json", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	cat, err := catalog.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	xport, err := buildTransport(cfg)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	sched := scheduler.New(scheduler.NewLocalStore(), scheduler.Config{})

	store := cas.New(filepath.Join(cfg.Target, "documents"))
	decomposer := pages.NewDecomposer(cat)

	pipeline := &fetchpipe.Pipeline{
		Catalog:   cat,
		Scheduler: sched,
		Transport: xport,
		CAS:       store,
		Decompose: decomposer.Decompose,
	}

	fetchStatus := status.NewPublisher(cat, "fetch_worker", hostname())
	discoveryStatus := status.NewPublisher(cat, "discovery_worker", hostname())
	analysisStatus := status.NewPublisher(cat, "analysis_worker", hostname())

	reaper := status.NewLeaseReaper(cat)

	coordinator := discovery.NewCoordinator(cat, sched, xport, logger, cfg.IOWorkers)

	dispatcher := analysis.NewDispatcher(cat, int64(cfg.CPUWorkers))
	analysisPool := &workers.AnalysisPool{
		Catalog:    cat,
		Dispatcher: dispatcher,
		Backends:   map[string]analysis.Backend{}, // operator-wired; none ship by default
		Publisher:  analysisStatus,
		Logger:     logger,
	}

	fetchPool := &workers.FetchPool{
		Catalog:   cat,
		Pipeline:  pipeline,
		Publisher: fetchStatus,
		Logger:    logger,
	}

	archiveChecker := archive.NewChecker(cat, &archive.Wayback{Transport: xport})

	go fetchStatus.Run(ctx)
	go discoveryStatus.Run(ctx)
	go analysisStatus.Run(ctx)
	go reaper.Run(ctx)
	go fetchPool.Run(ctx, cfg.IOWorkers, "fetch")
	go analysisPool.Run(ctx, cfg.CPUWorkers, "analysis")
	go runArchiveChecksPeriodically(ctx, archiveChecker, logger)

	discoveryStatus.SetState(types.ServiceRunning)
	if err := coordinator.Run(ctx, cfg.Scrapers); err != nil {
		logger.Error("discovery coordinator exited with error", "error", err)
	}

	<-ctx.Done()
	logger.Info("foiacquire: shutting down")
	return nil
}

func buildTransport(cfg *config.Config) (transport.Transport, error) {
	var direct transport.Transport = transport.NewDirect(nil)
	if cfg.DisableDirect {
		direct = nil
	}

	var socks transport.Transport
	if cfg.SocksProxy != "" {
		s, err := transport.NewSocks(cfg.SocksProxy)
		if err != nil {
			return nil, fmt.Errorf("socks proxy: %w", err)
		}
		socks = s
	}

	var browser transport.Transport
	if len(cfg.BrowserURLs) > 0 {
		pool, err := transport.NewBrowserPool(cfg.BrowserURLs, transport.PolicyPerDomainSticky)
		if err != nil {
			return nil, fmt.Errorf("browser pool: %w", err)
		}
		browser = transport.NewBrowser(pool)
	}

	return transport.NewSelector(direct, socks, browser), nil
}

// runArchiveChecksPeriodically sweeps due archive checks on a ticker
// (spec.md §4.9 runs as a background pass, not inline with fetch).
func runArchiveChecksPeriodically(ctx context.Context, checker *archive.Checker, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := checker.Run(ctx, 50); err != nil {
				logger.Warn("archive check sweep failed", "error", err)
			}
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
