package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/transport"
)

// Coordinator runs one Engine per configured source concurrently, bounded
// by a worker limit, the same errgroup.SetLimit fan-out shape
// SPEC_FULL.md's concurrency model describes for the I/O worker pool. Each
// source's frontier is independent; the catalog's job queue (not an
// in-memory channel) is the backpressure point downstream fetch workers
// drain from, so discovery itself only needs to bound how many sources
// crawl at once.
type Coordinator struct {
	cat     catalog.Catalog
	sched   *scheduler.Scheduler
	xport   transport.Transport
	logger  *slog.Logger
	workers int
}

// NewCoordinator builds a Coordinator. workers bounds how many sources are
// discovered concurrently; 0 falls back to 4.
func NewCoordinator(cat catalog.Catalog, sched *scheduler.Scheduler, xport transport.Transport, logger *slog.Logger, workers int) *Coordinator {
	if workers <= 0 {
		workers = 4
	}
	return &Coordinator{cat: cat, sched: sched, xport: xport, logger: logger, workers: workers}
}

// Run drives every named scraper's Engine to completion (or ctx
// cancellation). A single source's discovery failure does not stop the
// others — errors
// are logged and Run only returns an error for engine-construction
// failures (a ConfigurationError, fatal at startup per spec.md §7).
func (c *Coordinator) Run(ctx context.Context, scrapers map[string]config.ScraperConfig) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for name, cfg := range scrapers {
		name, cfg := name, cfg
		engine, err := New(name, cfg, Deps{Catalog: c.cat, Scheduler: c.sched, Transport: c.xport, Logger: c.logger})
		if err != nil {
			return fmt.Errorf("discovery: build engine for %q: %w", name, err)
		}
		g.Go(func() error {
			if err := engine.Run(ctx); err != nil {
				c.logger.Error("discovery: source run failed", "source", name, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
