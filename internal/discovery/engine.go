// Package discovery implements the per-source frontier/pagination/
// document-link extraction state machine (spec.md §4.5): it turns a
// declarative ScraperConfig into a stream of FetchJob rows persisted to
// the catalog's job queue, resuming from a persisted ScrapeState across
// restarts.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/transport"
)

// Engine crawls one source until its frontier is drained, a configured
// limit is reached, or ctx is cancelled (spec.md §4.5's termination rule).
type Engine interface {
	Run(ctx context.Context) error
}

// Deps bundles the collaborators every discovery.Engine implementation
// needs: the catalog (for ScrapeState checkpoints and FetchJob emission),
// the scheduler (host politeness), the transport (HTTP/browser fetch), and
// a logger.
type Deps struct {
	Catalog   catalog.Catalog
	Scheduler *scheduler.Scheduler
	Transport transport.Transport
	Logger    *slog.Logger
	MaxURLs   int // 0 = unbounded (spec.md §4.5's "global limit reached")
}

// New builds the Engine implementation for source's declared
// discovery.type.
func New(source string, cfg config.ScraperConfig, deps Deps) (Engine, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	switch cfg.Discovery.Type {
	case "html_crawl":
		return newHTMLCrawl(source, cfg, deps)
	case "sitemap":
		return newSitemap(source, cfg, deps)
	case "api":
		return newAPIDiscovery(source, cfg, deps)
	case "static_list":
		return newStaticList(source, cfg, deps)
	default:
		return nil, fmt.Errorf("discovery: unknown discovery.type %q for source %q", cfg.Discovery.Type, source)
	}
}
