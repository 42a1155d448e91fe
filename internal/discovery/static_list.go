package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/types"
)

// staticList implements discovery.Engine for discovery.type = "static_list":
// the config names the document URLs directly, so there is no frontier, no
// transport fetch, and no scheduler involvement — just an idempotent
// enqueue of every not-yet-visited entry.
type staticList struct {
	source string
	cfg    config.ScraperConfig
	deps   Deps
}

func newStaticList(source string, cfg config.ScraperConfig, deps Deps) (*staticList, error) {
	return &staticList{source: source, cfg: cfg, deps: deps}, nil
}

func (e *staticList) Run(ctx context.Context) error {
	st, err := e.deps.Catalog.LoadScrapeState(ctx, e.source)
	if err != nil {
		return fmt.Errorf("discovery: load scrape state for %q: %w", e.source, err)
	}
	for _, u := range e.cfg.Discovery.ListItems {
		if _, seen := st.Visited[u]; seen {
			continue
		}
		if err := e.deps.Catalog.EnqueueFetchJob(ctx, &types.FetchJob{Source: e.source, URL: u, ExpectedMime: expectedMimeForURL(u)}); err != nil {
			return fmt.Errorf("discovery: enqueue fetch job for %s: %w", u, err)
		}
		st.Visited[u] = time.Now()
	}
	now := time.Now()
	st.LastSuccessAt = &now
	return e.deps.Catalog.SaveScrapeState(ctx, st)
}
