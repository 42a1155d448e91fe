package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
)

// sitemapURLSet is the minimal subset of the sitemaps.org schema this
// engine needs: a flat list of <url><loc> entries. Sitemap index files
// (<sitemapindex>) are not expanded; operators point discovery.sitemap_url
// at a leaf sitemap.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// sitemap implements discovery.Engine for discovery.type = "sitemap":
// fetch the declared sitemap_url once, filter entries by document_patterns,
// and enqueue each as a FetchJob. Stdlib encoding/xml, matching spec.md
// §4.5's instruction to parse sitemaps without a third-party XML library.
type sitemap struct {
	source string
	cfg    config.ScraperConfig
	deps   Deps
	docRe  []*patternMatcher
}

func newSitemap(source string, cfg config.ScraperConfig, deps Deps) (*sitemap, error) {
	m, err := newPatternMatchers(cfg.Discovery.DocumentPatterns)
	if err != nil {
		return nil, fmt.Errorf("discovery: source %q: %w", source, err)
	}
	return &sitemap{source: source, cfg: cfg, deps: deps, docRe: m}, nil
}

func (e *sitemap) Run(ctx context.Context) error {
	st, err := e.deps.Catalog.LoadScrapeState(ctx, e.source)
	if err != nil {
		return fmt.Errorf("discovery: load scrape state for %q: %w", e.source, err)
	}
	if st.Degraded {
		e.deps.Logger.Warn("discovery paused: source degraded", "source", e.source)
		return nil
	}

	host := hostOf(e.cfg.Discovery.SitemapURL)
	permit, err := e.deps.Scheduler.Acquire(ctx, host)
	if err != nil {
		return fmt.Errorf("discovery: acquire permit for %s: %w", host, err)
	}
	defer permit.Release()

	resp, err := e.deps.Transport.Fetch(ctx, transport.Request{URL: e.cfg.Discovery.SitemapURL, Timeout: fetchTimeout})
	if err != nil {
		_ = e.deps.Scheduler.ReportOutcome(ctx, host, classifyOutcome(err))
		return err
	}
	defer resp.Body.Close()

	if retryAfter, polite := politenessSignal(resp); polite {
		_ = e.deps.Scheduler.ReportOutcome(ctx, host, schedulerRetryableFailure)
		if retryAfter > 0 {
			_ = e.deps.Scheduler.ReportRetryAfter(ctx, host, retryAfter)
		}
		return types.NewPipelineError(types.ErrKindRemotePoliteness, "discovery.sitemap", fmt.Errorf("status %d", resp.StatusCode))
	}
	_ = e.deps.Scheduler.ReportOutcome(ctx, host, schedulerSuccess)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return types.NewPipelineError(types.ErrKindTransientNetwork, "discovery.sitemap", err)
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return types.NewPipelineError(types.ErrKindMalformedContent, "discovery.sitemap", err)
	}

	for _, u := range set.URLs {
		if u.Loc == "" || !matchesAny(e.docRe, u.Loc) {
			continue
		}
		if _, seen := st.Visited[u.Loc]; seen {
			continue
		}
		if err := e.deps.Catalog.EnqueueFetchJob(ctx, &types.FetchJob{Source: e.source, URL: u.Loc, ExpectedMime: expectedMimeForURL(u.Loc)}); err != nil {
			return fmt.Errorf("discovery: enqueue fetch job for %s: %w", u.Loc, err)
		}
		st.Visited[u.Loc] = time.Now()
	}
	return e.deps.Catalog.SaveScrapeState(ctx, st)
}
