package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
)

// apiListing is the generic shape this engine accepts from
// discovery.api_endpoint: either a bare JSON array of URL strings, or an
// array of objects carrying at least a "url" field. Concrete per-agency
// API quirks are out of core scope (spec.md treats vendor-specific
// bindings as peripheral); the dispatcher here handles the common
// FOIA-portal-API shape and nothing bespoke.
type apiListing struct {
	Items []apiItem
}

type apiItem struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (l *apiListing) UnmarshalJSON(b []byte) error {
	var asObjects []apiItem
	if err := json.Unmarshal(b, &asObjects); err == nil {
		l.Items = asObjects
		return nil
	}
	var asStrings []string
	if err := json.Unmarshal(b, &asStrings); err != nil {
		return err
	}
	l.Items = make([]apiItem, len(asStrings))
	for i, s := range asStrings {
		l.Items[i] = apiItem{URL: s}
	}
	return nil
}

// apiDiscovery implements discovery.Engine for discovery.type = "api": one
// GET against api_endpoint, filtered by document_patterns if any are
// declared (an empty pattern set accepts every listed URL, unlike
// html_crawl, since an API endpoint is already scoped to documents by
// construction).
type apiDiscovery struct {
	source string
	cfg    config.ScraperConfig
	deps   Deps
	docRe  []*patternMatcher
}

func newAPIDiscovery(source string, cfg config.ScraperConfig, deps Deps) (*apiDiscovery, error) {
	m, err := newPatternMatchers(cfg.Discovery.DocumentPatterns)
	if err != nil {
		return nil, fmt.Errorf("discovery: source %q: %w", source, err)
	}
	return &apiDiscovery{source: source, cfg: cfg, deps: deps, docRe: m}, nil
}

func (e *apiDiscovery) Run(ctx context.Context) error {
	st, err := e.deps.Catalog.LoadScrapeState(ctx, e.source)
	if err != nil {
		return fmt.Errorf("discovery: load scrape state for %q: %w", e.source, err)
	}
	if st.Degraded {
		return nil
	}

	host := hostOf(e.cfg.Discovery.APIEndpoint)
	permit, err := e.deps.Scheduler.Acquire(ctx, host)
	if err != nil {
		return fmt.Errorf("discovery: acquire permit for %s: %w", host, err)
	}
	defer permit.Release()

	resp, err := e.deps.Transport.Fetch(ctx, transport.Request{
		URL:     e.cfg.Discovery.APIEndpoint,
		Timeout: fetchTimeout,
		Header:  map[string][]string{"Accept": {"application/json"}},
	})
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
		return types.NewPipelineError(types.ErrKindRemotePoliteness, "discovery.api", fmt.Errorf("status %d", resp.StatusCode))
	}
	_ = e.deps.Scheduler.ReportOutcome(ctx, host, schedulerSuccess)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return types.NewPipelineError(types.ErrKindTransientNetwork, "discovery.api", err)
	}

	var listing apiListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return types.NewPipelineError(types.ErrKindMalformedContent, "discovery.api", err)
	}

	for _, item := range listing.Items {
		if item.URL == "" {
			continue
		}
		if len(e.docRe) > 0 && !matchesAny(e.docRe, item.URL) {
			continue
		}
		if _, seen := st.Visited[item.URL]; seen {
			continue
		}
		if err := e.deps.Catalog.EnqueueFetchJob(ctx, &types.FetchJob{Source: e.source, URL: item.URL, ExpectedMime: expectedMimeForURL(item.URL)}); err != nil {
			return fmt.Errorf("discovery: enqueue fetch job for %s: %w", item.URL, err)
		}
		st.Visited[item.URL] = time.Now()
	}
	return e.deps.Catalog.SaveScrapeState(ctx, st)
}
