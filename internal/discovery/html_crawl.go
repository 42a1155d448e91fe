package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
)

const fetchTimeout = 30 * time.Second

// htmlCrawl implements discovery.Engine for discovery.type = "html_crawl":
// a frontier of (URL, depth) pairs drained FIFO, per spec.md §4.5's four
// steps (acquire permit, fetch, parse+extract, mark visited).
type htmlCrawl struct {
	source   string
	cfg      config.ScraperConfig
	deps     Deps
	docRe    []*patternMatcher
	maxDepth int
}

func newHTMLCrawl(source string, cfg config.ScraperConfig, deps Deps) (*htmlCrawl, error) {
	m, err := newPatternMatchers(cfg.Discovery.DocumentPatterns)
	if err != nil {
		return nil, fmt.Errorf("discovery: source %q: %w", source, err)
	}
	return &htmlCrawl{source: source, cfg: cfg, deps: deps, docRe: m, maxDepth: cfg.Discovery.MaxDepth}, nil
}

func (e *htmlCrawl) matchesDocument(rawURL string) bool {
	return matchesAny(e.docRe, rawURL)
}

// Run drains the frontier, persisting ScrapeState after every dequeue so a
// killed worker resumes from the last checkpoint (spec.md §8 scenario 4).
func (e *htmlCrawl) Run(ctx context.Context) error {
	st, err := e.deps.Catalog.LoadScrapeState(ctx, e.source)
	if err != nil {
		return fmt.Errorf("discovery: load scrape state for %q: %w", e.source, err)
	}
	if st.Degraded {
		e.deps.Logger.Warn("discovery paused: source degraded", "source", e.source)
		return nil
	}
	if len(st.Frontier) == 0 && len(st.Visited) == 0 {
		for _, p := range e.cfg.Discovery.StartPaths {
			st.Frontier = append(st.Frontier, types.FrontierEntry{URL: resolveURL(e.cfg.Discovery.BaseURL, p), Depth: 0})
		}
		if len(e.cfg.Discovery.StartPaths) == 0 {
			st.Frontier = append(st.Frontier, types.FrontierEntry{URL: e.cfg.Discovery.BaseURL, Depth: 0})
		}
	}

	discovered := 0
	for len(st.Frontier) > 0 {
		if e.deps.MaxURLs > 0 && discovered >= e.deps.MaxURLs {
			break
		}
		select {
		case <-ctx.Done():
			_ = e.deps.Catalog.SaveScrapeState(ctx, st)
			return ctx.Err()
		default:
		}

		entry := st.Frontier[0]
		st.Frontier = st.Frontier[1:]
		if _, seen := st.Visited[entry.URL]; seen {
			continue
		}

		n, err := e.visit(ctx, entry, st)
		if err != nil {
			var pe *types.PipelineError
			if errors.As(err, &pe) && pe.Kind == types.ErrKindAuthOrBlocked {
				st.Degraded = true
				st.LastError = err.Error()
				_ = e.deps.Catalog.SaveScrapeState(ctx, st)
				e.deps.Logger.Warn("discovery: source marked degraded", "source", e.source, "url", entry.URL, "error", err)
				return nil
			}
			st.LastError = err.Error()
			e.deps.Logger.Warn("discovery: visit failed", "source", e.source, "url", entry.URL, "error", err)
		} else {
			discovered += n
			now := time.Now()
			st.LastSuccessAt = &now
		}
		st.Visited[entry.URL] = time.Now()

		if err := e.deps.Catalog.SaveScrapeState(ctx, st); err != nil {
			return fmt.Errorf("discovery: save scrape state for %q: %w", e.source, err)
		}
	}
	return nil
}

// visit fetches one frontier URL and extracts document links (emitted as
// FetchJob rows), pagination links (enqueued at the same depth), and,
// within MaxDepth, further intra-site links. Returns the count of
// document URLs newly enqueued.
func (e *htmlCrawl) visit(ctx context.Context, entry types.FrontierEntry, st *types.ScrapeState) (int, error) {
	host := hostOf(entry.URL)
	permit, err := e.deps.Scheduler.Acquire(ctx, host)
	if err != nil {
		return 0, fmt.Errorf("discovery: acquire permit for %s: %w", host, err)
	}
	defer permit.Release()

	resp, err := e.deps.Transport.Fetch(ctx, transport.Request{
		URL:        entry.URL,
		Timeout:    fetchTimeout,
		UseBrowser: e.cfg.Fetch.UseBrowser,
	})
	if err != nil {
		_ = e.deps.Scheduler.ReportOutcome(ctx, host, classifyOutcome(err))
		return 0, err
	}
	defer resp.Body.Close()

	if retryAfter, polite := politenessSignal(resp); polite {
		_ = e.deps.Scheduler.ReportOutcome(ctx, host, scheduler.OutcomeRetryableFailure)
		if retryAfter > 0 {
			_ = e.deps.Scheduler.ReportRetryAfter(ctx, host, retryAfter)
		}
		return 0, types.NewPipelineError(types.ErrKindRemotePoliteness, "discovery.visit", fmt.Errorf("status %d", resp.StatusCode))
	}
	_ = e.deps.Scheduler.ReportOutcome(ctx, host, scheduler.OutcomeSuccess)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return 0, types.NewPipelineError(types.ErrKindTransientNetwork, "discovery.visit", err)
	}

	docHrefs, err := extractHrefs(body, e.cfg.Discovery.DocumentLinks, entry.URL)
	if err != nil {
		return 0, fmt.Errorf("discovery: extract document links from %s: %w", entry.URL, err)
	}
	n := 0
	for _, href := range docHrefs {
		if !e.matchesDocument(href) {
			continue
		}
		if err := e.deps.Catalog.EnqueueFetchJob(ctx, &types.FetchJob{Source: e.source, URL: href, ExpectedMime: expectedMimeForURL(href)}); err != nil {
			return n, fmt.Errorf("discovery: enqueue fetch job for %s: %w", href, err)
		}
		n++
	}

	nextHrefs, err := extractHrefs(body, e.cfg.Discovery.Pagination.NextSelectors, entry.URL)
	if err != nil {
		return n, fmt.Errorf("discovery: extract pagination links from %s: %w", entry.URL, err)
	}
	for _, href := range nextHrefs {
		if _, seen := st.Visited[href]; !seen {
			st.Frontier = append(st.Frontier, types.FrontierEntry{URL: href, Depth: entry.Depth})
		}
	}

	if e.maxDepth > 0 && entry.Depth < e.maxDepth {
		intraHrefs, err := extractHrefs(body, []string{"a[href]"}, entry.URL)
		if err == nil {
			for _, href := range intraHrefs {
				if sameSite(href, e.cfg.Discovery.BaseURL) {
					if _, seen := st.Visited[href]; !seen {
						st.Frontier = append(st.Frontier, types.FrontierEntry{URL: href, Depth: entry.Depth + 1})
					}
				}
			}
		}
	}

	return n, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func sameSite(candidate, base string) bool {
	return hostOf(candidate) == hostOf(base)
}

// politenessSignal reports whether resp's status is a RemotePoliteness
// signal (429 or 503) and, if a Retry-After header is present, how long
// the scheduler must wait before the host's next permit (spec.md §8's
// "429 with Retry-After=N delays next-permit by ≥ N").
func politenessSignal(resp *transport.Response) (retryAfter time.Duration, polite bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, true
}

// classifyOutcome maps a transport error (already an ErrKind-tagged
// PipelineError, per internal/transport's Selector) to a scheduler outcome.
func classifyOutcome(err error) scheduler.Outcome {
	if err == nil {
		return scheduler.OutcomeSuccess
	}
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case types.ErrKindRemotePoliteness, types.ErrKindTransientNetwork:
			return scheduler.OutcomeRetryableFailure
		}
	}
	return scheduler.OutcomeNeutral
}
