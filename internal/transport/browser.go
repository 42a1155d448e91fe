package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// PoolPolicy selects which browser endpoint serves the next fetch.
type PoolPolicy string

const (
	PolicyRoundRobin      PoolPolicy = "round_robin"
	PolicyRandom          PoolPolicy = "random"
	PolicyPerDomainSticky PoolPolicy = "per_domain_sticky"
)

// endpointSelector picks an index into a fixed slice of endpoints.
type endpointSelector interface {
	next(host string, n int) int
}

type roundRobinSelector struct{ counter uint64 }

func (s *roundRobinSelector) next(_ string, n int) int {
	s.counter++
	return int(s.counter-1) % n
}

type randomSelector struct{ src func() int }

func (s *randomSelector) next(_ string, n int) int {
	return s.src() % n
}

// stickySelector hashes the host so repeated fetches for the same domain
// land on the same browser instance (useful when a source's auth state or
// cookies live in a specific browser context).
type stickySelector struct{}

func (stickySelector) next(host string, n int) int {
	var h uint32
	for i := 0; i < len(host); i++ {
		h = h*31 + uint32(host[i])
	}
	return int(h) % n
}

func newSelector(policy PoolPolicy, randSrc func() int) endpointSelector {
	switch policy {
	case PolicyRandom:
		return &randomSelector{src: randSrc}
	case PolicyPerDomainSticky:
		return stickySelector{}
	default:
		return &roundRobinSelector{}
	}
}

// BrowserPool load-balances fetches across one or more remote-debugging
// endpoints (spec.md §4.4's "browser pool... load-balanced by a declared
// policy"), connecting to each lazily and reusing the connection, the way
// theRebelliousNerd-codenerd's SessionManager keeps one *rod.Browser alive
// per controlURL rather than reconnecting per page.
type BrowserPool struct {
	endpoints []string
	browsers  []*rod.Browser
	policy    endpointSelector
}

// NewBrowserPool connects to each debugger URL in endpoints up front.
func NewBrowserPool(endpoints []string, policy PoolPolicy) (*BrowserPool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("transport: browser pool requires at least one endpoint")
	}
	pool := &BrowserPool{
		endpoints: endpoints,
		browsers:  make([]*rod.Browser, len(endpoints)),
		policy:    newSelector(policy, pseudoRandomInt),
	}
	for i, ep := range endpoints {
		b := rod.New().ControlURL(ep)
		if err := b.Connect(); err != nil {
			pool.Close()
			return nil, fmt.Errorf("transport: connect browser endpoint %s: %w", ep, err)
		}
		pool.browsers[i] = b
	}
	return pool, nil
}

// Close disconnects every endpoint in the pool.
func (p *BrowserPool) Close() error {
	var firstErr error
	for _, b := range p.browsers {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *BrowserPool) pick(host string) *rod.Browser {
	idx := p.policy.next(host, len(p.browsers))
	return p.browsers[idx]
}

// Browser fetches a URL by navigating a pooled browser page to it and
// capturing the resulting document, the channel spec.md §4.4 selects for
// challenge-protected sources.
type Browser struct {
	pool *BrowserPool
}

// NewBrowser wraps an already-connected pool.
func NewBrowser(pool *BrowserPool) *Browser {
	return &Browser{pool: pool}
}

func (t *Browser) Fetch(ctx context.Context, req Request) (*Response, error) {
	browser := t.pool.pick(hostOf(req.URL))

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("transport: browser open page: %w", err)
	}
	defer page.Close()

	pageCtx := page.Context(ctx)
	if req.Timeout > 0 {
		pageCtx = pageCtx.Timeout(req.Timeout)
	}

	var statusCode int
	var header http.Header = make(http.Header)
	wait := pageCtx.EachEvent(func(ev *proto.NetworkResponseReceived) (stop bool) {
		if ev.Response == nil || !strings.EqualFold(ev.Response.URL, req.URL) {
			return false
		}
		statusCode = ev.Response.Status
		for k, v := range ev.Response.Headers {
			header.Set(k, fmt.Sprintf("%v", v))
		}
		return true
	})

	if err := pageCtx.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("transport: browser navigate: %w", err)
	}
	wait()

	if err := pageCtx.WaitLoad(); err != nil {
		return nil, fmt.Errorf("transport: browser wait load: %w", err)
	}

	html, err := pageCtx.HTML()
	if err != nil {
		return nil, fmt.Errorf("transport: browser read html: %w", err)
	}

	if statusCode == 0 {
		// No matching NetworkResponseReceived event fired (common for
		// same-document navigations or cached responses); treat a
		// successfully loaded page as 200.
		statusCode = http.StatusOK
	}

	finalURL := req.URL
	if info, err := pageCtx.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	return &Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(html)),
		FinalURL:   finalURL,
	}, nil
}

var _ Transport = (*Browser)(nil)

// pseudoRandomInt is a cheap Fibonacci-hashing counter for the random
// policy: load-spreading across a small pool doesn't need a
// cryptographically strong source, just decorrelation from call order.
var randCounter uint64

func pseudoRandomInt() int {
	randCounter += 2654435769
	return int(randCounter)
}
