package transport

import (
	"context"
	"sync"

	"github.com/foiacquire/foiacquire/internal/types"
)

// Selector picks direct vs SOCKS vs browser per request, per spec.md §4.4:
// direct by default, SOCKS when a tunnel is configured and privacy routing
// isn't opted out, browser when the source declares use_browser or a prior
// direct fetch hit a challenge-page signature.
type Selector struct {
	direct  Transport
	socks   Transport // nil if no tunnel configured
	browser Transport // nil if no pool configured

	// DisablePrivacyRouting is the one operator opt-out flag spec.md §4.4
	// grants the transport layer: when true, SOCKS is skipped even if
	// configured.
	DisablePrivacyRouting bool

	mu              sync.Mutex
	challengedHosts map[string]bool
}

// NewSelector builds a Selector. socks and browser may be nil if the
// deployment has no tunnel or browser pool configured.
func NewSelector(direct, socks, browser Transport) *Selector {
	return &Selector{
		direct:          direct,
		socks:           socks,
		browser:         browser,
		challengedHosts: make(map[string]bool),
	}
}

// Fetch routes req to the appropriate channel and classifies the outcome
// into an ErrKind the scheduler and fetch pipeline can act on.
func (s *Selector) Fetch(ctx context.Context, req Request) (*Response, error) {
	if req.UseBrowser || s.previouslyChallenged(req.URL) {
		return s.fetchBrowser(ctx, req)
	}

	channel := s.direct
	if s.socks != nil && !s.DisablePrivacyRouting {
		channel = s.socks
	}

	resp, err := channel.Fetch(ctx, req)
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindTransientNetwork, "transport.fetch", err)
	}

	if isAuthOrBlocked(resp.StatusCode) {
		return resp, types.NewPipelineError(types.ErrKindAuthOrBlocked, "transport.fetch", errStatus(resp.StatusCode))
	}

	challenged, restored, sniffErr := looksLikeChallengePage(resp)
	if sniffErr != nil {
		return resp, nil
	}
	if !challenged {
		return restored, nil
	}

	_ = restored.Body.Close()
	s.markChallenged(req.URL)
	if s.browser == nil {
		return nil, types.NewPipelineError(types.ErrKindAuthOrBlocked, "transport.fetch", errChallengePage)
	}
	return s.fetchBrowser(ctx, req)
}

func (s *Selector) fetchBrowser(ctx context.Context, req Request) (*Response, error) {
	if s.browser == nil {
		return nil, types.NewPipelineError(types.ErrKindConfigurationError, "transport.fetch", errNoBrowserPool)
	}
	resp, err := s.browser.Fetch(ctx, req)
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindTransientNetwork, "transport.fetch", err)
	}
	if isAuthOrBlocked(resp.StatusCode) {
		return resp, types.NewPipelineError(types.ErrKindAuthOrBlocked, "transport.fetch", errStatus(resp.StatusCode))
	}
	return resp, nil
}

func (s *Selector) previouslyChallenged(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challengedHosts[hostOf(rawURL)]
}

func (s *Selector) markChallenged(rawURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challengedHosts[hostOf(rawURL)] = true
}

var _ Transport = (*Selector)(nil)
