// Package scheduler implements the per-host rate limiter and concurrency
// gate described in spec.md §4.3: callers block in Acquire until they may
// issue one request against a host, and report the outcome afterward so
// the effective rate adapts to 429s, 5xxs, and connection resets.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Outcome classifies a completed request for rate adaptation purposes.
type Outcome int

const (
	// OutcomeSuccess drifts the effective rate back toward the base rate.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryableFailure (429, 5xx, connection reset) halves the
	// effective rate and grows the next-permit delay.
	OutcomeRetryableFailure
	// OutcomeNeutral (e.g. a NotADocument classification) leaves the rate
	// state untouched.
	OutcomeNeutral
)

// Config bounds a host's behavior. Zero values fall back to the spec's
// stated defaults in New.
type Config struct {
	BaseRate           float64       // requests/sec a host drifts back toward
	MaxDelay           time.Duration // upper bound on the backoff-grown delay
	ConcurrencyPerHost int           // in-flight requests permitted per host
}

func (c Config) withDefaults() Config {
	if c.BaseRate <= 0 {
		c.BaseRate = 1
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Minute
	}
	if c.ConcurrencyPerHost <= 0 {
		c.ConcurrencyPerHost = 1
	}
	return c
}

// Store is the backend a Scheduler drives: a process-local map or a
// shared external cache (spec.md §4.3's "both expose the same
// acquire/report_outcome operations"). Implementations must perform their
// read-modify-write atomically; Scheduler itself adds no locking around
// Store calls beyond the per-host concurrency gate.
type Store interface {
	// NextDelay returns how long the caller must wait before this host's
	// next permit, given the host's current rate and failure state.
	NextDelay(ctx context.Context, host string, cfg Config) (time.Duration, error)
	// ReportOutcome updates the host's rate/failure state per outcome.
	ReportOutcome(ctx context.Context, host string, outcome Outcome, cfg Config) error
	// ReportRetryAfter imposes an explicit floor on the host's next permit
	// (spec.md §8: "a 429 with Retry-After=N delays next-permit by ≥ N").
	// It does not otherwise alter the rate/failure state; callers pair it
	// with ReportOutcome(..., OutcomeRetryableFailure, ...).
	ReportRetryAfter(ctx context.Context, host string, retryAfter time.Duration, cfg Config) error
}

// Scheduler is the per-host rate limiter and concurrency gate.
type Scheduler struct {
	store Store
	cfg   Config

	gatesMu sync.Mutex
	gates   map[string]chan struct{}
}

// New builds a Scheduler over store with the given config (zero-valued
// fields take the spec's defaults: base rate 1 req/s, max delay 5 minutes,
// concurrency 1 in-flight per host).
func New(store Store, cfg Config) *Scheduler {
	return &Scheduler{
		store: store,
		cfg:   cfg.withDefaults(),
		gates: make(map[string]chan struct{}),
	}
}

// Permit represents one granted slot against a host. Release must be
// called exactly once, typically via defer immediately after Acquire
// succeeds.
type Permit struct {
	host string
	s    *Scheduler
}

// Release frees the host's concurrency slot.
func (p *Permit) Release() {
	p.s.releaseGate(p.host)
}

func (s *Scheduler) gateFor(host string) chan struct{} {
	s.gatesMu.Lock()
	defer s.gatesMu.Unlock()
	g, ok := s.gates[host]
	if !ok {
		g = make(chan struct{}, s.cfg.ConcurrencyPerHost)
		s.gates[host] = g
	}
	return g
}

func (s *Scheduler) releaseGate(host string) {
	<-s.gateFor(host)
}

// Acquire blocks until the caller may issue one request against host,
// honoring both the concurrency gate and the computed rate-limit delay.
// A cancelled ctx never consumes a token: if ctx is done before the gate
// slot and delay are both satisfied, Acquire returns ctx.Err() having
// released any gate slot it took (spec.md §4.3's cancellation rule).
func (s *Scheduler) Acquire(ctx context.Context, host string) (*Permit, error) {
	gate := s.gateFor(host)
	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	delay, err := s.store.NextDelay(ctx, host, s.cfg)
	if err != nil {
		<-gate
		return nil, err
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			<-gate
			return nil, ctx.Err()
		}
	}
	return &Permit{host: host, s: s}, nil
}

// ReportOutcome feeds a completed request's result back into the rate
// model (spec.md §4.3's additive-increase / multiplicative-decrease rule).
func (s *Scheduler) ReportOutcome(ctx context.Context, host string, outcome Outcome) error {
	return s.store.ReportOutcome(ctx, host, outcome, s.cfg)
}

// ReportRetryAfter records an origin-declared Retry-After duration for
// host, imposing a floor on its next permit regardless of the computed
// backoff curve.
func (s *Scheduler) ReportRetryAfter(ctx context.Context, host string, retryAfter time.Duration) error {
	return s.store.ReportRetryAfter(ctx, host, retryAfter, s.cfg)
}
