package scheduler

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type bucketState struct {
	effectiveRate       float64
	consecutiveFailures int
	consecutiveSuccess  int
	lastAcquire         time.Time
}

// LocalStore is the process-local, mutex-guarded default backend (spec.md
// §4.3: "a process-local store (default)").
type LocalStore struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
}

// NewLocalStore returns an empty local store.
func NewLocalStore() *LocalStore {
	return &LocalStore{buckets: make(map[string]*bucketState)}
}

func (l *LocalStore) bucket(host string, cfg Config) *bucketState {
	b, ok := l.buckets[host]
	if !ok {
		b = &bucketState{effectiveRate: cfg.BaseRate}
		l.buckets[host] = b
	}
	return b
}

// NextDelay computes how long to wait before host's next permit: the
// floor imposed by the current effective rate, plus an exponential
// backoff term grown from consecutive failures, with the total capped at
// cfg.MaxDelay.
func (l *LocalStore) NextDelay(_ context.Context, host string, cfg Config) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(host, cfg)
	now := time.Now()

	minInterval := time.Duration(float64(time.Second) / b.effectiveRate)
	elapsed := now.Sub(b.lastAcquire)
	delay := minInterval - elapsed
	if delay < 0 {
		delay = 0
	}

	if b.consecutiveFailures > 0 {
		delay += backoffDelay(minInterval, b.consecutiveFailures, cfg.MaxDelay)
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	b.lastAcquire = now.Add(delay)
	return delay, nil
}

// ReportOutcome applies the additive-increase / multiplicative-decrease
// rule from spec.md §4.3.
func (l *LocalStore) ReportOutcome(_ context.Context, host string, outcome Outcome, cfg Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(host, cfg)
	switch outcome {
	case OutcomeSuccess:
		b.consecutiveSuccess++
		if b.consecutiveSuccess >= 3 {
			b.consecutiveFailures = 0
		}
		// Additive increase toward base rate, capped at base rate.
		b.effectiveRate = math.Min(cfg.BaseRate, b.effectiveRate+b.effectiveRate*0.1+0.01)
	case OutcomeRetryableFailure:
		b.consecutiveSuccess = 0
		b.consecutiveFailures++
		b.effectiveRate = math.Max(b.effectiveRate/2, 0.01)
	case OutcomeNeutral:
		// Neither extends nor clears the success streak, per spec.md
		// §4.3's "three consecutive successes" rule counting only
		// explicit successes.
	}
	return nil
}

// ReportRetryAfter advances the bucket's last-acquire time so the next
// NextDelay computation is at least retryAfter from now, regardless of the
// current effective rate or backoff curve (spec.md §8's Retry-After
// boundary behavior).
func (l *LocalStore) ReportRetryAfter(_ context.Context, host string, retryAfter time.Duration, cfg Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(host, cfg)
	floor := time.Now().Add(retryAfter)
	if floor.After(b.lastAcquire) {
		b.lastAcquire = floor
	}
	return nil
}

// backoffDelay returns the k-th exponential backoff interval seeded at
// base, doubling per failure and capped at max — using
// cenkalti/backoff/v4's ExponentialBackOff to generate the curve rather
// than hand-rolling math.Pow, the same library the teacher's networked
// catalog engine uses for its own retry backoff.
func backoffDelay(base time.Duration, failures int, max time.Duration) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.Multiplier = 2
	bo.MaxInterval = max
	bo.RandomizationFactor = 0
	bo.Reset()

	var d time.Duration
	for i := 0; i < failures; i++ {
		d = bo.NextBackOff()
		if d == backoff.Stop {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
