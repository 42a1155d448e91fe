package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreAdditiveIncreaseAfterSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()
	cfg := Config{BaseRate: 10, MaxDelay: time.Second, ConcurrencyPerHost: 1}.withDefaults()

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeRetryableFailure, cfg))
	b := store.bucket("example.gov", cfg)
	require.Less(t, b.effectiveRate, cfg.BaseRate)
	rateAfterFailure := b.effectiveRate

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeSuccess, cfg))
	require.Greater(t, b.effectiveRate, rateAfterFailure)
	require.LessOrEqual(t, b.effectiveRate, cfg.BaseRate)
}

func TestLocalStoreMultiplicativeDecreaseOnFailure(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()
	cfg := Config{BaseRate: 8, MaxDelay: time.Second, ConcurrencyPerHost: 1}.withDefaults()

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeRetryableFailure, cfg))
	b := store.bucket("example.gov", cfg)
	require.InDelta(t, 4.0, b.effectiveRate, 0.001)

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeRetryableFailure, cfg))
	require.InDelta(t, 2.0, b.effectiveRate, 0.001)
}

func TestLocalStoreBackoffGrowsWithConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()
	cfg := Config{BaseRate: 1000, MaxDelay: time.Minute, ConcurrencyPerHost: 1}.withDefaults()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeRetryableFailure, cfg))
	}
	delay3, err := store.NextDelay(ctx, "example.gov", cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeRetryableFailure, cfg))
	}
	delay6, err := store.NextDelay(ctx, "example.gov", cfg)
	require.NoError(t, err)

	require.Greater(t, delay6, delay3)
}

func TestLocalStoreNeutralOutcomeDoesNotResetFailures(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()
	cfg := Config{BaseRate: 10, MaxDelay: time.Second, ConcurrencyPerHost: 1}.withDefaults()

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeRetryableFailure, cfg))
	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeNeutral, cfg))

	b := store.bucket("example.gov", cfg)
	require.Equal(t, 1, b.consecutiveFailures)
}

func TestLocalStoreFailureCounterClearsOnlyAfterThreeConsecutiveSuccesses(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()
	cfg := Config{BaseRate: 10, MaxDelay: time.Second, ConcurrencyPerHost: 1}.withDefaults()

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeRetryableFailure, cfg))
	b := store.bucket("example.gov", cfg)
	require.Equal(t, 1, b.consecutiveFailures)

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeSuccess, cfg))
	require.Equal(t, 1, b.consecutiveFailures, "one success must not clear the failure streak")

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeSuccess, cfg))
	require.Equal(t, 1, b.consecutiveFailures, "two successes must not clear the failure streak")

	require.NoError(t, store.ReportOutcome(ctx, "example.gov", OutcomeSuccess, cfg))
	require.Equal(t, 0, b.consecutiveFailures, "three consecutive successes must clear the failure streak")
}

func TestSchedulerConcurrencyGateSerializesPermits(t *testing.T) {
	ctx := context.Background()
	sched := New(NewLocalStore(), Config{BaseRate: 1000, MaxDelay: time.Millisecond, ConcurrencyPerHost: 1})

	p1, err := sched.Acquire(ctx, "example.gov")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		p2, err := sched.Acquire(ctx, "example.gov")
		require.NoError(t, err)
		close(acquired)
		p2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while first permit held")
	case <-time.After(20 * time.Millisecond):
	}

	p1.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire should unblock after Release")
	}
}

func TestSchedulerAcquireCancellationDoesNotConsumeToken(t *testing.T) {
	sched := New(NewLocalStore(), Config{BaseRate: 1000, MaxDelay: time.Minute, ConcurrencyPerHost: 1})

	held, err := sched.Acquire(context.Background(), "example.gov")
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sched.Acquire(cancelCtx, "example.gov")
	require.ErrorIs(t, err, context.Canceled)

	held.Release()

	var acquiredAfterRelease atomic.Bool
	p, err := sched.Acquire(context.Background(), "example.gov")
	require.NoError(t, err)
	acquiredAfterRelease.Store(true)
	p.Release()
	require.True(t, acquiredAfterRelease.Load())
}
