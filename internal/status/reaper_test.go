package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/types"
)

func TestLeaseReaperReclaimsExpiredLeaseOnTick(t *testing.T) {
	cat := newTestCatalog(t)
	require.NoError(t, cat.EnqueueFetchJob(context.Background(), &types.FetchJob{Source: "agency-x", URL: "https://example.gov/doc.pdf"}))

	job, err := cat.ClaimFetchJob(context.Background(), "worker-1", 5*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	time.Sleep(10 * time.Millisecond)

	reaper := NewLeaseReaper(cat)
	reaper.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		reclaimed, err := cat.ClaimFetchJob(context.Background(), "worker-2", time.Minute)
		return err == nil && reclaimed != nil
	}, 500*time.Millisecond, 10*time.Millisecond)

	cancel()
	<-done
}

func TestNewLeaseReaperDefaultsIntervalTo30Seconds(t *testing.T) {
	cat := newTestCatalog(t)
	reaper := NewLeaseReaper(cat)
	require.Equal(t, 30*time.Second, reaper.Interval)
}
