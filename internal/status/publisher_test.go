package status

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/types"
)

func newTestCatalog(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func statusFor(t *testing.T, cat *sqlite.Store, serviceType, host string) *types.ServiceStatus {
	t.Helper()
	all, err := cat.ListServiceStatus(context.Background())
	require.NoError(t, err)
	for _, s := range all {
		if s.ServiceType == serviceType && s.Host == host {
			return s
		}
	}
	return nil
}

func TestPublisherFlushWritesCountersAndState(t *testing.T) {
	cat := newTestCatalog(t)
	p := NewPublisher(cat, "fetch_worker", "host-1")
	p.SetState(types.ServiceRunning)
	p.SetCurrentSource("agency-x")
	p.Increment("fetches_succeeded", 3)
	p.Increment("fetches_succeeded", 2)

	require.NoError(t, p.flush(context.Background()))

	got := statusFor(t, cat, "fetch_worker", "host-1")
	require.NotNil(t, got)
	require.Equal(t, types.ServiceRunning, got.State)
	require.Equal(t, "agency-x", got.CurrentSource)
	require.EqualValues(t, 5, got.Counters["fetches_succeeded"])
}

func TestPublisherRecordErrorSetsLastErrorAndCount(t *testing.T) {
	cat := newTestCatalog(t)
	p := NewPublisher(cat, "analysis_worker", "host-2")
	p.RecordError(context.Background(), errors.New("backend timeout"))
	p.RecordError(context.Background(), errors.New("backend timeout again"))

	require.NoError(t, p.flush(context.Background()))

	got := statusFor(t, cat, "analysis_worker", "host-2")
	require.NotNil(t, got)
	require.Equal(t, "backend timeout again", got.LastError)
	require.EqualValues(t, 2, got.ErrorCount)
}

func TestPublisherRunWritesStoppedRowOnCancel(t *testing.T) {
	cat := newTestCatalog(t)
	p := NewPublisher(cat, "discovery_worker", "host-3")
	p.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	got := statusFor(t, cat, "discovery_worker", "host-3")
	require.NotNil(t, got)
	require.Equal(t, types.ServiceStopped, got.State)
}
