package workers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/cas"
	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/fetchpipe"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/status"
	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchPoolClaimsRunsAndCompletesJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("document body"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cat, err := sqlite.Open(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	require.NoError(t, cat.EnqueueFetchJob(context.Background(), &types.FetchJob{Source: "agency-x", URL: srv.URL + "/doc.txt", ExpectedMime: "text/plain"}))

	pipeline := &fetchpipe.Pipeline{
		Catalog:   cat,
		Scheduler: scheduler.New(scheduler.NewLocalStore(), scheduler.Config{BaseRate: 1000, ConcurrencyPerHost: 4}),
		Transport: transport.NewSelector(transport.NewDirect(nil), nil, nil),
		CAS:       cas.New(filepath.Join(dir, "blobs")),
	}
	pub := status.NewPublisher(cat, "fetch_worker", "test-host")
	pool := &FetchPool{Catalog: cat, Pipeline: pipeline, Publisher: pub, Logger: testLogger(), PollIdle: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pool.Run(ctx, 1, "fetch")

	require.Eventually(t, func() bool {
		versions, err := cat.ListVersions(context.Background(), catalog.VersionFilter{MimeType: "text/plain"})
		return err == nil && len(versions) == 1
	}, time.Second, 10*time.Millisecond)
}
