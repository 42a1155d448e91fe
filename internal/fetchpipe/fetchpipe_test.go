package fetchpipe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/cas"
	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	cat, err := sqlite.Open(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	sched := scheduler.New(scheduler.NewLocalStore(), scheduler.Config{BaseRate: 1000, ConcurrencyPerHost: 4})
	xport := transport.NewSelector(transport.NewDirect(nil), nil, nil)
	store := cas.New(filepath.Join(dir, "blobs"))

	return &Pipeline{Catalog: cat, Scheduler: sched, Transport: xport, CAS: store}
}

func TestRunInsertsNewVersionAndDedupsOnReFetch(t *testing.T) {
	body := "the quick brown fox"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	job := &types.FetchJob{Source: "agency-x", URL: srv.URL + "/doc.txt", ExpectedMime: "text/plain"}

	result, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	require.True(t, result.Inserted)
	require.NotZero(t, result.Version.ID)

	again, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	require.False(t, again.Inserted)
	require.Equal(t, result.Version.ID, again.Version.ID)
}

func TestRunRejectsHTMLMasqueradingAsExpectedMime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>blocked</body></html>"))
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	job := &types.FetchJob{Source: "agency-x", URL: srv.URL + "/doc.pdf", ExpectedMime: "application/pdf"}

	_, err := p.Run(context.Background(), job)
	require.Error(t, err)
	var pe *types.PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, types.ErrKindMalformedContent, pe.Kind)
}

func TestRunReportsPolitenessAndFloorsNextPermit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	job := &types.FetchJob{Source: "agency-x", URL: srv.URL + "/doc.txt"}

	start := time.Now()
	_, err := p.Run(context.Background(), job)
	require.Error(t, err)
	var pe *types.PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, types.ErrKindRemotePoliteness, pe.Kind)

	host := hostOf(job.URL)
	permit, err := p.Scheduler.Acquire(context.Background(), host)
	require.NoError(t, err)
	permit.Release()
	require.GreaterOrEqual(t, time.Since(start), 2*time.Second-50*time.Millisecond)
}

func TestRunRejectsEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	job := &types.FetchJob{Source: "agency-x", URL: srv.URL + "/empty.txt"}

	_, err := p.Run(context.Background(), job)
	require.Error(t, err)
	var pe *types.PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, types.ErrKindMalformedContent, pe.Kind)
}
