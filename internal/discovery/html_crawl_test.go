package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/config"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/transport"
)

func TestHTMLCrawlEnqueuesMatchingDocumentsAndFollowsPagination(t *testing.T) {
	var index, page2 string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, index)
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page2)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	index = `<html><body>
		<a class="doc-link" href="/records/1.pdf">one</a>
		<a class="next" href="/page/2">Next</a>
	</body></html>`
	page2 = `<html><body>
		<a class="doc-link" href="/records/2.pdf">two</a>
	</body></html>`

	dir := t.TempDir()
	cat, err := sqlite.Open(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	sched := scheduler.New(scheduler.NewLocalStore(), scheduler.Config{BaseRate: 1000, ConcurrencyPerHost: 4})
	xport := transport.NewSelector(transport.NewDirect(nil), nil, nil)

	cfg := config.ScraperConfig{
		Discovery: config.DiscoveryConfig{
			Type:             "html_crawl",
			BaseURL:          srv.URL,
			DocumentLinks:    []string{"a.doc-link"},
			DocumentPatterns: []string{`\.pdf$`},
			Pagination:       config.PaginationConfig{NextSelectors: []string{"a.next"}},
		},
	}

	engine, err := New("test-source", cfg, Deps{Catalog: cat, Scheduler: sched, Transport: xport, Logger: testLogger()})
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	job1, err := cat.ClaimFetchJob(context.Background(), "w", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job1)
	job2, err := cat.ClaimFetchJob(context.Background(), "w", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job2)

	urls := []string{job1.URL, job2.URL}
	require.Contains(t, urls, srv.URL+"/records/1.pdf")
	require.Contains(t, urls, srv.URL+"/records/2.pdf")
	require.Equal(t, "application/pdf", job1.ExpectedMime)
	require.Equal(t, "application/pdf", job2.ExpectedMime)
}

func TestHTMLCrawlDegradesSourceOnAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cat, err := sqlite.Open(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	sched := scheduler.New(scheduler.NewLocalStore(), scheduler.Config{})
	xport := transport.NewSelector(transport.NewDirect(nil), nil, nil)

	cfg := config.ScraperConfig{Discovery: config.DiscoveryConfig{Type: "html_crawl", BaseURL: srv.URL}}
	engine, err := New("blocked-source", cfg, Deps{Catalog: cat, Scheduler: sched, Transport: xport, Logger: testLogger()})
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	st, err := cat.LoadScrapeState(context.Background(), "blocked-source")
	require.NoError(t, err)
	require.True(t, st.Degraded)
}
