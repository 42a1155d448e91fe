package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/types"
)

func TestDirectFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	d := NewDirect(nil)
	resp, err := d.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "%PDF")
}

func TestSelectorDetectsChallengePageAndFailsWithoutBrowserPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Checking your browser before accessing this site.</body></html>"))
	}))
	defer srv.Close()

	sel := NewSelector(NewDirect(nil), nil, nil)
	_, err := sel.Fetch(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)

	var pipeErr *types.PipelineError
	require.ErrorAs(t, err, &pipeErr)
	require.Equal(t, types.ErrKindAuthOrBlocked, pipeErr.Kind)
}

func TestSelectorPassesThroughNonChallengeHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Hello, agency records.</body></html>"))
	}))
	defer srv.Close()

	sel := NewSelector(NewDirect(nil), nil, nil)
	resp, err := sel.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Hello, agency records.")
}

func TestSelectorMapsForbiddenToAuthOrBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sel := NewSelector(NewDirect(nil), nil, nil)
	_, err := sel.Fetch(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)

	var pipeErr *types.PipelineError
	require.ErrorAs(t, err, &pipeErr)
	require.Equal(t, types.ErrKindAuthOrBlocked, pipeErr.Kind)
}

func TestRoundRobinSelectorCyclesEndpoints(t *testing.T) {
	sel := &roundRobinSelector{}
	require.Equal(t, 0, sel.next("a", 3))
	require.Equal(t, 1, sel.next("a", 3))
	require.Equal(t, 2, sel.next("a", 3))
	require.Equal(t, 0, sel.next("a", 3))
}

func TestStickySelectorIsStableForSameHost(t *testing.T) {
	sel := stickySelector{}
	first := sel.next("example.gov", 5)
	second := sel.next("example.gov", 5)
	require.Equal(t, first, second)
}
