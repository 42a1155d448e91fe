package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/transport"
)

func TestWaybackSnapshotsParsesCDXResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			["timestamp","original","statuscode","mimetype","digest","length"],
			["20200101000000","https://example.gov/a.pdf","200","application/pdf","ABCD1234",  "1024"],
			["20210601000000","https://example.gov/a.pdf","200","application/pdf","EFGH5678","2048"]
		]`))
	}))
	defer srv.Close()

	w := &Wayback{Transport: transport.NewDirect(nil), Endpoint: srv.URL}
	snaps, err := w.Snapshots(context.Background(), "https://example.gov/a.pdf")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, "wayback", snaps[0].Service)
	require.Equal(t, "ABCD1234", snaps[0].Digest)
	require.EqualValues(t, 1024, snaps[0].ContentLength)
	require.Equal(t, "https://web.archive.org/web/20200101000000/https://example.gov/a.pdf", snaps[0].ArchiveURL)
}

func TestWaybackSnapshotsReturnsNilForHeaderOnlyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[["timestamp","original","statuscode","mimetype","digest","length"]]`))
	}))
	defer srv.Close()

	w := &Wayback{Transport: transport.NewDirect(nil), Endpoint: srv.URL}
	snaps, err := w.Snapshots(context.Background(), "https://example.gov/missing.pdf")
	require.NoError(t, err)
	require.Nil(t, snaps)
}

func TestWaybackSnapshotsReturnsNilForEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := &Wayback{Transport: transport.NewDirect(nil), Endpoint: srv.URL}
	snaps, err := w.Snapshots(context.Background(), "https://example.gov/empty.pdf")
	require.NoError(t, err)
	require.Nil(t, snaps)
}

func TestWaybackSnapshotsErrorsOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := &Wayback{Transport: transport.NewDirect(nil), Endpoint: srv.URL}
	_, err := w.Snapshots(context.Background(), "https://example.gov/a.pdf")
	require.Error(t, err)
}

func TestWaybackNameIsWayback(t *testing.T) {
	require.Equal(t, "wayback", (&Wayback{}).Name())
}
