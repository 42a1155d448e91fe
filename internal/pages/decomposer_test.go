package pages

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/types"
)

func insertTestVersion(t *testing.T, store *sqlite.Store, mimeType string) *types.Version {
	t.Helper()
	doc := &types.Document{ID: "doc-1", Source: "agency-x", CanonicalURL: "https://example.gov/a", FirstSeen: time.Now(), LastSeen: time.Now()}
	v := &types.Version{DocumentID: "doc-1", ContentHash: "hash1", ContentHashBlake3: "b3hash1", FileSize: 10, MimeType: mimeType, AcquiredAt: time.Now()}
	stored, inserted, err := store.InsertVersionWithPages(context.Background(), doc, v, nil)
	require.NoError(t, err)
	require.True(t, inserted)
	return stored
}

func TestDecomposeExpandsZipIntoPages(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	v := insertTestVersion(t, store, "application/zip")
	body := buildZip(t, map[string]string{"a.txt": "one", "b.txt": "two"})

	d := NewDecomposer(store)
	require.NoError(t, d.Decompose(context.Background(), v, body))

	got, err := store.ListPages(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].PageNumber)
	require.NotEmpty(t, got[0].ImageHash)
}

func TestDecomposeIsNoOpForUnregisteredMimeType(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	v := insertTestVersion(t, store, "application/pdf")

	d := NewDecomposer(store)
	require.NoError(t, d.Decompose(context.Background(), v, []byte("%PDF-1.4 ...")))

	got, err := store.ListPages(context.Background(), v.ID)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecomposeIsIdempotentOnRerun(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	v := insertTestVersion(t, store, "application/zip")
	body := buildZip(t, map[string]string{"a.txt": "one"})

	d := NewDecomposer(store)
	require.NoError(t, d.Decompose(context.Background(), v, body))
	require.NoError(t, d.Decompose(context.Background(), v, body))

	got, err := store.ListPages(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestImageHashIsDeterministic(t *testing.T) {
	require.Equal(t, imageHash([]byte("abc")), imageHash([]byte("abc")))
	require.NotEqual(t, imageHash([]byte("abc")), imageHash([]byte("abd")))
}
