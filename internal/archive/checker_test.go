package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/types"
)

type fakeService struct {
	name      string
	snapshots []*types.ArchiveSnapshot
	err       error
}

func (f *fakeService) Name() string { return f.name }
func (f *fakeService) Snapshots(_ context.Context, _ string) ([]*types.ArchiveSnapshot, error) {
	return f.snapshots, f.err
}

func insertVersionWithSourceURL(t *testing.T, store *sqlite.Store, docID, sourceURL, contentHash string, size int64, mimeType string) *types.Version {
	t.Helper()
	doc := &types.Document{ID: docID, Source: "agency-x", CanonicalURL: "https://example.gov/" + docID, FirstSeen: time.Now(), LastSeen: time.Now()}
	v := &types.Version{DocumentID: docID, ContentHash: contentHash, ContentHashBlake3: "b3-" + contentHash, FileSize: size, MimeType: mimeType, AcquiredAt: time.Now(), SourceURL: sourceURL}
	stored, inserted, err := store.InsertVersionWithPages(context.Background(), doc, v, nil)
	require.NoError(t, err)
	require.True(t, inserted)
	return stored
}

func TestCheckerRunMarksVerifiedOnDigestMatch(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	v := insertVersionWithSourceURL(t, store, "doc-a", "https://example.gov/a.pdf", "digest-match", 1024, "application/pdf")

	svc := &fakeService{name: "wayback", snapshots: []*types.ArchiveSnapshot{
		{Service: "wayback", OriginalURL: v.SourceURL, ArchiveURL: "https://web.archive.org/x", CapturedAt: time.Now(), Digest: "digest-match"},
	}}
	checker := NewChecker(store, svc)

	results, err := checker.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.ArchiveVerified, results[0].Outcome)
}

func TestCheckerRunMarksNewVersionsWhenNoSnapshotMatches(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	v := insertVersionWithSourceURL(t, store, "doc-b", "https://example.gov/b.pdf", "this-version-hash", 1024, "application/pdf")

	svc := &fakeService{name: "wayback", snapshots: []*types.ArchiveSnapshot{
		{Service: "wayback", OriginalURL: v.SourceURL, ArchiveURL: "https://web.archive.org/y", CapturedAt: time.Now(), Digest: "different-digest", ContentLength: 2048, Mimetype: "application/pdf"},
	}}
	checker := NewChecker(store, svc)

	results, err := checker.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.ArchiveNewVersions, results[0].Outcome)
}

func TestCheckerRunMarksNoSnapshotsWhenServiceHasNone(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	insertVersionWithSourceURL(t, store, "doc-c", "https://example.gov/c.pdf", "hash-c", 512, "application/pdf")

	svc := &fakeService{name: "wayback"}
	checker := NewChecker(store, svc)

	results, err := checker.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.ArchiveNoSnapshots, results[0].Outcome)
}

func TestCheckerRunSkipsVersionsWithoutSourceURL(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	insertVersionWithSourceURL(t, store, "doc-d", "", "hash-d", 512, "application/pdf")

	svc := &fakeService{name: "wayback", snapshots: []*types.ArchiveSnapshot{{Service: "wayback", Digest: "whatever"}}}
	checker := NewChecker(store, svc)

	results, err := checker.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.ArchiveNoSnapshots, results[0].Outcome)
}

func TestCheckerRunDoesNotRecheckWithinInterval(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	insertVersionWithSourceURL(t, store, "doc-e", "https://example.gov/e.pdf", "hash-e", 512, "application/pdf")

	svc := &fakeService{name: "wayback", snapshots: []*types.ArchiveSnapshot{
		{Service: "wayback", Digest: "hash-e", ContentLength: 512, Mimetype: "application/pdf"},
	}}
	checker := NewChecker(store, svc)

	first, err := checker.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := checker.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, second)
}
