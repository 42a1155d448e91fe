package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(context.Background(), filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertDocumentPreservesFirstSeen(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	first := time.Now().Add(-time.Hour)
	doc := &types.Document{ID: "doc-1", Source: "agency-x", CanonicalURL: "https://example.gov/a", FirstSeen: first, LastSeen: first}
	require.NoError(t, store.UpsertDocument(ctx, doc))

	later := first.Add(time.Minute)
	doc2 := &types.Document{ID: "doc-1", Source: "agency-x", CanonicalURL: "https://example.gov/a", Title: "A Title", FirstSeen: later, LastSeen: later}
	require.NoError(t, store.UpsertDocument(ctx, doc2))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "A Title", got.Title)
	require.WithinDuration(t, later, got.LastSeen, time.Second)
}

func TestInsertVersionWithPagesIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	doc := &types.Document{ID: "doc-2", Source: "agency-x", CanonicalURL: "https://example.gov/b", FirstSeen: time.Now(), LastSeen: time.Now()}
	v := &types.Version{DocumentID: "doc-2", ContentHash: "aaaa", ContentHashBlake3: "bbbb", FileSize: 100, AcquiredAt: time.Now()}
	pages := []*types.Page{{PageNumber: 1, ImageHash: "img-1"}, {PageNumber: 2, ImageHash: "img-2"}}

	stored, inserted, err := store.InsertVersionWithPages(ctx, doc, v, pages)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotZero(t, stored.ID)

	// Re-inserting the same content hash for the same document is a no-op.
	v2 := &types.Version{DocumentID: "doc-2", ContentHash: "aaaa", ContentHashBlake3: "bbbb", FileSize: 100, AcquiredAt: time.Now()}
	stored2, inserted2, err := store.InsertVersionWithPages(ctx, doc, v2, pages)
	require.NoError(t, err)
	require.False(t, inserted2)
	require.Equal(t, stored.ID, stored2.ID)

	gotPages, err := store.ListPages(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, gotPages, 2)
}

func TestAnalysisResultUpsertDedup(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	doc := &types.Document{ID: "doc-3", Source: "agency-x", CanonicalURL: "https://example.gov/c", FirstSeen: time.Now(), LastSeen: time.Now()}
	v := &types.Version{DocumentID: "doc-3", ContentHash: "cccc", ContentHashBlake3: "dddd", FileSize: 50, AcquiredAt: time.Now()}
	pages := []*types.Page{{PageNumber: 1, ImageHash: "img-x"}}
	stored, _, err := store.InsertVersionWithPages(ctx, doc, v, pages)
	require.NoError(t, err)
	gotPages, err := store.ListPages(ctx, stored.ID)
	require.NoError(t, err)
	pageID := gotPages[0].ID

	r := &types.AnalysisResult{PageID: &pageID, DocumentID: "doc-3", VersionID: stored.ID, AnalysisType: types.AnalysisOCR, Backend: "tesseract", Status: types.AnalysisComplete, ResultText: "hello"}
	inserted, err := store.UpsertAnalysisResult(ctx, r)
	require.NoError(t, err)
	require.True(t, inserted)

	dup := &types.AnalysisResult{PageID: &pageID, DocumentID: "doc-3", VersionID: stored.ID, AnalysisType: types.AnalysisOCR, Backend: "tesseract", Status: types.AnalysisComplete, ResultText: "hello again"}
	inserted2, err := store.UpsertAnalysisResult(ctx, dup)
	require.NoError(t, err)
	require.False(t, inserted2)

	found, err := store.FindAnalysisResult(ctx, &pageID, "doc-3", stored.ID, types.AnalysisOCR, "tesseract", "")
	require.NoError(t, err)
	require.Equal(t, "hello", found.ResultText)
}

func TestJobLeaseClaimAndReap(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.NoError(t, store.EnqueueFetchJob(ctx, &types.FetchJob{Source: "agency-x", URL: "https://example.gov/doc.pdf"}))

	job, err := store.ClaimFetchJob(ctx, "worker-1", 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)

	// Claiming again immediately finds nothing: lease still valid.
	again, err := store.ClaimFetchJob(ctx, "worker-2", time.Minute)
	require.NoError(t, err)
	require.Nil(t, again)

	time.Sleep(20 * time.Millisecond)
	reaped, err := store.ReapExpiredLeases(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)

	reclaimed, err := store.ClaimFetchJob(ctx, "worker-2", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	require.Equal(t, job.ID, reclaimed.ID)
}

func TestScrapeStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.LoadScrapeState(ctx, "nonexistent-source")
	require.NoError(t, err)

	st := &types.ScrapeState{
		Source:   "agency-x",
		Frontier: []types.FrontierEntry{{URL: "https://example.gov/1", Depth: 0}},
		Visited:  map[string]time.Time{"https://example.gov/0": time.Now()},
	}
	require.NoError(t, store.SaveScrapeState(ctx, st))

	got, err := store.LoadScrapeState(ctx, "agency-x")
	require.NoError(t, err)
	require.Len(t, got.Frontier, 1)
	require.Contains(t, got.Visited, "https://example.gov/0")
}
