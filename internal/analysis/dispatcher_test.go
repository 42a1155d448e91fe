package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/types"
)

type countingBackend struct {
	calls     int32
	failOnce  bool
	failed    int32
	modelName string
}

func (b *countingBackend) AnalysisType() types.AnalysisType { return types.AnalysisOCR }
func (b *countingBackend) Name() string                     { return "fake-ocr" }
func (b *countingBackend) RequiresPageImage() bool           { return true }
func (b *countingBackend) Analyze(_ context.Context, input Input) (string, *float64, []byte, error) {
	atomic.AddInt32(&b.calls, 1)
	if b.failOnce && atomic.AddInt32(&b.failed, 1) == 1 {
		return "", nil, nil, errors.New("backend exploded")
	}
	return "recognized text", nil, nil, nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertDocVersionPage(t *testing.T, store *sqlite.Store, docID string, imageHash string) (*types.Version, *types.Page) {
	t.Helper()
	doc := &types.Document{ID: docID, Source: "agency-x", CanonicalURL: "https://example.gov/" + docID, FirstSeen: time.Now(), LastSeen: time.Now()}
	v := &types.Version{DocumentID: docID, ContentHash: "hash-" + docID, ContentHashBlake3: "b3-" + docID, FileSize: 10, MimeType: "application/pdf", AcquiredAt: time.Now()}
	pages := []*types.Page{{DocumentID: docID, PageNumber: 1, ImageHash: imageHash}}
	stored, inserted, err := store.InsertVersionWithPages(context.Background(), doc, v, pages)
	require.NoError(t, err)
	require.True(t, inserted)

	got, err := store.ListPages(context.Background(), stored.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	return stored, got[0]
}

func TestDispatchInvokesBackendOnFirstRun(t *testing.T) {
	store := newTestStore(t)
	v, p := insertDocVersionPage(t, store, "doc-a", "img-hash-1")
	backend := &countingBackend{}
	d := NewDispatcher(store, 2)

	result, err := d.Dispatch(context.Background(), Request{
		Input:   Input{PageID: &p.ID, DocumentID: v.DocumentID, VersionID: v.ID, ImageHash: p.ImageHash},
		Backend: backend,
	})
	require.NoError(t, err)
	require.Equal(t, types.AnalysisComplete, result.Status)
	require.Equal(t, "recognized text", result.ResultText)
	require.EqualValues(t, 1, atomic.LoadInt32(&backend.calls))
}

func TestDispatchIsIdempotentOnExactKeyRerun(t *testing.T) {
	store := newTestStore(t)
	v, p := insertDocVersionPage(t, store, "doc-b", "img-hash-2")
	backend := &countingBackend{}
	d := NewDispatcher(store, 2)

	req := Request{Input: Input{PageID: &p.ID, DocumentID: v.DocumentID, VersionID: v.ID, ImageHash: p.ImageHash}, Backend: backend}
	_, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), req)
	require.NoError(t, err)

	require.EqualValues(t, 1, atomic.LoadInt32(&backend.calls))
}

func TestDispatchAdoptsResultByImageHashAcrossPages(t *testing.T) {
	store := newTestStore(t)
	v1, p1 := insertDocVersionPage(t, store, "doc-c1", "shared-hash")
	v2, p2 := insertDocVersionPage(t, store, "doc-c2", "shared-hash")
	backend := &countingBackend{}
	d := NewDispatcher(store, 2)

	_, err := d.Dispatch(context.Background(), Request{
		Input:   Input{PageID: &p1.ID, DocumentID: v1.DocumentID, VersionID: v1.ID, ImageHash: p1.ImageHash},
		Backend: backend,
	})
	require.NoError(t, err)

	result, err := d.Dispatch(context.Background(), Request{
		Input:   Input{PageID: &p2.ID, DocumentID: v2.DocumentID, VersionID: v2.ID, ImageHash: p2.ImageHash},
		Backend: backend,
	})
	require.NoError(t, err)
	require.Equal(t, types.AnalysisComplete, result.Status)
	require.Equal(t, "recognized text", result.ResultText)
	require.EqualValues(t, 1, atomic.LoadInt32(&backend.calls))
}

func TestDispatchRecordsFailedStatusOnBackendError(t *testing.T) {
	store := newTestStore(t)
	v, p := insertDocVersionPage(t, store, "doc-d", "img-hash-4")
	backend := &countingBackend{failOnce: true}
	d := NewDispatcher(store, 2)

	result, err := d.Dispatch(context.Background(), Request{
		Input:   Input{PageID: &p.ID, DocumentID: v.DocumentID, VersionID: v.ID, ImageHash: p.ImageHash},
		Backend: backend,
	})
	require.Error(t, err)
	var pe *types.PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, types.ErrKindBackendFailure, pe.Kind)
	require.Equal(t, types.AnalysisFailed, result.Status)
	require.NotEmpty(t, result.Error)
}
