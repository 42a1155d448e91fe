package workers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foiacquire/foiacquire/internal/analysis"
	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
	"github.com/foiacquire/foiacquire/internal/status"
	"github.com/foiacquire/foiacquire/internal/types"
)

type stubBackend struct{ analysisType types.AnalysisType }

func (b *stubBackend) AnalysisType() types.AnalysisType { return b.analysisType }
func (b *stubBackend) Name() string                     { return "stub" }
func (b *stubBackend) RequiresPageImage() bool           { return true }
func (b *stubBackend) Analyze(context.Context, analysis.Input) (string, *float64, []byte, error) {
	return "stub text", nil, nil, nil
}

func insertPageForAnalysis(t *testing.T, cat *sqlite.Store) (*types.Version, *types.Page) {
	t.Helper()
	doc := &types.Document{ID: "doc-w1", Source: "agency-x", CanonicalURL: "https://example.gov/w1", FirstSeen: time.Now(), LastSeen: time.Now()}
	v := &types.Version{DocumentID: "doc-w1", ContentHash: "h1", ContentHashBlake3: "b1", FileSize: 5, MimeType: "application/pdf", AcquiredAt: time.Now()}
	pages := []*types.Page{{DocumentID: "doc-w1", PageNumber: 1, ImageHash: "img-w1"}}
	stored, inserted, err := cat.InsertVersionWithPages(context.Background(), doc, v, pages)
	require.NoError(t, err)
	require.True(t, inserted)
	got, err := cat.ListPages(context.Background(), stored.ID)
	require.NoError(t, err)
	return stored, got[0]
}

func TestAnalysisPoolDispatchesToRegisteredBackend(t *testing.T) {
	cat, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	v, p := insertPageForAnalysis(t, cat)
	require.NoError(t, cat.EnqueueAnalysisJob(context.Background(), &types.AnalysisJob{
		PageID: &p.ID, DocumentID: v.DocumentID, VersionID: v.ID, AnalysisType: types.AnalysisOCR, Backend: "stub",
	}))

	pool := &AnalysisPool{
		Catalog:    cat,
		Dispatcher: analysis.NewDispatcher(cat, 2),
		Backends:   map[string]analysis.Backend{backendKey(types.AnalysisOCR, "stub"): &stubBackend{analysisType: types.AnalysisOCR}},
		Publisher:  status.NewPublisher(cat, "analysis_worker", "test-host"),
		Logger:     testLogger(),
		PollIdle:   10 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pool.Run(ctx, 1, "analysis")

	require.Eventually(t, func() bool {
		result, err := cat.FindAnalysisResult(context.Background(), &p.ID, v.DocumentID, v.ID, types.AnalysisOCR, "stub", "")
		return err == nil && result.Status == types.AnalysisComplete
	}, time.Second, 10*time.Millisecond)
}

func TestAnalysisPoolFailsJobWithNoRegisteredBackend(t *testing.T) {
	cat, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	v, p := insertPageForAnalysis(t, cat)

	pool := &AnalysisPool{
		Catalog:    cat,
		Dispatcher: analysis.NewDispatcher(cat, 2),
		Backends:   map[string]analysis.Backend{},
		Publisher:  status.NewPublisher(cat, "analysis_worker", "test-host-2"),
		Logger:     testLogger(),
		PollIdle:   10 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.runOne(ctx, &types.AnalysisJob{ID: 999, PageID: &p.ID, DocumentID: v.DocumentID, VersionID: v.ID, AnalysisType: types.AnalysisWhisper, Backend: "nonexistent"})

	_, err = cat.FindAnalysisResult(context.Background(), &p.ID, v.DocumentID, v.ID, types.AnalysisWhisper, "nonexistent", "")
	require.Error(t, err)
}
