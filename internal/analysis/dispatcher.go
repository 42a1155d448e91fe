// Package analysis implements the analysis dispatcher (spec.md §4.8): it
// routes page/document inputs to pluggable backends (OCR, transcription,
// custom tools), deduplicates by (analysis_type, backend, model, image
// hash), and records results idempotently via the catalog's unique-index
// upserts.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/types"
)

// Input describes one analysis target: a page (ImageHash set) or a whole
// document/version (PageID nil).
type Input struct {
	PageID     *int64
	DocumentID string
	VersionID  int64
	ImageHash  string // set when PageID is set; used for cross-page dedup
}

// Backend is a concrete analyzer (spec.md §4.8's "Tesseract-class, pure-
// arithmetic OCR, CNN-based, vision-language-model" — all opaque to the
// dispatcher behind this interface).
type Backend interface {
	// AnalysisType identifies what this backend produces ("ocr", "whisper",
	// "custom:<name>").
	AnalysisType() types.AnalysisType
	// Name is the backend tag recorded on result rows (e.g. "tesseract").
	Name() string
	// RequiresPageImage reports whether this backend analyzes one page's
	// rendered image (true) or a whole document's bytes (false).
	RequiresPageImage() bool
	// Analyze runs the backend against input, returning result text,
	// optional confidence, and any backend-specific metadata.
	Analyze(ctx context.Context, input Input) (text string, confidence *float64, metadata []byte, err error)
}

// Request is one dispatch call: an input plus the requested backend and
// model (spec.md §4.8's "(analysis_type, backend, model)").
type Request struct {
	Input   Input
	Backend Backend
	Model   string
	Timeout time.Duration
}

// Dispatcher gates concurrent backend invocations behind a worker-pool
// semaphore, the same golang.org/x/sync primitive the teacher's daemon and
// coop packages use for bounded concurrent fan-out (SPEC_FULL.md §4.8).
type Dispatcher struct {
	Catalog catalog.Catalog
	sem     *semaphore.Weighted
}

// NewDispatcher builds a Dispatcher allowing up to maxConcurrent backend
// invocations at once.
func NewDispatcher(cat catalog.Catalog, maxConcurrent int64) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Dispatcher{Catalog: cat, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Dispatch runs req per spec.md §4.8: first consult the catalog for an
// exact-key match or a same-(analysis_type, backend, model, image_hash)
// match on any other page; if found, adopt it by reference. Otherwise
// invoke the backend under the worker-pool gate and persist the result
// (or a failed row on error).
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*types.AnalysisResult, error) {
	analysisType := req.Backend.AnalysisType()

	if existing, err := d.Catalog.FindAnalysisResult(ctx, req.Input.PageID, req.Input.DocumentID, req.Input.VersionID, analysisType, req.Backend.Name(), req.Model); err == nil {
		// Exact key already complete or pending; spec.md's idempotence law
		// — re-running a completed (page, type, backend, model) analysis is
		// a no-op, no duplicate row, no backend call.
		return existing, nil
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("analysis: lookup existing result: %w", err)
	}

	if req.Input.PageID != nil && req.Input.ImageHash != "" {
		if cached, err := d.Catalog.FindAnalysisByImageHash(ctx, req.Input.ImageHash, analysisType, req.Backend.Name(), req.Model); err == nil {
			adopted := &types.AnalysisResult{
				PageID:           req.Input.PageID,
				DocumentID:       req.Input.DocumentID,
				VersionID:        req.Input.VersionID,
				AnalysisType:     analysisType,
				Backend:          req.Backend.Name(),
				Model:            req.Model,
				ResultText:       cached.ResultText,
				Confidence:       cached.Confidence,
				ProcessingTimeMs: 0, // cache hit: negligible, spec.md §8 scenario 5
				Status:           types.AnalysisComplete,
				CreatedAt:        time.Now(),
				Metadata:         cached.Metadata,
			}
			if _, err := d.Catalog.UpsertAnalysisResult(ctx, adopted); err != nil {
				return nil, fmt.Errorf("analysis: adopt cached result: %w", err)
			}
			return adopted, nil
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("analysis: lookup image-hash cache: %w", err)
		}
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, confidence, metadata, runErr := req.Backend.Analyze(runCtx, req.Input)
	elapsed := time.Since(start).Milliseconds()

	result := &types.AnalysisResult{
		PageID:           req.Input.PageID,
		DocumentID:       req.Input.DocumentID,
		VersionID:        req.Input.VersionID,
		AnalysisType:     analysisType,
		Backend:          req.Backend.Name(),
		Model:            req.Model,
		ProcessingTimeMs: elapsed,
		CreatedAt:        time.Now(),
		Metadata:         metadata,
	}
	if runErr != nil {
		result.Status = types.AnalysisFailed
		result.Error = runErr.Error()
	} else {
		result.Status = types.AnalysisComplete
		result.ResultText = text
		result.Confidence = confidence
	}

	if _, err := d.Catalog.UpsertAnalysisResult(ctx, result); err != nil {
		return nil, types.NewPipelineError(types.ErrKindStorageFailure, "analysis.dispatch", err)
	}
	if runErr != nil {
		return result, types.NewPipelineError(types.ErrKindBackendFailure, "analysis.dispatch", runErr)
	}
	return result, nil
}
