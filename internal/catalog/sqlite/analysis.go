package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/foiacquire/foiacquire/internal/types"
)

// UpsertAnalysisResult inserts r, relying on the unique partial indexes
// from the schema to serialize races on the same (target, analysis_type,
// backend, model) key: the loser of a concurrent insert gets a conflict,
// treated here as a no-op success with inserted=false (spec §5's "exactly
// one worker wins" guarantee).
func (s *Store) UpsertAnalysisResult(ctx context.Context, r *types.AnalysisResult) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO analysis_results (
			page_id, document_id, version_id, analysis_type, backend, model,
			result_text, confidence, processing_time_ms, status, error, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.PageID, r.DocumentID, r.VersionID, string(r.AnalysisType), r.Backend, r.Model,
		r.ResultText, r.Confidence, r.ProcessingTimeMs, string(r.Status), r.Error, r.CreatedAt, r.Metadata)
	if err != nil {
		return false, wrapDBError("upsert analysis result", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		id, err := res.LastInsertId()
		if err == nil {
			r.ID = id
		}
		return true, nil
	}
	return false, nil
}

// FindAnalysisResult looks up the row for an exact (target, analysis_type,
// backend, model) key.
func (s *Store) FindAnalysisResult(ctx context.Context, pageID *int64, documentID string, versionID int64, analysisType types.AnalysisType, backend, model string) (*types.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var query string
	var args []interface{}
	if pageID != nil {
		query = `SELECT ` + analysisColumns + ` FROM analysis_results WHERE page_id = ? AND analysis_type = ? AND backend = ? AND model = ?`
		args = []interface{}{*pageID, string(analysisType), backend, model}
	} else {
		query = `SELECT ` + analysisColumns + ` FROM analysis_results WHERE page_id IS NULL AND document_id = ? AND version_id = ? AND analysis_type = ? AND backend = ? AND model = ?`
		args = []interface{}{documentID, versionID, string(analysisType), backend, model}
	}

	r, err := scanAnalysisRow(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, wrapDBError("find analysis result", err)
	}
	return r, nil
}

// FindAnalysisByImageHash looks up any existing result for the same
// (analysis_type, backend, model) whose source page rendered to the same
// image_hash — the dedup path from spec §4.8/§4.7. Excludes failed rows so
// a prior failure doesn't get silently adopted as success.
func (s *Store) FindAnalysisByImageHash(ctx context.Context, imageHash string, analysisType types.AnalysisType, backend, model string) (*types.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + analysisColumns + `
		FROM analysis_results ar
		JOIN pages p ON p.id = ar.page_id
		WHERE p.image_hash = ?
		  AND ar.analysis_type = ? AND ar.backend = ? AND ar.model = ?
		  AND ar.status = 'complete'
		LIMIT 1
	`
	r, err := scanAnalysisRow(s.db.QueryRowContext(ctx, query, imageHash, string(analysisType), backend, model))
	if err != nil {
		return nil, wrapDBError("find analysis by image hash", err)
	}
	return r, nil
}

const analysisColumns = `id, page_id, document_id, version_id, analysis_type, backend, model,
	result_text, confidence, processing_time_ms, status, error, created_at, metadata`

func scanAnalysisRow(row rowScanner) (*types.AnalysisResult, error) {
	var r types.AnalysisResult
	var pageID sql.NullInt64
	var analysisType, status string
	var confidence sql.NullFloat64

	if err := row.Scan(
		&r.ID, &pageID, &r.DocumentID, &r.VersionID, &analysisType, &r.Backend, &r.Model,
		&r.ResultText, &confidence, &r.ProcessingTimeMs, &status, &r.Error, &r.CreatedAt, &r.Metadata,
	); err != nil {
		return nil, err
	}
	if pageID.Valid {
		id := pageID.Int64
		r.PageID = &id
	}
	r.AnalysisType = types.AnalysisType(analysisType)
	r.Status = types.AnalysisStatus(status)
	if confidence.Valid {
		c := confidence.Float64
		r.Confidence = &c
	}
	return &r, nil
}
