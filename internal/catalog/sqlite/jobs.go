package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/foiacquire/foiacquire/internal/types"
)

// EnqueueFetchJob inserts a pending fetch job.
func (s *Store) EnqueueFetchJob(ctx context.Context, j *types.FetchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_jobs (source, url, expected_mime, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)
	`, j.Source, j.URL, j.ExpectedMime, j.CreatedAt)
	if err != nil {
		return wrapDBError("enqueue fetch job", err)
	}
	j.ID, err = res.LastInsertId()
	return err
}

// ClaimFetchJob claims one pending (or lease-expired) fetch job under a
// visibility lease, so a crashed worker's job becomes reclaimable once the
// lease expires (spec §6).
func (s *Store) ClaimFetchJob(ctx context.Context, claimedBy string, lease time.Duration) (*types.FetchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	until := now.Add(lease)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, source, url, expected_mime, claimed_by, claimed_until, attempts, created_at
		FROM fetch_jobs
		WHERE status = 'pending' AND (claimed_until IS NULL OR claimed_until < ?)
		ORDER BY id
		LIMIT 1
	`, now)

	var j types.FetchJob
	var claimedByCol sql.NullString
	var claimedUntil sql.NullTime
	if err := row.Scan(&j.ID, &j.Source, &j.URL, &j.ExpectedMime, &claimedByCol, &claimedUntil, &j.Attempts, &j.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapDBError("claim fetch job", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE fetch_jobs SET claimed_by = ?, claimed_until = ?, status = 'claimed', attempts = attempts + 1
		WHERE id = ?
	`, claimedBy, until, j.ID); err != nil {
		return nil, wrapDBError("mark fetch job claimed", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	j.ClaimedBy = claimedBy
	j.ClaimedUntil = &until
	j.Attempts++
	return &j, nil
}

// CompleteFetchJob marks a claimed job done. DuplicateContent and success
// both resolve the job; MalformedContent marks it permanently failed
// (spec §7 — does not halt the source); transient kinds return it to
// pending so a future claim retries it.
func (s *Store) CompleteFetchJob(ctx context.Context, id int64, outcome types.ErrKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "done"
	switch outcome {
	case types.ErrKindMalformedContent, types.ErrKindAuthOrBlocked:
		status = "failed"
	case types.ErrKindTransientNetwork, types.ErrKindStorageFailure, types.ErrKindRemotePoliteness:
		status = "pending"
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE fetch_jobs SET status = ?, claimed_by = '', claimed_until = NULL WHERE id = ?
	`, status, id)
	return wrapDBError("complete fetch job", err)
}

// EnqueueAnalysisJob inserts a pending analysis job.
func (s *Store) EnqueueAnalysisJob(ctx context.Context, j *types.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (page_id, document_id, version_id, analysis_type, backend, model, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
	`, j.PageID, j.DocumentID, j.VersionID, string(j.AnalysisType), j.Backend, j.Model, j.CreatedAt)
	if err != nil {
		return wrapDBError("enqueue analysis job", err)
	}
	j.ID, err = res.LastInsertId()
	return err
}

// ClaimAnalysisJob is ClaimFetchJob's counterpart for the analysis queue.
func (s *Store) ClaimAnalysisJob(ctx context.Context, claimedBy string, lease time.Duration) (*types.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	until := now.Add(lease)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, page_id, document_id, version_id, analysis_type, backend, model, claimed_by, claimed_until, attempts, created_at
		FROM analysis_jobs
		WHERE status = 'pending' AND (claimed_until IS NULL OR claimed_until < ?)
		ORDER BY id
		LIMIT 1
	`, now)

	var j types.AnalysisJob
	var pageID sql.NullInt64
	var analysisType string
	var claimedByCol sql.NullString
	var claimedUntil sql.NullTime
	if err := row.Scan(&j.ID, &pageID, &j.DocumentID, &j.VersionID, &analysisType, &j.Backend, &j.Model, &claimedByCol, &claimedUntil, &j.Attempts, &j.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapDBError("claim analysis job", err)
	}
	if pageID.Valid {
		id := pageID.Int64
		j.PageID = &id
	}
	j.AnalysisType = types.AnalysisType(analysisType)

	if _, err := tx.ExecContext(ctx, `
		UPDATE analysis_jobs SET claimed_by = ?, claimed_until = ?, status = 'claimed', attempts = attempts + 1
		WHERE id = ?
	`, claimedBy, until, j.ID); err != nil {
		return nil, wrapDBError("mark analysis job claimed", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	j.ClaimedBy = claimedBy
	j.ClaimedUntil = &until
	j.Attempts++
	return &j, nil
}

// CompleteAnalysisJob resolves a claimed analysis job (spec §4.8:
// failures write status="failed" and are retried only on operator
// request, so a BackendFailure outcome here marks the job failed rather
// than re-queuing it).
func (s *Store) CompleteAnalysisJob(ctx context.Context, id int64, outcome types.ErrKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "done"
	switch outcome {
	case types.ErrKindBackendFailure:
		status = "failed"
	case types.ErrKindTransientNetwork, types.ErrKindStorageFailure:
		status = "pending"
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status = ?, claimed_by = '', claimed_until = NULL WHERE id = ?
	`, status, id)
	return wrapDBError("complete analysis job", err)
}

// ReapExpiredLeases requeues fetch/analysis jobs whose claimed_until has
// passed without completion — a crashed worker's lease expiring (spec §6).
func (s *Store) ReapExpiredLeases(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var total int64

	res, err := s.db.ExecContext(ctx, `
		UPDATE fetch_jobs SET status = 'pending', claimed_by = '', claimed_until = NULL
		WHERE status = 'claimed' AND claimed_until < ?
	`, now)
	if err != nil {
		return 0, wrapDBError("reap fetch job leases", err)
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = s.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status = 'pending', claimed_by = '', claimed_until = NULL
		WHERE status = 'claimed' AND claimed_until < ?
	`, now)
	if err != nil {
		return int(total), wrapDBError("reap analysis job leases", err)
	}
	n, _ = res.RowsAffected()
	total += n

	return int(total), nil
}
