package sqlite

import (
	"context"
	"time"

	"github.com/foiacquire/foiacquire/internal/types"
)

// InsertArchiveSnapshot records one snapshot returned by an external
// archive service (spec §4.9).
func (s *Store) InsertArchiveSnapshot(ctx context.Context, snap *types.ArchiveSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_snapshots (
			service, original_url, archive_url, captured_at, http_status,
			mimetype, content_length, digest, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.Service, snap.OriginalURL, snap.ArchiveURL, snap.CapturedAt, snap.HTTPStatus,
		snap.Mimetype, snap.ContentLength, snap.Digest, snap.Metadata)
	return wrapDBError("insert archive snapshot", err)
}

// RecordArchiveCheck memoizes the outcome of a (version, service) query,
// upserting on the UNIQUE(version_id, service) index.
func (s *Store) RecordArchiveCheck(ctx context.Context, c *types.ArchiveCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_checks (version_id, service, checked_at, outcome)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(version_id, service) DO UPDATE SET
			checked_at = excluded.checked_at,
			outcome = excluded.outcome
	`, c.VersionID, c.Service, c.CheckedAt, string(c.Outcome))
	return wrapDBError("record archive check", err)
}

// UpdateEarliestArchived sets versions.earliest_archived_at to at if it is
// currently unset or later than at (spec §4.9: "updates if earlier").
func (s *Store) UpdateEarliestArchived(ctx context.Context, versionID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE versions
		SET earliest_archived_at = ?
		WHERE id = ?
		  AND (earliest_archived_at IS NULL OR earliest_archived_at > ?)
	`, at, versionID, at)
	return wrapDBError("update earliest archived", err)
}

// ListVersionsNeedingArchiveCheck returns versions with no archive_checks
// row for service newer than olderThan (spec §4.2's range query, §4.9's
// scheduling input).
func (s *Store) ListVersionsNeedingArchiveCheck(ctx context.Context, service string, olderThan time.Time, limit int) ([]*types.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.document_id, v.content_hash, v.content_hash_blake3, v.file_size, v.mime_type,
		       v.acquired_at, v.source_url, v.original_filename, v.server_date, v.page_count,
		       v.archive_snapshot_id, v.earliest_archived_at
		FROM versions v
		WHERE NOT EXISTS (
			SELECT 1 FROM archive_checks c
			WHERE c.version_id = v.id AND c.service = ? AND c.checked_at >= ?
		)
		LIMIT ?
	`, service, olderThan, limit)
	if err != nil {
		return nil, wrapDBError("list versions needing archive check", err)
	}
	defer rows.Close()

	var out []*types.Version
	for rows.Next() {
		v, err := scanVersionRow(rows)
		if err != nil {
			return nil, wrapDBError("scan version", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
