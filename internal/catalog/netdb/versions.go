package netdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/types"
)

// InsertVersionWithPages mirrors internal/catalog/sqlite's method of the
// same name: one transaction upserts the document, detects whether
// (document_id, content_hash) already exists (an idempotent no-op if so),
// and otherwise inserts the version and its pages (spec §4.2, §4.6).
func (s *Store) InsertVersionWithPages(ctx context.Context, doc *types.Document, v *types.Version, pages []*types.Page) (*types.Version, bool, error) {
	if err := doc.Validate(); err != nil {
		return nil, false, err
	}
	if err := v.Validate(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *types.Version
	var inserted bool
	err := s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, source, canonical_url, title, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE last_seen = VALUES(last_seen)
		`, doc.ID, doc.Source, doc.CanonicalURL, doc.Title, doc.FirstSeen, doc.LastSeen); err != nil {
			return wrapDBError("upsert document in version tx", err)
		}

		existing, err := scanVersionRow(tx.QueryRowContext(ctx, `
			SELECT id, document_id, content_hash, content_hash_blake3, file_size, mime_type,
			       acquired_at, source_url, original_filename, server_date, page_count,
			       archive_snapshot_id, earliest_archived_at
			FROM versions WHERE document_id = ? AND content_hash = ?
		`, v.DocumentID, v.ContentHash))
		if err == nil {
			if cerr := tx.Commit(); cerr != nil {
				return fmt.Errorf("commit no-op tx: %w", cerr)
			}
			result, inserted = existing, false
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return wrapDBError("check existing version", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO versions (
				document_id, content_hash, content_hash_blake3, file_size, mime_type,
				acquired_at, source_url, original_filename, server_date, page_count
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, v.DocumentID, v.ContentHash, v.ContentHashBlake3, v.FileSize, v.MimeType,
			v.AcquiredAt, v.SourceURL, v.OriginalFilename, v.ServerDate, len(pages))
		if err != nil {
			return wrapDBError("insert version", err)
		}
		versionID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("version last insert id: %w", err)
		}
		v.ID = versionID
		v.PageCount = len(pages)

		for _, p := range pages {
			p.VersionID = versionID
			p.DocumentID = v.DocumentID
			if err := p.Validate(); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pages (document_id, version_id, page_number, image_hash)
				VALUES (?, ?, ?, ?)
			`, p.DocumentID, p.VersionID, p.PageNumber, p.ImageHash); err != nil {
				return wrapDBError("insert page", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit version tx: %w", err)
		}
		result, inserted = v, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, inserted, nil
}

// GetVersionByHash returns the stored version for (documentID, contentHash),
// or catalog.ErrNotFound.
func (s *Store) GetVersionByHash(ctx context.Context, documentID, contentHash string) (*types.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryContext(ctx, `
		SELECT id, document_id, content_hash, content_hash_blake3, file_size, mime_type,
		       acquired_at, source_url, original_filename, server_date, page_count,
		       archive_snapshot_id, earliest_archived_at
		FROM versions WHERE document_id = ? AND content_hash = ?
	`, documentID, contentHash)
	if err != nil {
		return nil, wrapDBError("get version by hash", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, wrapDBError("get version by hash", sql.ErrNoRows)
	}
	v, err := scanVersionRow(rows)
	if err != nil {
		return nil, wrapDBError("scan version", err)
	}
	return v, nil
}

// ListVersions returns versions matching filter (spec §4.2 range queries).
func (s *Store) ListVersions(ctx context.Context, filter catalog.VersionFilter) ([]*types.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, document_id, content_hash, content_hash_blake3, file_size, mime_type,
		       acquired_at, source_url, original_filename, server_date, page_count,
		       archive_snapshot_id, earliest_archived_at
		FROM versions`
	var args []interface{}
	if filter.MimeType != "" {
		query += " WHERE mime_type = ?"
		args = append(args, filter.MimeType)
	}

	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list versions", err)
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

// DeleteVersion removes a version and cascades to its pages and analysis
// results (FK ON DELETE CASCADE). It does not remove the CAS blob, since
// another version may reference the same content hash (spec §3 ownership
// note).
func (s *Store) DeleteVersion(ctx context.Context, versionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execContext(ctx, `DELETE FROM versions WHERE id = ?`, versionID)
	return wrapDBError("delete version", err)
}

// rowScanner abstracts over *sql.Row and *sql.Rows for scanVersionRow.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersionRow(row rowScanner) (*types.Version, error) {
	var v types.Version
	var mimeType, sourceURL, originalFilename sql.NullString
	var serverDate, earliestArchivedAt sql.NullTime
	var archiveSnapshotID sql.NullInt64
	var blake3Hash sql.NullString

	if err := row.Scan(
		&v.ID, &v.DocumentID, &v.ContentHash, &blake3Hash, &v.FileSize, &mimeType,
		&v.AcquiredAt, &sourceURL, &originalFilename, &serverDate, &v.PageCount,
		&archiveSnapshotID, &earliestArchivedAt,
	); err != nil {
		return nil, err
	}

	v.ContentHashBlake3 = blake3Hash.String
	v.MimeType = mimeType.String
	v.SourceURL = sourceURL.String
	v.OriginalFilename = originalFilename.String
	if serverDate.Valid {
		t := serverDate.Time
		v.ServerDate = &t
	}
	if earliestArchivedAt.Valid {
		t := earliestArchivedAt.Time
		v.EarliestArchivedAt = &t
	}
	if archiveSnapshotID.Valid {
		id := archiveSnapshotID.Int64
		v.ArchiveSnapshotID = &id
	}
	return &v, nil
}
