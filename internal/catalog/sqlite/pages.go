package sqlite

import (
	"context"
	"fmt"

	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/types"
)

// InsertPages persists page rows for an already-stored version
// (catalog.Catalog's InsertPages — see its doc comment for why this is
// separate from InsertVersionWithPages). ON CONFLICT ... DO UPDATE (which
// overwrites image_hash) makes re-running decomposition on the same
// version idempotent; the version's
// page_count is refreshed to match.
func (s *Store) InsertPages(ctx context.Context, pages []*types.Page) error {
	if len(pages) == 0 {
		return nil
	}
	for _, p := range pages {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	versionID := pages[0].VersionID
	for _, p := range pages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pages (document_id, version_id, page_number, image_hash)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(document_id, version_id, page_number) DO UPDATE SET image_hash = excluded.image_hash
		`, p.DocumentID, p.VersionID, p.PageNumber, p.ImageHash); err != nil {
			return wrapDBError("insert page", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE versions SET page_count = (SELECT COUNT(*) FROM pages WHERE version_id = ?) WHERE id = ?
	`, versionID, versionID); err != nil {
		return wrapDBError("update page count", err)
	}

	return tx.Commit()
}

// ListPages returns all pages for a version, ordered by page number.
func (s *Store) ListPages(ctx context.Context, versionID int64) ([]*types.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, version_id, page_number, image_hash
		FROM pages WHERE version_id = ? ORDER BY page_number
	`, versionID)
	if err != nil {
		return nil, wrapDBError("list pages", err)
	}
	defer rows.Close()

	var out []*types.Page
	for rows.Next() {
		var p types.Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.VersionID, &p.PageNumber, &p.ImageHash); err != nil {
			return nil, wrapDBError("scan page", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// ListPagesMissingAnalysis returns pages that have no analysis_results row
// for the given (analysis_type, backend, model) key — the dispatcher's
// backlog query (spec §4.2, §4.8).
func (s *Store) ListPagesMissingAnalysis(ctx context.Context, filter catalog.PageFilter) ([]*types.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.document_id, p.version_id, p.page_number, p.image_hash
		FROM pages p
		WHERE NOT EXISTS (
			SELECT 1 FROM analysis_results ar
			WHERE ar.page_id = p.id
			  AND ar.analysis_type = ?
			  AND ar.backend = ?
			  AND ar.model = ?
		)
	`, string(filter.AnalysisType), filter.Backend, filter.Model)
	if err != nil {
		return nil, wrapDBError("list pages missing analysis", err)
	}
	defer rows.Close()

	var out []*types.Page
	for rows.Next() {
		var p types.Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.VersionID, &p.PageNumber, &p.ImageHash); err != nil {
			return nil, wrapDBError("scan page", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
