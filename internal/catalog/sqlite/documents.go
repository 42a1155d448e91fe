package sqlite

import (
	"context"
	"database/sql"

	"github.com/foiacquire/foiacquire/internal/types"
)

// UpsertDocument inserts doc, or updates last_seen (and title, if newly
// known) if it already exists. A document's first_seen never changes once
// set (spec §3).
func (s *Store) UpsertDocument(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, source, canonical_url, title, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_seen = excluded.last_seen,
			title = CASE WHEN documents.title = '' THEN excluded.title ELSE documents.title END
	`, doc.ID, doc.Source, doc.CanonicalURL, doc.Title, doc.FirstSeen, doc.LastSeen)
	return wrapDBError("upsert document", err)
}

// GetDocument fetches a document by id. Returns catalog.ErrNotFound if
// absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, canonical_url, title, first_seen, last_seen
		FROM documents WHERE id = ?
	`, id)

	var d types.Document
	var title sql.NullString
	if err := row.Scan(&d.ID, &d.Source, &d.CanonicalURL, &title, &d.FirstSeen, &d.LastSeen); err != nil {
		return nil, wrapDBError("get document", err)
	}
	d.Title = title.String
	return &d, nil
}
