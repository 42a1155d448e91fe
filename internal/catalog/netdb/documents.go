package netdb

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

	_, err := s.execContext(ctx, `
		INSERT INTO documents (id, source, canonical_url, title, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			last_seen = VALUES(last_seen),
			title = IF(title = '' OR title IS NULL, VALUES(title), title)
	`, doc.ID, doc.Source, doc.CanonicalURL, doc.Title, doc.FirstSeen, doc.LastSeen)
	return wrapDBError("upsert document", err)
}

// GetDocument fetches a document by id. Returns catalog.ErrNotFound if
// absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d types.Document
	var title sql.NullString
	err := s.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&d.ID, &d.Source, &d.CanonicalURL, &title, &d.FirstSeen, &d.LastSeen)
	}, `
		SELECT id, source, canonical_url, title, first_seen, last_seen
		FROM documents WHERE id = ?
	`, id)
	if err != nil {
		return nil, wrapDBError("get document", err)
	}
	d.Title = title.String
	return &d, nil
}
