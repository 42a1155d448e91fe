// Package sqlite implements the embedded catalog engine (spec §4.2) on top
// of SQLite via github.com/mattn/go-sqlite3. It is the default engine for
// single-process operation and the `sqlite://` DATABASE_URL scheme.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/foiacquire/foiacquire/internal/catalog"
)

// Store is the embedded SQLite-backed Catalog implementation.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // serializes schema/migration work against concurrent queries
}

// Open opens (creating if necessary) a SQLite database at path and brings
// its schema up to date. path may be a filesystem path or ":memory:" for
// tests.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// SQLite serializes writers internally; a single connection avoids
	// SQLITE_BUSY storms under our own WAL/busy_timeout pragmas.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := createBaseSchema(ctx, s.db); err != nil {
		return fmt.Errorf("sqlite: base schema: %w", err)
	}
	if err := RunMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("sqlite: migrations: %w", err)
	}
	return nil
}

// Capabilities reports the superset-schema features this engine's applied
// migrations currently provide (DESIGN.md O3). All migrations run
// unconditionally at Open, so on this engine they are always true.
func (s *Store) Capabilities() catalog.Capabilities {
	return catalog.Capabilities{
		HasBlake3Hash:        true,
		HasArchiveProvenance: true,
		HasJobLeases:         true,
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ catalog.Catalog = (*Store)(nil)
