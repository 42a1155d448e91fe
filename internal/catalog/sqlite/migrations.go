package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one named, idempotent schema change, applied in order.
// Mirrors the teacher's migration-list shape (internal/storage/dolt's
// []Migration + RunMigrations), adapted to this package's single-file
// layout since the embedded engine here has far fewer migrations than the
// teacher's issue tracker accumulated.
type migration struct {
	name string
	fn   func(context.Context, *sql.DB) error
}

// migrations is the ordered list of schema changes applied after the base
// schema. Each is idempotent: safe to re-run against an already-migrated
// database.
var migrations = []migration{
	{"content_hash_blake3", migrateContentHashBlake3},
	{"archive_provenance", migrateArchiveProvenance},
	{"job_leases", migrateJobLeases},
}

// RunMigrations applies all registered migrations in order.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if err := m.fn(ctx, db); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

func sqliteColumnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func sqliteAddColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, colType string) error {
	exists, err := sqliteColumnExists(ctx, db, table, column)
	if err != nil {
		return fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, colType))
	return err
}

// migrateContentHashBlake3 adds the BLAKE3 digest column to versions. This
// was added after content_hash (SHA-256) shipped, per spec §9's note that
// content_hash_blake3 was historically added to only one engine first —
// here both engines carry the migration, closing that gap rather than
// reproducing it.
func migrateContentHashBlake3(ctx context.Context, db *sql.DB) error {
	return sqliteAddColumnIfNotExists(ctx, db, "versions", "content_hash_blake3", "TEXT DEFAULT ''")
}

// migrateArchiveProvenance adds the archive_snapshots and archive_checks
// tables plus the version-level earliest_archived_at/archive_snapshot_id
// columns (spec §3, §4.9).
func migrateArchiveProvenance(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archive_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service TEXT NOT NULL,
			original_url TEXT NOT NULL,
			archive_url TEXT NOT NULL,
			captured_at TIMESTAMP NOT NULL,
			http_status INTEGER DEFAULT 0,
			mimetype TEXT DEFAULT '',
			content_length INTEGER DEFAULT 0,
			digest TEXT DEFAULT '',
			metadata BLOB
		)`); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archive_checks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version_id INTEGER NOT NULL,
			service TEXT NOT NULL,
			checked_at TIMESTAMP NOT NULL,
			outcome TEXT NOT NULL,
			UNIQUE(version_id, service)
		)`); err != nil {
		return err
	}

	if err := sqliteAddColumnIfNotExists(ctx, db, "versions", "archive_snapshot_id", "INTEGER"); err != nil {
		return err
	}
	return sqliteAddColumnIfNotExists(ctx, db, "versions", "earliest_archived_at", "TIMESTAMP")
}

// migrateJobLeases adds visibility-lease bookkeeping already present in
// the base fetch_jobs/analysis_jobs tables for fresh databases; kept as an
// explicit migration step so a pre-lease-era database (no claimed_until
// column) upgrades cleanly, matching the teacher's "ALTER TABLE ADD
// COLUMN" upgrade path for long-lived installations.
func migrateJobLeases(ctx context.Context, db *sql.DB) error {
	if err := sqliteAddColumnIfNotExists(ctx, db, "fetch_jobs", "claimed_until", "TIMESTAMP"); err != nil {
		return err
	}
	return sqliteAddColumnIfNotExists(ctx, db, "analysis_jobs", "claimed_until", "TIMESTAMP")
}
