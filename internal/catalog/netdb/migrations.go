package netdb

import (
	"context"
	"database/sql"
)

// migration is the teacher's ordered, named, idempotent migration shape
// (internal/storage/sqlite/migrations.go), reused here for the networked
// engine so both catalog engines apply the same schema-drift history
// independently (DESIGN.md O3).
type migration struct {
	name string
	fn   func(context.Context, *sql.DB) error
}

var migrations = []migration{
	{"content_hash_blake3", migrateContentHashBlake3},
	{"archive_provenance", migrateArchiveProvenance},
	{"job_leases", migrateJobLeases},
}

// RunMigrations applies every migration not yet recorded, tracking
// applied names in a schema_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at DATETIME NOT NULL
		)
	`); err != nil {
		return err
	}

	for _, m := range migrations {
		var count int
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, m.name)
		if err := row.Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := m.fn(ctx, db); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (name, applied_at) VALUES (?, NOW())`, m.name); err != nil {
			return err
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var count int
	row := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?
	`, table, column)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, ddl string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, "ALTER TABLE "+table+" ADD COLUMN "+column+" "+ddl)
	return err
}

func migrateContentHashBlake3(ctx context.Context, db *sql.DB) error {
	return addColumnIfNotExists(ctx, db, "versions", "content_hash_blake3", "CHAR(64) NOT NULL DEFAULT ''")
}

func migrateArchiveProvenance(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archive_snapshots (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			service VARCHAR(64) NOT NULL,
			original_url TEXT NOT NULL,
			archive_url TEXT NOT NULL,
			captured_at DATETIME NOT NULL,
			http_status INT DEFAULT 0,
			mimetype VARCHAR(255) DEFAULT '',
			content_length BIGINT DEFAULT 0,
			digest VARCHAR(128) DEFAULT '',
			metadata JSON NULL
		)
	`); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archive_checks (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			version_id BIGINT NOT NULL,
			service VARCHAR(64) NOT NULL,
			checked_at DATETIME NOT NULL,
			outcome VARCHAR(32) NOT NULL,
			UNIQUE KEY uq_archive_checks_version_service (version_id, service)
		)
	`); err != nil {
		return err
	}
	if err := addColumnIfNotExists(ctx, db, "versions", "archive_snapshot_id", "BIGINT NULL"); err != nil {
		return err
	}
	return addColumnIfNotExists(ctx, db, "versions", "earliest_archived_at", "DATETIME NULL")
}

func migrateJobLeases(ctx context.Context, db *sql.DB) error {
	// claimed_until/claimed_by/status/attempts already ship in the base
	// schema's fetch_jobs/analysis_jobs tables here (unlike the embedded
	// engine, which added them after the fact) — kept as a no-op migration
	// entry so both engines' migration histories stay name-aligned.
	return nil
}
