package sqlite

import (
	"context"
	"database/sql"
)

// createBaseSchema creates the tables as they existed before the
// migrations in migrations.go were introduced (spec §9's schema-drift note:
// content_hash_blake3, archive provenance, and job leases were all added
// after the original tables shipped). CREATE TABLE IF NOT EXISTS makes
// this idempotent across repeated Open calls.
func createBaseSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			canonical_url TEXT NOT NULL,
			title TEXT DEFAULT '',
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source)`,

		`CREATE TABLE IF NOT EXISTS versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content_hash TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			mime_type TEXT DEFAULT '',
			acquired_at TIMESTAMP NOT NULL,
			source_url TEXT DEFAULT '',
			original_filename TEXT DEFAULT '',
			server_date TIMESTAMP,
			page_count INTEGER DEFAULT 0,
			UNIQUE(document_id, content_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_versions_mime ON versions(mime_type)`,

		`CREATE TABLE IF NOT EXISTS pages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			version_id INTEGER NOT NULL REFERENCES versions(id) ON DELETE CASCADE,
			page_number INTEGER NOT NULL,
			image_hash TEXT NOT NULL,
			UNIQUE(document_id, version_id, page_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_image_hash ON pages(image_hash)`,

		`CREATE TABLE IF NOT EXISTS analysis_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			page_id INTEGER REFERENCES pages(id) ON DELETE CASCADE,
			document_id TEXT NOT NULL,
			version_id INTEGER NOT NULL,
			analysis_type TEXT NOT NULL,
			backend TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			result_text TEXT DEFAULT '',
			confidence REAL,
			processing_time_ms INTEGER DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			metadata BLOB
		)`,
		// Two partial unique indexes implement the "page_id set vs null"
		// uniqueness split from spec §3 (SQLite supports partial indexes).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_analysis_page_unique
			ON analysis_results(page_id, analysis_type, backend, model)
			WHERE page_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_analysis_doc_unique
			ON analysis_results(document_id, version_id, analysis_type, backend, model)
			WHERE page_id IS NULL`,

		`CREATE TABLE IF NOT EXISTS scrape_state (
			source TEXT PRIMARY KEY,
			frontier BLOB,
			visited BLOB,
			pagination_cursor TEXT DEFAULT '',
			last_error TEXT DEFAULT '',
			last_success_at TIMESTAMP,
			politeness BLOB,
			degraded INTEGER DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS service_status (
			service_type TEXT NOT NULL,
			host TEXT NOT NULL,
			state TEXT NOT NULL,
			current_source TEXT DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			last_heartbeat TIMESTAMP NOT NULL,
			counters BLOB,
			last_error TEXT DEFAULT '',
			error_count INTEGER DEFAULT 0,
			PRIMARY KEY (service_type, host)
		)`,

		`CREATE TABLE IF NOT EXISTS fetch_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			url TEXT NOT NULL,
			expected_mime TEXT DEFAULT '',
			claimed_by TEXT DEFAULT '',
			claimed_until TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_jobs_status ON fetch_jobs(status, claimed_until)`,

		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			page_id INTEGER,
			document_id TEXT NOT NULL,
			version_id INTEGER NOT NULL,
			analysis_type TEXT NOT NULL,
			backend TEXT NOT NULL,
			model TEXT DEFAULT '',
			claimed_by TEXT DEFAULT '',
			claimed_until TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status, claimed_until)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
