package netdb

import (
	"context"
	"database/sql"
	"strings"
)

// createBaseSchema mirrors internal/catalog/sqlite's base schema,
// translated to MySQL DDL (AUTO_INCREMENT, JSON columns, DATETIME).
// CREATE TABLE IF NOT EXISTS keeps repeated Open calls idempotent.
func createBaseSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id VARCHAR(128) PRIMARY KEY,
			source VARCHAR(255) NOT NULL,
			canonical_url TEXT NOT NULL,
			title TEXT,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			INDEX idx_documents_source (source)
		)`,

		`CREATE TABLE IF NOT EXISTS versions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			document_id VARCHAR(128) NOT NULL,
			content_hash CHAR(64) NOT NULL,
			file_size BIGINT NOT NULL,
			mime_type VARCHAR(255) DEFAULT '',
			acquired_at DATETIME NOT NULL,
			source_url TEXT,
			original_filename TEXT,
			server_date DATETIME NULL,
			page_count INT DEFAULT 0,
			UNIQUE KEY uq_versions_doc_hash (document_id, content_hash),
			INDEX idx_versions_mime (mime_type),
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS pages (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			document_id VARCHAR(128) NOT NULL,
			version_id BIGINT NOT NULL,
			page_number INT NOT NULL,
			image_hash CHAR(64) NOT NULL,
			UNIQUE KEY uq_pages_doc_version_page (document_id, version_id, page_number),
			INDEX idx_pages_image_hash (image_hash),
			FOREIGN KEY (version_id) REFERENCES versions(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS analysis_results (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			page_id BIGINT NULL,
			document_id VARCHAR(128) NOT NULL,
			version_id BIGINT NOT NULL,
			analysis_type VARCHAR(64) NOT NULL,
			backend VARCHAR(128) NOT NULL,
			model VARCHAR(128) DEFAULT '',
			result_text LONGTEXT,
			confidence DOUBLE NULL,
			processing_time_ms BIGINT DEFAULT 0,
			status VARCHAR(32) NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL,
			metadata JSON NULL,
			FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
		)`,
		// MySQL treats all-NULL composite unique keys as distinct rows, the
		// same "nulls don't collide" behavior the sqlite partial indexes
		// rely on, so a single pair of unique keys covers both the
		// page-scoped and document-scoped uniqueness rules from spec §3.
		`CREATE UNIQUE INDEX idx_analysis_page_unique
			ON analysis_results(page_id, analysis_type, backend, model)`,
		`CREATE UNIQUE INDEX idx_analysis_doc_unique
			ON analysis_results(document_id, version_id, analysis_type, backend, model)`,

		`CREATE TABLE IF NOT EXISTS scrape_state (
			source VARCHAR(255) PRIMARY KEY,
			frontier JSON NULL,
			visited JSON NULL,
			pagination_cursor TEXT,
			last_error TEXT,
			last_success_at DATETIME NULL,
			politeness JSON NULL,
			degraded TINYINT DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS service_status (
			service_type VARCHAR(128) NOT NULL,
			host VARCHAR(255) NOT NULL,
			state VARCHAR(32) NOT NULL,
			current_source VARCHAR(255) DEFAULT '',
			started_at DATETIME NOT NULL,
			last_heartbeat DATETIME NOT NULL,
			counters JSON NULL,
			last_error TEXT,
			error_count BIGINT DEFAULT 0,
			PRIMARY KEY (service_type, host)
		)`,

		`CREATE TABLE IF NOT EXISTS fetch_jobs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			source VARCHAR(255) NOT NULL,
			url TEXT NOT NULL,
			expected_mime VARCHAR(255) DEFAULT '',
			claimed_by VARCHAR(255) DEFAULT '',
			claimed_until DATETIME NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			attempts INT DEFAULT 0,
			created_at DATETIME NOT NULL,
			INDEX idx_fetch_jobs_status (status, claimed_until)
		)`,

		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			page_id BIGINT NULL,
			document_id VARCHAR(128) NOT NULL,
			version_id BIGINT NOT NULL,
			analysis_type VARCHAR(64) NOT NULL,
			backend VARCHAR(128) NOT NULL,
			model VARCHAR(128) DEFAULT '',
			claimed_by VARCHAR(255) DEFAULT '',
			claimed_until DATETIME NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			attempts INT DEFAULT 0,
			created_at DATETIME NOT NULL,
			INDEX idx_analysis_jobs_status (status, claimed_until)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// MySQL's CREATE INDEX has no IF NOT EXISTS clause, so repeated
			// Open calls hit "duplicate key name" on the second run — the
			// same tolerate-and-continue idiom the teacher's own index
			// migrations use.
			if isDuplicateKeyError(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key name") || strings.Contains(msg, "already exists")
}
