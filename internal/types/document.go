// Package types defines the shared domain model for the acquisition pipeline:
// documents, versions, pages, analysis results, archive snapshots, scrape
// state, and service status. These are plain structs shared by the catalog
// interface and every component that reads or writes catalog rows.
package types

import "time"

// Document is the logical identity of a retrieved thing, keyed by a
// deterministic id derived from (source, canonical URL). A document exists
// iff at least one version exists for it.
type Document struct {
	ID          string
	Source      string
	CanonicalURL string
	Title       string // optional
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Validate checks that required fields are present and within bounds.
func (d *Document) Validate() error {
	if d.ID == "" {
		return errRequired("id")
	}
	if d.Source == "" {
		return errRequired("source")
	}
	if d.CanonicalURL == "" {
		return errRequired("canonical_url")
	}
	return nil
}

// Version is an immutable snapshot of a document's bytes.
type Version struct {
	ID                 int64
	DocumentID         string
	ContentHash         string // sha256, hex
	ContentHashBlake3    string // blake3, hex
	FileSize            int64
	MimeType            string
	AcquiredAt          time.Time
	SourceURL           string
	OriginalFilename    string
	ServerDate          *time.Time
	PageCount           int
	ArchiveSnapshotID   *int64
	EarliestArchivedAt  *time.Time
}

// Validate checks that required fields are present before a version is
// considered stored.
func (v *Version) Validate() error {
	if v.DocumentID == "" {
		return errRequired("document_id")
	}
	if v.ContentHash == "" {
		return errRequired("content_hash")
	}
	if v.ContentHashBlake3 == "" {
		return errRequired("content_hash_blake3")
	}
	if v.FileSize <= 0 {
		return errInvalid("file_size", "must be positive")
	}
	return nil
}

// Page is one subdivision of a paginated version (PDF page, TIFF frame,
// exploded email attachment). ImageHash dedups analysis across versions
// whose rendered pages are byte-identical.
type Page struct {
	ID         int64
	DocumentID string
	VersionID  int64
	PageNumber int // 1-based
	ImageHash  string
}

func (p *Page) Validate() error {
	if p.PageNumber < 1 {
		return errInvalid("page_number", "must be >= 1")
	}
	if p.DocumentID == "" {
		return errRequired("document_id")
	}
	if p.VersionID == 0 {
		return errRequired("version_id")
	}
	return nil
}
