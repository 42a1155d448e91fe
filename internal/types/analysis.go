package types

import "time"

// AnalysisType identifies the kind of analysis performed on a page or
// document. Custom tool outputs use the "custom:<name>" form.
type AnalysisType string

const (
	AnalysisOCR        AnalysisType = "ocr"
	AnalysisWhisper    AnalysisType = "whisper"
	CustomAnalysisPrefix            = "custom:"
)

// AnalysisStatus is the lifecycle state of an analysis result row.
type AnalysisStatus string

const (
	AnalysisPending  AnalysisStatus = "pending"
	AnalysisComplete AnalysisStatus = "complete"
	AnalysisFailed   AnalysisStatus = "failed"
)

// AnalysisResult records one (page-or-document, analysis_type, backend,
// model) outcome. A non-nil PageID addresses one page; with PageID nil,
// DocumentID+VersionID address the whole version. Validate requires at
// least one of the two.
type AnalysisResult struct {
	ID               int64
	PageID           *int64
	DocumentID       string
	VersionID        int64
	AnalysisType     AnalysisType
	Backend          string
	Model            string // optional; "" participates in the unique index via COALESCE
	ResultText       string
	Confidence       *float64 // [0,1]
	ProcessingTimeMs int64
	Status           AnalysisStatus
	Error            string
	CreatedAt        time.Time
	Metadata         []byte // opaque JSON
}

func (a *AnalysisResult) Validate() error {
	if a.AnalysisType == "" {
		return errRequired("analysis_type")
	}
	if a.Backend == "" {
		return errRequired("backend")
	}
	if a.PageID == nil && (a.DocumentID == "" || a.VersionID == 0) {
		return errInvalid("page_id/document_id", "one of page_id or (document_id, version_id) is required")
	}
	if a.Confidence != nil && (*a.Confidence < 0 || *a.Confidence > 1) {
		return errInvalid("confidence", "must be within [0,1]")
	}
	switch a.Status {
	case AnalysisPending, AnalysisComplete, AnalysisFailed:
	default:
		return errInvalid("status", "must be pending, complete, or failed")
	}
	if a.Status == AnalysisComplete && a.ResultText == "" && a.Metadata == nil {
		// Empty string is a valid result (blank page); no further check needed.
		_ = a.ResultText
	}
	return nil
}

// ArchiveSnapshot is one record retrieved from an external web archive.
type ArchiveSnapshot struct {
	ID            int64
	Service       string // "wayback", "archive_today", ...
	OriginalURL   string
	ArchiveURL    string
	CapturedAt    time.Time
	HTTPStatus    int
	Mimetype      string
	ContentLength int64
	Digest        string
	Metadata      []byte
}

// ArchiveCheckOutcome is the result of one provenance query against a
// service for a given version.
type ArchiveCheckOutcome string

const (
	ArchiveVerified    ArchiveCheckOutcome = "verified"
	ArchiveNewVersions ArchiveCheckOutcome = "new_versions"
	ArchiveNoSnapshots ArchiveCheckOutcome = "no_snapshots"
	ArchiveError       ArchiveCheckOutcome = "error"
)

// ArchiveCheck memoizes the last query against (version, service).
type ArchiveCheck struct {
	ID        int64
	VersionID int64
	Service   string
	CheckedAt time.Time
	Outcome   ArchiveCheckOutcome
}
