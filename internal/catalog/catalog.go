// Package catalog defines the persistence interface for documents,
// versions, pages, analysis results, archive snapshots, scrape state, and
// service status (spec §4.2). Two engines implement it —
// internal/catalog/sqlite (embedded) and internal/catalog/netdb
// (networked, MySQL-wire) — exposing identical row shapes per the
// superset-schema rule in DESIGN.md O3.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/foiacquire/foiacquire/internal/types"
)

// Sentinel errors shared by both engines, mirroring the teacher's
// wrapDBError convention of normalizing sql.ErrNoRows and unique-index
// violations to typed sentinels instead of leaking driver-specific errors.
var (
	ErrNotFound           = errors.New("catalog: not found")
	ErrConflict           = errors.New("catalog: conflict")
	ErrUnsupportedColumn  = errors.New("catalog: column not supported by this engine's current schema")
)

// Capabilities reports which superset-schema features an engine's
// currently-applied migrations provide (DESIGN.md O3).
type Capabilities struct {
	HasBlake3Hash        bool
	HasArchiveProvenance bool
	HasJobLeases         bool
}

// VersionFilter narrows ListVersions queries. Both engines apply only
// MimeType; MissingArchiveCheck is not applied by ListVersions (versions
// lacking a recent archive check are listed by
// ListVersionsNeedingArchiveCheck).
type VersionFilter struct {
	MimeType           string
	MissingArchiveCheck *ArchiveCheckFilter
}

// ArchiveCheckFilter selects versions lacking a recent check against Service.
type ArchiveCheckFilter struct {
	Service  string
	OlderThan time.Time
}

// PageFilter narrows ListPagesMissingAnalysis queries.
type PageFilter struct {
	AnalysisType types.AnalysisType
	Backend      string
	Model        string
}

// Catalog is the full persistence surface the rest of the pipeline depends
// on. Every write that must be transactional (spec §4.2) is expressed as
// its own method rather than exposing a raw *sql.Tx, so both engines can
// enforce the same boundary.
type Catalog interface {
	Capabilities() Capabilities

	// Documents & versions
	UpsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	// InsertVersionWithPages inserts doc (if new), the version (if its
	// (document_id, content_hash) pair is new — an idempotent skip
	// otherwise), and the given pages, all within one transaction (spec
	// §4.2, §4.6). Returns the version as stored and whether it was newly
	// inserted.
	InsertVersionWithPages(ctx context.Context, doc *types.Document, v *types.Version, pages []*types.Page) (stored *types.Version, inserted bool, err error)
	GetVersionByHash(ctx context.Context, documentID, contentHash string) (*types.Version, error)
	ListVersions(ctx context.Context, filter VersionFilter) ([]*types.Version, error)
	DeleteVersion(ctx context.Context, versionID int64) error

	// Pages
	// InsertPages persists page rows for an already-stored version, used
	// by the page decomposer (C7) which runs after the fetch pipeline's
	// own version+pages transaction (spec §4.7: decomposition happens once
	// a version has been enqueued for it, not inline with the fetch). Pages
	// already present for (document_id, version_id, page_number) are
	// updated in place (image_hash is overwritten), so re-running
	// decomposition on a version is idempotent.
	InsertPages(ctx context.Context, pages []*types.Page) error
	ListPages(ctx context.Context, versionID int64) ([]*types.Page, error)
	ListPagesMissingAnalysis(ctx context.Context, filter PageFilter) ([]*types.Page, error)

	// Analysis results
	UpsertAnalysisResult(ctx context.Context, r *types.AnalysisResult) (inserted bool, err error)
	FindAnalysisResult(ctx context.Context, pageID *int64, documentID string, versionID int64, analysisType types.AnalysisType, backend, model string) (*types.AnalysisResult, error)
	FindAnalysisByImageHash(ctx context.Context, imageHash string, analysisType types.AnalysisType, backend, model string) (*types.AnalysisResult, error)

	// Archive provenance
	InsertArchiveSnapshot(ctx context.Context, s *types.ArchiveSnapshot) error
	RecordArchiveCheck(ctx context.Context, c *types.ArchiveCheck) error
	UpdateEarliestArchived(ctx context.Context, versionID int64, at time.Time) error
	ListVersionsNeedingArchiveCheck(ctx context.Context, service string, olderThan time.Time, limit int) ([]*types.Version, error)

	// Scrape state
	LoadScrapeState(ctx context.Context, source string) (*types.ScrapeState, error)
	SaveScrapeState(ctx context.Context, state *types.ScrapeState) error

	// Service status
	UpsertServiceStatus(ctx context.Context, s *types.ServiceStatus) error
	ListServiceStatus(ctx context.Context) ([]*types.ServiceStatus, error)

	// Job queue
	EnqueueFetchJob(ctx context.Context, j *types.FetchJob) error
	ClaimFetchJob(ctx context.Context, claimedBy string, lease time.Duration) (*types.FetchJob, error)
	CompleteFetchJob(ctx context.Context, id int64, outcome types.ErrKind) error
	EnqueueAnalysisJob(ctx context.Context, j *types.AnalysisJob) error
	ClaimAnalysisJob(ctx context.Context, claimedBy string, lease time.Duration) (*types.AnalysisJob, error)
	CompleteAnalysisJob(ctx context.Context, id int64, outcome types.ErrKind) error
	ReapExpiredLeases(ctx context.Context) (int, error)

	Close() error
}
