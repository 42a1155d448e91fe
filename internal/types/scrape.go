package types

import "time"

// PolitenessStats holds per-source request outcome counters, persisted
// with ScrapeState. The scheduler does not update it, and no component in
// this repository writes to its fields.
type PolitenessStats struct {
	RequestsIssued   int64
	PolitenessEvents int64 // count of 429/503 seen
	EffectiveRate    float64
	LastBackoff      time.Duration
}

// FrontierEntry is one URL awaiting discovery, at a given crawl depth.
type FrontierEntry struct {
	URL   string
	Depth int
}

// ScrapeState is the per-source crawl checkpoint: frontier, visited set,
// pagination cursor, and health. Persisted so crawls resume across
// restarts (visited set is NOT replayed into the frontier on resume).
type ScrapeState struct {
	Source         string
	Frontier       []FrontierEntry
	Visited        map[string]time.Time
	PaginationCursor string
	LastError      string
	LastSuccessAt  *time.Time
	Politeness     PolitenessStats
	Degraded       bool // set by AuthOrBlocked; discovery paused for this source
}

// ServiceState is the lifecycle state of a long-running worker.
type ServiceState string

const (
	ServiceStarting ServiceState = "starting"
	ServiceRunning  ServiceState = "running"
	ServiceIdle     ServiceState = "idle"
	ServiceError    ServiceState = "error"
	ServiceStopped  ServiceState = "stopped"
)

// ServiceStatus is a heartbeat row keyed by (service_type, host).
type ServiceStatus struct {
	ServiceType    string
	Host           string
	State          ServiceState
	CurrentSource  string
	StartedAt      time.Time
	LastHeartbeat  time.Time
	Counters       map[string]int64
	LastError      string
	ErrorCount     int64
}

// FetchJob is one pending or claimed discovery→fetch unit of work.
type FetchJob struct {
	ID            int64
	Source        string
	URL           string
	ExpectedMime  string
	ClaimedBy     string
	ClaimedUntil  *time.Time
	Attempts      int
	CreatedAt     time.Time
}

// AnalysisJob is one pending or claimed analysis request against a page or
// whole document.
type AnalysisJob struct {
	ID           int64
	PageID       *int64
	DocumentID   string
	VersionID    int64
	AnalysisType AnalysisType
	Backend      string
	Model        string
	ClaimedBy    string
	ClaimedUntil *time.Time
	Attempts     int
	CreatedAt    time.Time
}
