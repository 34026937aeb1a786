package model

import (
	"context"
	"time"
)

// JobQuery filters and pages a job listing. Zero values mean "no filter";
// a non-positive Limit returns everything. Results are ordered by match
// score descending with unscored jobs last, then by last_seen descending.
type JobQuery struct {
	Status    string
	CompanyID string
	MinScore  *float64
	Search    string // case-insensitive substring over the title
	Limit     int
	Offset    int
}

// Stats is an aggregate snapshot of the jobs table.
type Stats struct {
	TotalJobs    int
	StatusCounts map[string]int
	ByCompany    map[string]int
	ScoreBuckets map[string]int // keys "0-49", "50-69", "70-79", "80-89", "90-100"
	NewJobsByDay map[string]int // keyed by YYYY-MM-DD of first_seen
	LastScan     *time.Time
}

// Repository persists Companies, Jobs, ScanLog entries and the ScanState
// singleton. Implementations must treat Job.URL as globally unique.
type Repository interface {
	// Companies.
	ListCompanies(ctx context.Context) ([]Company, error)
	EnabledCompanies(ctx context.Context) ([]Company, error)
	SeedCompanies(ctx context.Context, companies []Company) error
	SetCompanyEnabled(ctx context.Context, id string, enabled bool) error
	SetCompanyScrapeResult(ctx context.Context, id, status string, at time.Time) error

	// Jobs.
	JobByURL(ctx context.Context, url string) (*Job, error)
	JobByID(ctx context.Context, id string) (*Job, error)
	InsertJob(ctx context.Context, job *Job) error
	TouchJob(ctx context.Context, id string, lastSeen time.Time, description string) error
	MarkJobNotified(ctx context.Context, id string) error
	SetJobStatus(ctx context.Context, id, status string) error
	ListJobs(ctx context.Context, q JobQuery) ([]Job, int, error)
	Stats(ctx context.Context) (Stats, error)

	// Scan bookkeeping. ScanState returns an idle zero state when the
	// singleton row does not exist yet.
	ScanState(ctx context.Context) (ScanState, error)
	PutScanState(ctx context.Context, state ScanState) error
	AppendScanLog(ctx context.Context, log ScanLog) error
	LastScanLog(ctx context.Context) (*ScanLog, error)
}

// Notifier delivers a formatted message to a downstream channel. It reports
// whether delivery succeeded; failures are not fatal to a scan.
type Notifier interface {
	Notify(ctx context.Context, message string) bool
}
