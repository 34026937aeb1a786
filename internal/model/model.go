package model

import "time"

// Company is a curated careers page to scan. The scan controller is the
// only writer of ScrapeStatus and LastScraped; the admin API toggles Enabled.
type Company struct {
	ID           string // stable slug, unique
	Name         string
	CareersURL   string
	Tier         int // 1 best, 3+ worst; default 2
	Enabled      bool
	LastScraped  *time.Time
	ScrapeStatus string // "success", "failed", or "" when never scraped
}

// Company scrape outcome values.
const (
	ScrapeStatusSuccess = "success"
	ScrapeStatusFailed  = "failed"
)

// Job status values.
const (
	JobStatusNew        = "new"
	JobStatusBookmarked = "bookmarked"
	JobStatusApplied    = "applied"
	JobStatusHidden     = "hidden"
)

// Job is a persisted posting. URL is the authoritative dedup key: repeated
// scrapes of the same URL bump LastSeen and never create a second row.
type Job struct {
	ID               string
	CompanyID        string
	Title            string
	PrimaryFunction  string // TPM|PM|Platform|SRE|AI/ML|Other, or "" when unknown
	URL              string // globally unique
	YOEMin           *int
	YOEMax           *int
	YOESource        string // "extracted" or ""
	SalaryMin        *int   // annual USD
	SalaryMax        *int
	SalarySource     string // "jd", "ai", or ""
	SalaryConfidence *float64
	SalaryEstimated  bool // true whenever SalarySource is "ai"
	WorkMode         string
	Location         string
	MatchScore       *float64 // in [0,1], rounded to 4 decimals
	RawDescription   string   // capped at 50 000 chars
	Status           string
	FirstSeen        time.Time
	LastSeen         time.Time
	Notified         bool
}

// Posting is a scraped job before extraction and persistence.
type Posting struct {
	Title       string
	URL         string
	Description string
}

// Scan state values.
const (
	ScanStatusIdle      = "idle"
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
)

// ScanState is the singleton row (id "current") used as the process's
// database-backed scan mutex. The controller is its sole writer.
type ScanState struct {
	Status           string
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CompaniesScanned int
	JobsFound        int
	JobsNew          int
	Errors           []string
}

// ScanLog is the immutable record of one completed scan.
type ScanLog struct {
	ID               string
	StartedAt        time.Time
	CompletedAt      time.Time
	CompaniesScanned int
	JobsFound        int
	JobsNew          int
	Errors           []string
}
