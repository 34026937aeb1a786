package server

import (
	"time"

	"github.com/skalra/auros/internal/model"
)

// Wire types mirror the JSON the UI consumes; optional fields marshal as
// null rather than being omitted.

type companyOut struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	CareersURL   string     `json:"careers_url"`
	Tier         int        `json:"tier"`
	Enabled      bool       `json:"enabled"`
	LastScraped  *time.Time `json:"last_scraped"`
	ScrapeStatus *string    `json:"scrape_status"`
}

type jobOut struct {
	ID               string     `json:"id"`
	CompanyID        string     `json:"company_id"`
	Title            string     `json:"title"`
	PrimaryFunction  *string    `json:"primary_function"`
	URL              string     `json:"url"`
	YOEMin           *int       `json:"yoe_min"`
	YOEMax           *int       `json:"yoe_max"`
	YOESource        *string    `json:"yoe_source"`
	SalaryMin        *int       `json:"salary_min"`
	SalaryMax        *int       `json:"salary_max"`
	SalarySource     *string    `json:"salary_source"`
	SalaryConfidence *float64   `json:"salary_confidence"`
	SalaryEstimated  bool       `json:"salary_estimated"`
	WorkMode         *string    `json:"work_mode"`
	Location         *string    `json:"location"`
	MatchScore       *float64   `json:"match_score"`
	RawDescription   *string    `json:"raw_description"`
	Status           string     `json:"status"`
	FirstSeen        time.Time  `json:"first_seen"`
	LastSeen         time.Time  `json:"last_seen"`
	Notified         bool       `json:"notified"`
}

type jobListOut struct {
	Jobs  []jobOut `json:"jobs"`
	Total int      `json:"total"`
}

type scanStatusOut struct {
	Status           string     `json:"status"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	CompaniesScanned int        `json:"companies_scanned"`
	JobsFound        int        `json:"jobs_found"`
	JobsNew          int        `json:"jobs_new"`
	Errors           []string   `json:"errors"`
}

type statsOut struct {
	TotalJobs    int            `json:"total_jobs"`
	NewJobs      int            `json:"new_jobs"`
	Bookmarked   int            `json:"bookmarked"`
	Applied      int            `json:"applied"`
	Hidden       int            `json:"hidden"`
	LastScan     *time.Time     `json:"last_scan"`
	ByCompany    map[string]int `json:"by_company"`
	ScoreBuckets map[string]int `json:"score_buckets"`
	NewJobsByDay map[string]int `json:"new_jobs_by_day"`
}

type jobStatusUpdate struct {
	Status string `json:"status"`
}

type companyUpdate struct {
	Enabled *bool `json:"enabled"`
}

func toCompanyOut(c model.Company) companyOut {
	return companyOut{
		ID:           c.ID,
		Name:         c.Name,
		CareersURL:   c.CareersURL,
		Tier:         c.Tier,
		Enabled:      c.Enabled,
		LastScraped:  c.LastScraped,
		ScrapeStatus: optString(c.ScrapeStatus),
	}
}

func toJobOut(j model.Job) jobOut {
	return jobOut{
		ID:               j.ID,
		CompanyID:        j.CompanyID,
		Title:            j.Title,
		PrimaryFunction:  optString(j.PrimaryFunction),
		URL:              j.URL,
		YOEMin:           j.YOEMin,
		YOEMax:           j.YOEMax,
		YOESource:        optString(j.YOESource),
		SalaryMin:        j.SalaryMin,
		SalaryMax:        j.SalaryMax,
		SalarySource:     optString(j.SalarySource),
		SalaryConfidence: j.SalaryConfidence,
		SalaryEstimated:  j.SalaryEstimated,
		WorkMode:         optString(j.WorkMode),
		Location:         optString(j.Location),
		MatchScore:       j.MatchScore,
		RawDescription:   optString(j.RawDescription),
		Status:           j.Status,
		FirstSeen:        j.FirstSeen,
		LastSeen:         j.LastSeen,
		Notified:         j.Notified,
	}
}

func toScanStatusOut(state model.ScanState) scanStatusOut {
	out := scanStatusOut{
		Status:           state.Status,
		StartedAt:        state.StartedAt,
		CompletedAt:      state.CompletedAt,
		CompaniesScanned: state.CompaniesScanned,
		JobsFound:        state.JobsFound,
		JobsNew:          state.JobsNew,
		Errors:           state.Errors,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	return out
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
