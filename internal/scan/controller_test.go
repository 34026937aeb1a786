package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skalra/auros/internal/llm"
	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/salary"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// fakeRepo is an in-memory model.Repository for controller tests.
var _ model.Repository = (*fakeRepo)(nil)

type fakeRepo struct {
	mu        sync.Mutex
	companies []model.Company
	jobs      map[string]*model.Job // keyed by URL
	state     model.ScanState
	logs      []model.ScanLog

	failInsert bool
}

func newFakeRepo(companies ...model.Company) *fakeRepo {
	return &fakeRepo{
		companies: companies,
		jobs:      make(map[string]*model.Job),
		state:     model.ScanState{Status: model.ScanStatusIdle},
	}
}

func (r *fakeRepo) ListCompanies(ctx context.Context) ([]model.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Company(nil), r.companies...), nil
}

func (r *fakeRepo) EnabledCompanies(ctx context.Context) ([]model.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var enabled []model.Company
	for _, c := range r.companies {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}

func (r *fakeRepo) SeedCompanies(ctx context.Context, companies []model.Company) error {
	return nil
}

func (r *fakeRepo) SetCompanyEnabled(ctx context.Context, id string, enabled bool) error {
	return nil
}

func (r *fakeRepo) SetCompanyScrapeResult(ctx context.Context, id, status string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.companies {
		if r.companies[i].ID == id {
			r.companies[i].ScrapeStatus = status
			r.companies[i].LastScraped = &at
			return nil
		}
	}
	return fmt.Errorf("company %s not found", id)
}

func (r *fakeRepo) JobByURL(ctx context.Context, url string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[url]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeRepo) InsertJob(ctx context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert {
		return errors.New("disk full")
	}
	if _, ok := r.jobs[job.URL]; ok {
		return errors.New("duplicate url")
	}
	copied := *job
	r.jobs[job.URL] = &copied
	return nil
}

func (r *fakeRepo) TouchJob(ctx context.Context, id string, lastSeen time.Time, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id {
			j.LastSeen = lastSeen
			if j.RawDescription == "" && description != "" {
				j.RawDescription = description
			}
			return nil
		}
	}
	return fmt.Errorf("job %s not found", id)
}

func (r *fakeRepo) MarkJobNotified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id {
			j.Notified = true
			return nil
		}
	}
	return fmt.Errorf("job %s not found", id)
}

func (r *fakeRepo) SetJobStatus(ctx context.Context, id, status string) error { return nil }

func (r *fakeRepo) JobByID(ctx context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id {
			copied := *j
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []model.Job
	for _, j := range r.jobs {
		jobs = append(jobs, *j)
	}
	return jobs, len(jobs), nil
}

func (r *fakeRepo) Stats(ctx context.Context) (model.Stats, error) {
	return model.Stats{}, nil
}

func (r *fakeRepo) ScanState(ctx context.Context) (model.ScanState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

func (r *fakeRepo) PutScanState(ctx context.Context, state model.ScanState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	return nil
}

func (r *fakeRepo) AppendScanLog(ctx context.Context, log model.ScanLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeRepo) LastScanLog(ctx context.Context) (*model.ScanLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) == 0 {
		return nil, nil
	}
	last := r.logs[len(r.logs)-1]
	return &last, nil
}

// stubScraper returns a fixed set of postings, or an error.
type stubScraper struct {
	postings []model.Posting
	err      error
}

func (s *stubScraper) ScrapeJobs(ctx context.Context, careersURL string, titleFilter func(string) bool) ([]model.Posting, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.postings, nil
}

type stubExtractor struct {
	extraction llm.Extraction
}

func (s *stubExtractor) ExtractJobInfo(ctx context.Context, description string) llm.Extraction {
	return s.extraction
}

type stubEstimator struct {
	band *salary.Range
}

func (s *stubEstimator) Estimate(ctx context.Context, title, company, description string) *salary.Range {
	return s.band
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	result   bool
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.result
}

func testCompany() model.Company {
	return model.Company{
		ID:         "acme",
		Name:       "Acme",
		CareersURL: "https://boards.greenhouse.io/acme",
		Tier:       1,
		Enabled:    true,
	}
}

func newTestController(repo *fakeRepo, scraper Scraper, notifier model.Notifier) *Controller {
	return NewController(
		repo,
		scraper,
		&stubExtractor{extraction: llm.Extraction{
			PrimaryFunction: "TPM",
			YOEMin:          intPtr(8),
			YOEMax:          intPtr(12),
			WorkMode:        "remote",
			Location:        "Remote, US",
		}},
		&stubEstimator{},
		notifier,
		Config{PreferredWorkMode: "any", MinSalaryConfidence: 0.60, NotifyMinScore: 0.70},
		discardLogger(),
	)
}

func TestRun_NewJobThenRescanBumpsLastSeen(t *testing.T) {
	repo := newFakeRepo(testCompany())
	scraper := &stubScraper{postings: []model.Posting{{
		Title:       "Senior Technical Program Manager",
		URL:         "https://boards.greenhouse.io/acme/jobs/1",
		Description: "Lead AI infrastructure programs. 8-12 years experience. $180,000 - $220,000.",
	}}}
	notifier := &recordingNotifier{result: true}
	c := newTestController(repo, scraper, notifier)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("first Run() = %v", err)
	}

	state, _ := repo.ScanState(context.Background())
	if state.Status != model.ScanStatusCompleted {
		t.Errorf("status = %q, want completed", state.Status)
	}
	if state.CompaniesScanned != 1 || state.JobsFound != 1 || state.JobsNew != 1 {
		t.Errorf("counters = %d/%d/%d, want 1/1/1",
			state.CompaniesScanned, state.JobsFound, state.JobsNew)
	}
	if len(state.Errors) != 0 {
		t.Errorf("errors = %v, want none", state.Errors)
	}

	job := repo.jobs["https://boards.greenhouse.io/acme/jobs/1"]
	if job == nil {
		t.Fatal("job was not persisted")
	}
	if job.Status != model.JobStatusNew {
		t.Errorf("job status = %q, want new", job.Status)
	}
	if job.SalaryMin == nil || *job.SalaryMin != 180000 || job.SalarySource != "jd" {
		t.Errorf("salary = %+v, want 180000 from jd", job)
	}
	if job.YOESource != "extracted" {
		t.Errorf("yoe_source = %q, want extracted", job.YOESource)
	}
	if job.MatchScore == nil || *job.MatchScore < 0.70 {
		t.Fatalf("match score = %v, want >= 0.70", job.MatchScore)
	}
	if !job.Notified {
		t.Error("job not marked notified despite successful delivery")
	}
	firstSeen := job.LastSeen

	if len(repo.logs) != 1 {
		t.Fatalf("scan logs = %d, want 1", len(repo.logs))
	}

	// Second run finds the same posting: no new row, last_seen bumped.
	time.Sleep(5 * time.Millisecond)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("second Run() = %v", err)
	}
	state, _ = repo.ScanState(context.Background())
	if state.JobsNew != 0 {
		t.Errorf("second scan jobs_new = %d, want 0", state.JobsNew)
	}
	if state.JobsFound != 1 {
		t.Errorf("second scan jobs_found = %d, want 1", state.JobsFound)
	}
	if len(repo.jobs) != 1 {
		t.Errorf("job count = %d, want 1", len(repo.jobs))
	}
	if !repo.jobs["https://boards.greenhouse.io/acme/jobs/1"].LastSeen.After(firstSeen) {
		t.Error("last_seen was not bumped on rescan")
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	repo := newFakeRepo(testCompany())
	repo.state = model.ScanState{Status: model.ScanStatusRunning}
	c := newTestController(repo, &stubScraper{}, &recordingNotifier{})

	if err := c.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestRun_ScrapeFailureRecordedAndScanContinues(t *testing.T) {
	good := testCompany()
	bad := model.Company{
		ID:         "broken",
		Name:       "Broken",
		CareersURL: "https://broken.example.com/careers",
		Tier:       2,
		Enabled:    true,
	}
	repo := newFakeRepo(bad, good)

	// Fail only the first company.
	var calls int
	scraper := scrapeFunc(func(ctx context.Context, careersURL string, _ func(string) bool) ([]model.Posting, error) {
		calls++
		if strings.Contains(careersURL, "broken") {
			return nil, errors.New("timeout rendering page")
		}
		return nil, nil
	})
	c := newTestController(repo, scraper, &recordingNotifier{})

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if calls != 2 {
		t.Errorf("scraper calls = %d, want 2 (scan must continue past failures)", calls)
	}

	state, _ := repo.ScanState(context.Background())
	if len(state.Errors) != 1 || state.Errors[0] != "Broken: timeout rendering page" {
		t.Errorf("errors = %v, want [\"Broken: timeout rendering page\"]", state.Errors)
	}
	if repo.companies[0].ScrapeStatus != model.ScrapeStatusFailed {
		t.Errorf("broken company status = %q, want failed", repo.companies[0].ScrapeStatus)
	}
	if repo.companies[1].ScrapeStatus != model.ScrapeStatusSuccess {
		t.Errorf("good company status = %q, want success", repo.companies[1].ScrapeStatus)
	}
}

type scrapeFunc func(ctx context.Context, careersURL string, titleFilter func(string) bool) ([]model.Posting, error)

func (f scrapeFunc) ScrapeJobs(ctx context.Context, careersURL string, titleFilter func(string) bool) ([]model.Posting, error) {
	return f(ctx, careersURL, titleFilter)
}

func TestRun_CancellationRecordsNoFailure(t *testing.T) {
	repo := newFakeRepo(testCompany())
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel mid-scrape, the way an aborted page fetch surfaces it.
	scraper := scrapeFunc(func(ctx context.Context, _ string, _ func(string) bool) ([]model.Posting, error) {
		cancel()
		return nil, fmt.Errorf("fetching careers page: %w", context.Canceled)
	})
	c := newTestController(repo, scraper, &recordingNotifier{})

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}

	state, _ := repo.ScanState(context.Background())
	if len(state.Errors) != 0 {
		t.Errorf("errors = %v, want none after cancellation", state.Errors)
	}
	if state.Status != model.ScanStatusRunning {
		t.Errorf("state = %q, want running left for the cancelling authority to reset", state.Status)
	}
	if repo.companies[0].ScrapeStatus != "" {
		t.Errorf("company status = %q, want untouched", repo.companies[0].ScrapeStatus)
	}
	if logs, _ := repo.LastScanLog(context.Background()); logs != nil {
		t.Errorf("scan log = %+v, want none for a cancelled scan", logs)
	}
}

func TestRun_ConcurrentRunsSingleWinner(t *testing.T) {
	repo := newFakeRepo(testCompany())
	release := make(chan struct{})
	scraper := scrapeFunc(func(ctx context.Context, _ string, _ func(string) bool) ([]model.Posting, error) {
		<-release
		return nil, nil
	})
	c := newTestController(repo, scraper, &recordingNotifier{})

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- c.Run(context.Background()) }()
	}

	// The winner holds the state singleton and blocks in the scraper, so
	// the first result must be the loser bouncing off it.
	var loserErr error
	select {
	case loserErr = <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("neither Run returned while the winner was scraping")
	}
	if !errors.Is(loserErr, ErrAlreadyRunning) {
		t.Fatalf("loser Run() = %v, want ErrAlreadyRunning", loserErr)
	}

	close(release)
	if err := <-errs; err != nil {
		t.Fatalf("winner Run() = %v", err)
	}

	state, _ := repo.ScanState(context.Background())
	if state.Status != model.ScanStatusCompleted {
		t.Errorf("state = %q, want completed", state.Status)
	}
	if len(repo.logs) != 1 {
		t.Errorf("scan logs = %d, want exactly one", len(repo.logs))
	}
}

func TestRun_InsertFailureFlipsCompanyToFailed(t *testing.T) {
	repo := newFakeRepo(testCompany())
	repo.failInsert = true
	scraper := &stubScraper{postings: []model.Posting{{
		Title:       "Principal Engineer",
		URL:         "https://boards.greenhouse.io/acme/jobs/2",
		Description: "desc",
	}}}
	c := newTestController(repo, scraper, &recordingNotifier{})

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if repo.companies[0].ScrapeStatus != model.ScrapeStatusFailed {
		t.Errorf("company status = %q, want failed after insert error", repo.companies[0].ScrapeStatus)
	}
	state, _ := repo.ScanState(context.Background())
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "Acme: ") {
		t.Errorf("errors = %v, want one prefixed with company name", state.Errors)
	}
}

func TestRun_NonMatchingTitleSkipped(t *testing.T) {
	repo := newFakeRepo(testCompany())
	scraper := &stubScraper{postings: []model.Posting{{
		Title:       "Accountant",
		URL:         "https://boards.greenhouse.io/acme/jobs/3",
		Description: "Count the beans.",
	}}}
	c := newTestController(repo, scraper, &recordingNotifier{})

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(repo.jobs) != 0 {
		t.Errorf("jobs persisted = %d, want 0", len(repo.jobs))
	}
	state, _ := repo.ScanState(context.Background())
	if state.JobsFound != 1 || state.JobsNew != 0 {
		t.Errorf("counters = found %d new %d, want 1/0", state.JobsFound, state.JobsNew)
	}
}

func TestRun_NotifyFailureLeavesJobUnnotified(t *testing.T) {
	repo := newFakeRepo(testCompany())
	scraper := &stubScraper{postings: []model.Posting{{
		Title:       "Senior TPM",
		URL:         "https://boards.greenhouse.io/acme/jobs/4",
		Description: "AI platform reliability programs. 8-12 years.",
	}}}
	notifier := &recordingNotifier{result: false}
	c := newTestController(repo, scraper, notifier)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	job := repo.jobs["https://boards.greenhouse.io/acme/jobs/4"]
	if job == nil {
		t.Fatal("job was not persisted")
	}
	if job.Notified {
		t.Error("job marked notified despite delivery failure")
	}
	if len(notifier.messages) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(notifier.messages))
	}
}

func TestResetRunning(t *testing.T) {
	repo := newFakeRepo()
	repo.state = model.ScanState{Status: model.ScanStatusRunning}
	c := newTestController(repo, &stubScraper{}, &recordingNotifier{})

	reset, err := c.ResetRunning(context.Background())
	if err != nil || !reset {
		t.Fatalf("ResetRunning() = %v, %v, want true, nil", reset, err)
	}
	state, _ := repo.ScanState(context.Background())
	if state.Status != model.ScanStatusIdle {
		t.Errorf("status = %q, want idle", state.Status)
	}

	reset, err = c.ResetRunning(context.Background())
	if err != nil || reset {
		t.Errorf("second ResetRunning() = %v, %v, want false, nil", reset, err)
	}
}

func TestFormatMessage(t *testing.T) {
	job := &model.Job{
		Title:        "Senior TPM",
		URL:          "https://example.com/jobs/1",
		SalaryMin:    intPtr(180000),
		SalaryMax:    intPtr(220000),
		SalarySource: "jd",
		YOEMin:       intPtr(8),
		YOEMax:       intPtr(12),
		WorkMode:     "remote",
		MatchScore:   floatPtr(0.8425),
	}
	got := formatMessage("Acme", job)
	want := ":briefcase: *New Job Match Found*\n\n" +
		"*Company:* Acme\n" +
		"*Title:* Senior TPM\n" +
		"*Match Score:* 84% :star:\n" +
		"*Salary:* $180k - $220k (jd)\n" +
		"*YOE:* 8-12 years\n" +
		"*Mode:* remote\n\n" +
		"<https://example.com/jobs/1|View Job Description>"
	if got != want {
		t.Errorf("formatMessage() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatMessage_NoSalaryNoYOE(t *testing.T) {
	job := &model.Job{
		Title: "Platform Lead",
		URL:   "https://example.com/jobs/2",
	}
	got := formatMessage("Beta", job)
	if !strings.Contains(got, "*Salary:* Not disclosed\n") {
		t.Errorf("message missing 'Not disclosed': %q", got)
	}
	if !strings.Contains(got, "*YOE:* Not specified\n") {
		t.Errorf("message missing 'Not specified': %q", got)
	}
	if !strings.Contains(got, "*Mode:* Unknown\n") {
		t.Errorf("message missing Unknown mode: %q", got)
	}
	if !strings.Contains(got, "*Match Score:* 0% :star:\n") {
		t.Errorf("message missing zero score: %q", got)
	}
}
