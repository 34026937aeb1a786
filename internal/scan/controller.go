// Package scan owns the full scan pipeline for the curated company list:
// scrape, extract, score, persist, notify. At most one scan runs per
// process, guarded by the database-backed scan state singleton.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skalra/auros/internal/ats"
	"github.com/skalra/auros/internal/llm"
	"github.com/skalra/auros/internal/metrics"
	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/salary"
	"github.com/skalra/auros/internal/scorer"
	"github.com/skalra/auros/internal/textutil"
)

// ErrAlreadyRunning is returned by Run when the scan state singleton is
// already in the running state.
var ErrAlreadyRunning = errors.New("scan already running")

// Scraper yields described postings for one careers page.
type Scraper interface {
	ScrapeJobs(ctx context.Context, careersURL string, titleFilter func(string) bool) ([]model.Posting, error)
}

// Extractor pulls structured fields out of a job description. It never
// fails; unparseable descriptions yield sentinel values.
type Extractor interface {
	ExtractJobInfo(ctx context.Context, description string) llm.Extraction
}

// Estimator guesses a salary band when the description discloses none.
type Estimator interface {
	Estimate(ctx context.Context, title, company, description string) *salary.Range
}

// Config holds the scoring and notification thresholds for a scan.
type Config struct {
	PreferredWorkMode   string
	MinSalaryConfidence float64
	NotifyMinScore      float64
}

// Controller runs scans sequentially over the enabled companies. The
// in-process mutex serializes the check-then-set on the scan state row;
// the row itself is what other processes and the API observe.
type Controller struct {
	repo      model.Repository
	scraper   Scraper
	extractor Extractor
	estimator Estimator
	notifier  model.Notifier
	cfg       Config
	logger    *slog.Logger

	mu sync.Mutex
}

func NewController(
	repo model.Repository,
	scraper Scraper,
	extractor Extractor,
	estimator Estimator,
	notifier model.Notifier,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		repo:      repo,
		scraper:   scraper,
		extractor: extractor,
		estimator: estimator,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Status returns the current scan state.
func (c *Controller) Status(ctx context.Context) (model.ScanState, error) {
	return c.repo.ScanState(ctx)
}

// ResetRunning flips a running scan state back to idle. Used by the stop
// endpoint after cancelling scan tasks, and at startup to clear state left
// behind by a crashed process. Reports whether a reset happened.
func (c *Controller) ResetRunning(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.repo.ScanState(ctx)
	if err != nil {
		return false, err
	}
	if state.Status != model.ScanStatusRunning {
		return false, nil
	}
	state.Status = model.ScanStatusIdle
	if err := c.repo.PutScanState(ctx, state); err != nil {
		return false, err
	}
	return true, nil
}

// Run executes one full scan over all enabled companies. Returns
// ErrAlreadyRunning when another scan holds the state singleton.
// Per-company failures are recorded in the scan state and do not abort
// the scan; a cancelled context does.
func (c *Controller) Run(ctx context.Context) error {
	scanID := uuid.NewString()
	startedAt := time.Now().UTC()

	c.mu.Lock()
	current, err := c.repo.ScanState(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("reading scan state: %w", err)
	}
	if current.Status == model.ScanStatusRunning {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	state := model.ScanState{
		Status:    model.ScanStatusRunning,
		StartedAt: &startedAt,
	}
	if err := c.repo.PutScanState(ctx, state); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("initializing scan state: %w", err)
	}
	c.mu.Unlock()

	metrics.ScansTotal.Inc()
	metrics.ScansRunning.Inc()
	defer metrics.ScansRunning.Dec()

	logger := c.logger.With("scan_id", scanID[:8])
	logger.Info("scan started")

	companies, err := c.repo.EnabledCompanies(ctx)
	if err != nil {
		state.Errors = append(state.Errors, "listing companies: "+err.Error())
		companies = nil
	}
	state.CompaniesScanned = len(companies)
	if err := c.repo.PutScanState(ctx, state); err != nil {
		logger.Error("persist scan state", "error", err)
	}

	for _, company := range companies {
		if ctx.Err() != nil {
			logger.Info("scan cancelled", "error", ctx.Err())
			return ctx.Err()
		}
		c.processCompany(ctx, logger, company, &state)
	}

	if ctx.Err() != nil {
		logger.Info("scan cancelled", "error", ctx.Err())
		return ctx.Err()
	}

	completedAt := time.Now().UTC()
	state.Status = model.ScanStatusCompleted
	state.CompletedAt = &completedAt
	if err := c.repo.PutScanState(ctx, state); err != nil {
		return fmt.Errorf("completing scan state: %w", err)
	}
	if err := c.repo.AppendScanLog(ctx, model.ScanLog{
		ID:               scanID,
		StartedAt:        startedAt,
		CompletedAt:      completedAt,
		CompaniesScanned: state.CompaniesScanned,
		JobsFound:        state.JobsFound,
		JobsNew:          state.JobsNew,
		Errors:           state.Errors,
	}); err != nil {
		return fmt.Errorf("appending scan log: %w", err)
	}

	logger.Info("scan completed",
		"companies_scanned", state.CompaniesScanned,
		"jobs_found", state.JobsFound,
		"jobs_new", state.JobsNew,
		"error_count", len(state.Errors),
	)
	return nil
}

// processCompany scrapes one company and feeds each posting through the
// job pipeline. The company is marked success as soon as scraping finishes;
// a persistence error while processing its postings flips it to failed.
func (c *Controller) processCompany(ctx context.Context, logger *slog.Logger, company model.Company, state *model.ScanState) {
	logger.Info("company scan started", "company", company.Name, "url", company.CareersURL)

	postings, err := c.scraper.ScrapeJobs(ctx, company.CareersURL, IsPotentialMatch)
	if err != nil {
		// A cancelled scan terminates without touching the company's
		// scrape status or the scan error list; Run's loop surfaces
		// ctx.Err() and the cancelling authority resets the state row.
		if cancelled(ctx, err) {
			return
		}
		c.failCompany(ctx, logger, company, state, err)
		return
	}

	state.JobsFound += len(postings)
	metrics.JobsFound.Add(float64(len(postings)))

	if err := c.repo.SetCompanyScrapeResult(ctx, company.ID, model.ScrapeStatusSuccess, time.Now().UTC()); err != nil {
		if cancelled(ctx, err) {
			return
		}
		c.failCompany(ctx, logger, company, state, err)
		return
	}
	logger.Info("company scan completed", "company", company.Name, "jobs_found", len(postings))

	for _, posting := range postings {
		isNew, err := c.processJob(ctx, logger, company, posting)
		if err != nil {
			if cancelled(ctx, err) {
				return
			}
			c.failCompany(ctx, logger, company, state, err)
			return
		}
		if isNew {
			state.JobsNew++
			metrics.JobsNew.Inc()
			if err := c.repo.PutScanState(ctx, *state); err != nil {
				logger.Error("persist scan state", "error", err)
			}
		}
	}
}

func (c *Controller) failCompany(ctx context.Context, logger *slog.Logger, company model.Company, state *model.ScanState, cause error) {
	if err := c.repo.SetCompanyScrapeResult(ctx, company.ID, model.ScrapeStatusFailed, time.Now().UTC()); err != nil {
		logger.Error("mark company failed", "company", company.Name, "error", err)
	}
	state.Errors = append(state.Errors, company.Name+": "+cause.Error())
	metrics.ScrapeErrors.WithLabelValues(sourceLabel(company.CareersURL)).Inc()
	if err := c.repo.PutScanState(ctx, *state); err != nil {
		logger.Error("persist scan state", "error", err)
	}
	logger.Error("company scan failed", "company", company.Name, "url", company.CareersURL, "error", cause)
}

// processJob persists one posting. A posting whose URL is already known
// only gets its last_seen bumped; the stored description is backfilled
// when it was empty. Reports whether a new job row was created.
func (c *Controller) processJob(ctx context.Context, logger *slog.Logger, company model.Company, posting model.Posting) (bool, error) {
	now := time.Now().UTC()

	existing, err := c.repo.JobByURL(ctx, posting.URL)
	if err != nil {
		return false, fmt.Errorf("looking up job: %w", err)
	}
	if existing != nil {
		backfill := ""
		if existing.RawDescription == "" {
			backfill = textutil.Normalize(posting.Description)
		}
		if err := c.repo.TouchJob(ctx, existing.ID, now, backfill); err != nil {
			return false, fmt.Errorf("touching job: %w", err)
		}
		return false, nil
	}

	if !IsPotentialMatch(posting.Title) {
		return false, nil
	}

	description := textutil.Normalize(posting.Description)
	extracted := c.extractor.ExtractJobInfo(ctx, description)

	band := salary.ExtractFromText(description)
	if band == nil {
		band = c.estimator.Estimate(ctx, posting.Title, company.Name, description)
	}
	band = salary.ApplyConfidenceThreshold(band, c.cfg.MinSalaryConfidence)

	score := scorer.ComputeMatchScore(scorer.Input{
		Title:             posting.Title,
		Description:       description,
		YOEMin:            extracted.YOEMin,
		YOEMax:            extracted.YOEMax,
		CompanyTier:       company.Tier,
		WorkMode:          extracted.WorkMode,
		PreferredWorkMode: c.cfg.PreferredWorkMode,
	})

	job := &model.Job{
		ID:              uuid.NewString(),
		CompanyID:       company.ID,
		Title:           posting.Title,
		PrimaryFunction: extracted.PrimaryFunction,
		URL:             posting.URL,
		YOEMin:          extracted.YOEMin,
		YOEMax:          extracted.YOEMax,
		WorkMode:        extracted.WorkMode,
		Location:        extracted.Location,
		MatchScore:      &score,
		RawDescription:  description,
		Status:          model.JobStatusNew,
		FirstSeen:       now,
		LastSeen:        now,
	}
	if extracted.YOEMin != nil || extracted.YOEMax != nil {
		job.YOESource = "extracted"
	}
	if band != nil {
		job.SalaryMin = &band.Min
		job.SalaryMax = &band.Max
		job.SalarySource = band.Source
		confidence := band.Confidence
		job.SalaryConfidence = &confidence
		job.SalaryEstimated = band.Source == "ai"
	}

	if err := c.repo.InsertJob(ctx, job); err != nil {
		return false, fmt.Errorf("inserting job: %w", err)
	}
	logger.Info("job added", "company", company.Name, "title", posting.Title, "score", score)

	if score >= c.cfg.NotifyMinScore {
		if c.notifier.Notify(ctx, formatMessage(company.Name, job)) {
			if err := c.repo.MarkJobNotified(ctx, job.ID); err != nil {
				return false, fmt.Errorf("marking notified: %w", err)
			}
		}
	}
	return true, nil
}

// cancelled reports whether err stems from the scan being cancelled rather
// than from the company itself failing.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// sourceLabel buckets scrape errors by the ATS that served the page.
func sourceLabel(careersURL string) string {
	if kind := ats.Detect(careersURL); kind != "" {
		return string(kind)
	}
	return "generic"
}

func formatMessage(companyName string, job *model.Job) string {
	salaryText := "Not disclosed"
	if job.SalaryMin != nil && job.SalaryMax != nil && job.SalarySource != "" {
		salaryText = fmt.Sprintf("$%dk - $%dk (%s)", *job.SalaryMin/1000, *job.SalaryMax/1000, job.SalarySource)
	}

	score := 0.0
	if job.MatchScore != nil {
		score = *job.MatchScore
	}

	mode := job.WorkMode
	if mode == "" {
		mode = "Unknown"
	}

	var b strings.Builder
	b.WriteString(":briefcase: *New Job Match Found*\n\n")
	fmt.Fprintf(&b, "*Company:* %s\n", companyName)
	fmt.Fprintf(&b, "*Title:* %s\n", job.Title)
	fmt.Fprintf(&b, "*Match Score:* %d%% :star:\n", int(math.Round(score*100)))
	fmt.Fprintf(&b, "*Salary:* %s\n", salaryText)
	fmt.Fprintf(&b, "*YOE:* %s\n", yoeText(job.YOEMin, job.YOEMax))
	fmt.Fprintf(&b, "*Mode:* %s\n\n", mode)
	fmt.Fprintf(&b, "<%s|View Job Description>", job.URL)
	return b.String()
}

func yoeText(min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%d-%d years", *min, *max)
	case min != nil:
		return fmt.Sprintf("%d+ years", *min)
	case max != nil:
		return fmt.Sprintf("up to %d years", *max)
	default:
		return "Not specified"
	}
}
