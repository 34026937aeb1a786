// Package store persists companies, jobs, and scan bookkeeping in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skalra/auros/internal/model"
)

// Ensure Store implements model.Repository.
var _ model.Repository = (*Store)(nil)

// Store is a SQLite-backed repository. A single *sql.DB is safe for
// concurrent use; busy_timeout covers writer contention between the scan
// pipeline and the API.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	careers_url   TEXT NOT NULL,
	tier          INTEGER NOT NULL DEFAULT 2,
	enabled       INTEGER NOT NULL DEFAULT 1,
	last_scraped  DATETIME,
	scrape_status TEXT
);

CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL REFERENCES companies(id),
	title             TEXT NOT NULL,
	primary_function  TEXT,
	url               TEXT NOT NULL UNIQUE,
	yoe_min           INTEGER,
	yoe_max           INTEGER,
	yoe_source        TEXT,
	salary_min        INTEGER,
	salary_max        INTEGER,
	salary_source     TEXT,
	salary_confidence REAL,
	salary_estimated  INTEGER NOT NULL DEFAULT 0,
	work_mode         TEXT,
	location          TEXT,
	match_score       REAL,
	raw_description   TEXT,
	status            TEXT NOT NULL DEFAULT 'new',
	first_seen        DATETIME NOT NULL,
	last_seen         DATETIME NOT NULL,
	notified          INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_jobs_company_id ON jobs(company_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

CREATE TABLE IF NOT EXISTS scan_logs (
	id                TEXT PRIMARY KEY,
	started_at        DATETIME,
	completed_at      DATETIME,
	companies_scanned INTEGER,
	jobs_found        INTEGER,
	jobs_new          INTEGER,
	errors            TEXT
);

CREATE TABLE IF NOT EXISTS scan_state (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'idle',
	started_at        DATETIME,
	completed_at      DATETIME,
	companies_scanned INTEGER,
	jobs_found        INTEGER,
	jobs_new          INTEGER,
	errors            TEXT
);
`

// Open opens (or creates) the SQLite database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Companies.

const companyColumns = "id, name, careers_url, tier, enabled, last_scraped, scrape_status"

func (s *Store) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return s.queryCompanies(ctx, "SELECT "+companyColumns+" FROM companies ORDER BY id")
}

func (s *Store) EnabledCompanies(ctx context.Context) ([]model.Company, error) {
	return s.queryCompanies(ctx, "SELECT "+companyColumns+" FROM companies WHERE enabled = 1 ORDER BY id")
}

func (s *Store) queryCompanies(ctx context.Context, query string, args ...any) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var lastScraped sql.NullTime
		var status sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.CareersURL, &c.Tier, &c.Enabled, &lastScraped, &status); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		c.LastScraped = timePtr(lastScraped)
		c.ScrapeStatus = status.String
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// SeedCompanies inserts the given companies only when the table is empty.
func (s *Store) SeedCompanies(ctx context.Context, companies []model.Company) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM companies").Scan(&count); err != nil {
		return fmt.Errorf("counting companies: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range companies {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO companies (id, name, careers_url, tier, enabled) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.Name, c.CareersURL, c.Tier, c.Enabled,
		)
		if err != nil {
			return fmt.Errorf("seeding company %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) SetCompanyEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE companies SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("updating company %s: %w", id, err)
	}
	return requireRow(res, "company "+id)
}

func (s *Store) SetCompanyScrapeResult(ctx context.Context, id, status string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE companies SET scrape_status = ?, last_scraped = ? WHERE id = ?",
		status, at, id,
	)
	if err != nil {
		return fmt.Errorf("recording scrape result for %s: %w", id, err)
	}
	return requireRow(res, "company "+id)
}

// Jobs.

const jobColumns = `id, company_id, title, primary_function, url,
	yoe_min, yoe_max, yoe_source,
	salary_min, salary_max, salary_source, salary_confidence, salary_estimated,
	work_mode, location, match_score, raw_description,
	status, first_seen, last_seen, notified`

func (s *Store) JobByURL(ctx context.Context, url string) (*model.Job, error) {
	return s.queryJob(ctx, "SELECT "+jobColumns+" FROM jobs WHERE url = ?", url)
}

func (s *Store) JobByID(ctx context.Context, id string) (*model.Job, error) {
	return s.queryJob(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
}

func (s *Store) queryJob(ctx context.Context, query string, args ...any) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return &job, nil
}

func (s *Store) InsertJob(ctx context.Context, job *model.Job) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.CompanyID, job.Title, nullString(job.PrimaryFunction), job.URL,
		nullInt(job.YOEMin), nullInt(job.YOEMax), nullString(job.YOESource),
		nullInt(job.SalaryMin), nullInt(job.SalaryMax), nullString(job.SalarySource),
		nullFloat(job.SalaryConfidence), job.SalaryEstimated,
		nullString(job.WorkMode), nullString(job.Location), nullFloat(job.MatchScore),
		nullString(job.RawDescription),
		job.Status, job.FirstSeen, job.LastSeen, job.Notified,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.URL, err)
	}
	return nil
}

// TouchJob bumps last_seen and backfills the description only when none is
// stored yet.
func (s *Store) TouchJob(ctx context.Context, id string, lastSeen time.Time, description string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET
		last_seen = ?,
		raw_description = CASE
			WHEN (raw_description IS NULL OR raw_description = '') AND ? != '' THEN ?
			ELSE raw_description
		END
		WHERE id = ?`,
		lastSeen, description, description, id,
	)
	if err != nil {
		return fmt.Errorf("touching job %s: %w", id, err)
	}
	return requireRow(res, "job "+id)
}

func (s *Store) MarkJobNotified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE jobs SET notified = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking job %s notified: %w", id, err)
	}
	return requireRow(res, "job "+id)
}

func (s *Store) SetJobStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE jobs SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("updating job %s status: %w", id, err)
	}
	return requireRow(res, "job "+id)
}

// ListJobs returns the filtered page and the total count before paging.
func (s *Store) ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, int, error) {
	var where []string
	var args []any
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if q.CompanyID != "" {
		where = append(where, "company_id = ?")
		args = append(args, q.CompanyID)
	}
	if q.MinScore != nil {
		where = append(where, "match_score >= ?")
		args = append(args, *q.MinScore)
	}
	if q.Search != "" {
		where = append(where, `title LIKE ? ESCAPE '\' COLLATE NOCASE`)
		args = append(args, "%"+escapeLike(q.Search)+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting jobs: %w", err)
	}

	query := "SELECT " + jobColumns + " FROM jobs" + clause +
		" ORDER BY match_score IS NULL, match_score DESC, last_seen DESC"
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	} else if q.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `%`, `\%`)
	return strings.ReplaceAll(value, `_`, `\_`)
}

// Stats aggregates job counts in SQL rather than loading rows.
func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	stats := model.Stats{
		StatusCounts: make(map[string]int),
		ByCompany:    make(map[string]int),
		ScoreBuckets: make(map[string]int),
		NewJobsByDay: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&stats.TotalJobs); err != nil {
		return stats, fmt.Errorf("counting jobs: %w", err)
	}

	if err := s.groupCounts(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status", stats.StatusCounts); err != nil {
		return stats, err
	}
	if err := s.groupCounts(ctx, "SELECT company_id, COUNT(*) FROM jobs GROUP BY company_id", stats.ByCompany); err != nil {
		return stats, err
	}
	if err := s.groupCounts(ctx,
		"SELECT date(first_seen), COUNT(*) FROM jobs WHERE first_seen IS NOT NULL GROUP BY date(first_seen)",
		stats.NewJobsByDay,
	); err != nil {
		return stats, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*) FILTER (WHERE match_score IS NOT NULL AND match_score * 100 < 50),
		COUNT(*) FILTER (WHERE match_score IS NOT NULL AND match_score * 100 >= 50 AND match_score * 100 < 70),
		COUNT(*) FILTER (WHERE match_score IS NOT NULL AND match_score * 100 >= 70 AND match_score * 100 < 80),
		COUNT(*) FILTER (WHERE match_score IS NOT NULL AND match_score * 100 >= 80 AND match_score * 100 < 90),
		COUNT(*) FILTER (WHERE match_score IS NOT NULL AND match_score * 100 >= 90)
		FROM jobs`)
	var b0, b50, b70, b80, b90 int
	if err := row.Scan(&b0, &b50, &b70, &b80, &b90); err != nil {
		return stats, fmt.Errorf("bucketing scores: %w", err)
	}
	stats.ScoreBuckets["0-49"] = b0
	stats.ScoreBuckets["50-69"] = b50
	stats.ScoreBuckets["70-79"] = b70
	stats.ScoreBuckets["80-89"] = b80
	stats.ScoreBuckets["90-100"] = b90

	last, err := s.LastScanLog(ctx)
	if err != nil {
		return stats, err
	}
	if last != nil {
		completed := last.CompletedAt
		stats.LastScan = &completed
	}
	return stats, nil
}

func (s *Store) groupCounts(ctx context.Context, query string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("aggregating jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scanning aggregate row: %w", err)
		}
		dst[key] = count
	}
	return rows.Err()
}

// Scan bookkeeping.

// ScanState returns the singleton scan state row, or an idle zero state
// when no scan has ever run.
func (s *Store) ScanState(ctx context.Context) (model.ScanState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status, started_at, completed_at,
		companies_scanned, jobs_found, jobs_new, errors
		FROM scan_state WHERE id = 'current'`)

	var state model.ScanState
	var startedAt, completedAt sql.NullTime
	var scanned, found, added sql.NullInt64
	var errorsJSON sql.NullString
	err := row.Scan(&state.Status, &startedAt, &completedAt, &scanned, &found, &added, &errorsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScanState{Status: model.ScanStatusIdle}, nil
	}
	if err != nil {
		return state, fmt.Errorf("reading scan state: %w", err)
	}

	state.StartedAt = timePtr(startedAt)
	state.CompletedAt = timePtr(completedAt)
	state.CompaniesScanned = int(scanned.Int64)
	state.JobsFound = int(found.Int64)
	state.JobsNew = int(added.Int64)
	state.Errors, err = decodeErrors(errorsJSON.String)
	if err != nil {
		return state, fmt.Errorf("decoding scan errors: %w", err)
	}
	return state, nil
}

func (s *Store) PutScanState(ctx context.Context, state model.ScanState) error {
	errorsJSON, err := encodeErrors(state.Errors)
	if err != nil {
		return fmt.Errorf("encoding scan errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO scan_state
		(id, status, started_at, completed_at, companies_scanned, jobs_found, jobs_new, errors)
		VALUES ('current', ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			companies_scanned = excluded.companies_scanned,
			jobs_found = excluded.jobs_found,
			jobs_new = excluded.jobs_new,
			errors = excluded.errors`,
		state.Status, nullTime(state.StartedAt), nullTime(state.CompletedAt),
		state.CompaniesScanned, state.JobsFound, state.JobsNew, errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("writing scan state: %w", err)
	}
	return nil
}

func (s *Store) AppendScanLog(ctx context.Context, log model.ScanLog) error {
	errorsJSON, err := encodeErrors(log.Errors)
	if err != nil {
		return fmt.Errorf("encoding scan errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO scan_logs
		(id, started_at, completed_at, companies_scanned, jobs_found, jobs_new, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.StartedAt, log.CompletedAt,
		log.CompaniesScanned, log.JobsFound, log.JobsNew, errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("appending scan log %s: %w", log.ID, err)
	}
	return nil
}

func (s *Store) LastScanLog(ctx context.Context) (*model.ScanLog, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, completed_at,
		companies_scanned, jobs_found, jobs_new, errors
		FROM scan_logs ORDER BY completed_at DESC LIMIT 1`)

	var log model.ScanLog
	var errorsJSON sql.NullString
	err := row.Scan(&log.ID, &log.StartedAt, &log.CompletedAt,
		&log.CompaniesScanned, &log.JobsFound, &log.JobsNew, &errorsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last scan log: %w", err)
	}
	log.Errors, err = decodeErrors(errorsJSON.String)
	if err != nil {
		return nil, fmt.Errorf("decoding scan errors: %w", err)
	}
	return &log, nil
}

// Row scanning helpers.

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var j model.Job
	var primaryFunction, yoeSource, salarySource, workMode, location, rawDescription sql.NullString
	var yoeMin, yoeMax, salaryMin, salaryMax sql.NullInt64
	var salaryConfidence, matchScore sql.NullFloat64

	err := row.Scan(
		&j.ID, &j.CompanyID, &j.Title, &primaryFunction, &j.URL,
		&yoeMin, &yoeMax, &yoeSource,
		&salaryMin, &salaryMax, &salarySource, &salaryConfidence, &j.SalaryEstimated,
		&workMode, &location, &matchScore, &rawDescription,
		&j.Status, &j.FirstSeen, &j.LastSeen, &j.Notified,
	)
	if err != nil {
		return j, err
	}

	j.PrimaryFunction = primaryFunction.String
	j.YOEMin = intPtr(yoeMin)
	j.YOEMax = intPtr(yoeMax)
	j.YOESource = yoeSource.String
	j.SalaryMin = intPtr(salaryMin)
	j.SalaryMax = intPtr(salaryMax)
	j.SalarySource = salarySource.String
	j.SalaryConfidence = floatPtr(salaryConfidence)
	j.WorkMode = workMode.String
	j.Location = location.String
	j.MatchScore = floatPtr(matchScore)
	j.RawDescription = rawDescription.String
	return j, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}

func encodeErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	data, err := json.Marshal(errs)
	return string(data), err
}

func decodeErrors(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(raw), &errs); err != nil {
		return nil, err
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
