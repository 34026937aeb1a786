package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/scan"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRepo struct {
	jobs      []model.Job
	companies []model.Company
	stats     model.Stats

	lastQuery     model.JobQuery
	statusUpdates map[string]string
	enabled       map[string]bool
}

var _ model.Repository = (*fakeRepo)(nil)

func (f *fakeRepo) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return f.companies, nil
}

func (f *fakeRepo) EnabledCompanies(ctx context.Context) ([]model.Company, error) {
	var out []model.Company
	for _, c := range f.companies {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) SeedCompanies(ctx context.Context, companies []model.Company) error {
	return nil
}

func (f *fakeRepo) SetCompanyEnabled(ctx context.Context, id string, enabled bool) error {
	for i := range f.companies {
		if f.companies[i].ID == id {
			f.companies[i].Enabled = enabled
			if f.enabled == nil {
				f.enabled = map[string]bool{}
			}
			f.enabled[id] = enabled
			return nil
		}
	}
	return model.ErrNotFound
}

func (f *fakeRepo) SetCompanyScrapeResult(ctx context.Context, id, status string, at time.Time) error {
	return nil
}

func (f *fakeRepo) JobByURL(ctx context.Context, url string) (*model.Job, error) {
	for i := range f.jobs {
		if f.jobs[i].URL == url {
			return &f.jobs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) JobByID(ctx context.Context, id string) (*model.Job, error) {
	for i := range f.jobs {
		if f.jobs[i].ID == id {
			return &f.jobs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) InsertJob(ctx context.Context, job *model.Job) error {
	f.jobs = append(f.jobs, *job)
	return nil
}

func (f *fakeRepo) TouchJob(ctx context.Context, id string, lastSeen time.Time, description string) error {
	return nil
}

func (f *fakeRepo) MarkJobNotified(ctx context.Context, id string) error {
	return nil
}

func (f *fakeRepo) SetJobStatus(ctx context.Context, id, status string) error {
	for i := range f.jobs {
		if f.jobs[i].ID == id {
			f.jobs[i].Status = status
			if f.statusUpdates == nil {
				f.statusUpdates = map[string]string{}
			}
			f.statusUpdates[id] = status
			return nil
		}
	}
	return model.ErrNotFound
}

func (f *fakeRepo) ListJobs(ctx context.Context, q model.JobQuery) ([]model.Job, int, error) {
	f.lastQuery = q
	return f.jobs, len(f.jobs), nil
}

func (f *fakeRepo) Stats(ctx context.Context) (model.Stats, error) {
	return f.stats, nil
}

func (f *fakeRepo) ScanState(ctx context.Context) (model.ScanState, error) {
	return model.ScanState{Status: model.ScanStatusIdle}, nil
}

func (f *fakeRepo) PutScanState(ctx context.Context, state model.ScanState) error { return nil }

func (f *fakeRepo) AppendScanLog(ctx context.Context, log model.ScanLog) error { return nil }

func (f *fakeRepo) LastScanLog(ctx context.Context) (*model.ScanLog, error) { return nil, nil }

type fakeController struct {
	state    model.ScanState
	runCalls chan struct{}
	reset    bool
}

func (f *fakeController) Run(ctx context.Context) error {
	if f.runCalls != nil {
		f.runCalls <- struct{}{}
	}
	return nil
}

func (f *fakeController) Status(ctx context.Context) (model.ScanState, error) {
	return f.state, nil
}

func (f *fakeController) ResetRunning(ctx context.Context) (bool, error) {
	f.reset = true
	return f.state.Status == model.ScanStatusRunning, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func testJob(id string) model.Job {
	score := 0.85
	salaryMin, salaryMax := 150000, 200000
	return model.Job{
		ID:           id,
		CompanyID:    "acme",
		Title:        "Senior Technical Program Manager",
		URL:          "https://boards.greenhouse.io/acme/jobs/" + id,
		SalaryMin:    &salaryMin,
		SalaryMax:    &salaryMax,
		SalarySource: "jd",
		MatchScore:   &score,
		Status:       model.JobStatusNew,
		FirstSeen:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastSeen:     time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
}

type serverFixture struct {
	srv        *Server
	repo       *fakeRepo
	controller *fakeController
	pinger     *fakePinger
}

func newTestServer(t *testing.T, cfg Config) *serverFixture {
	t.Helper()
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 1000
	}
	repo := &fakeRepo{
		companies: []model.Company{
			{ID: "acme", Name: "Acme", CareersURL: "https://acme.example/careers", Tier: 1, Enabled: true},
		},
	}
	controller := &fakeController{state: model.ScanState{Status: model.ScanStatusIdle}}
	pinger := &fakePinger{}
	srv := New(cfg, repo, pinger, controller, scan.NewRunner(discardLogger()),
		http.DefaultClient, discardLogger())
	return &serverFixture{srv: srv, repo: repo, controller: controller, pinger: pinger}
}

func (f *serverFixture) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRequireAPIKey(t *testing.T) {
	f := newTestServer(t, Config{APIKey: "s3cret"})

	w := f.do(t, http.MethodGet, "/jobs", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	body := decodeBody[map[string]string](t, w)
	if body["detail"] != "Unauthorized" {
		t.Fatalf("detail = %q, want Unauthorized", body["detail"])
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("X-API-Key", "s3cret")
	w = httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", w.Code)
	}
}

func TestAuthDisabledWhenNoKeyConfigured(t *testing.T) {
	f := newTestServer(t, Config{})
	if w := f.do(t, http.MethodGet, "/jobs", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSearchTriggerStartsScan(t *testing.T) {
	f := newTestServer(t, Config{})
	f.controller.runCalls = make(chan struct{}, 1)

	w := f.do(t, http.MethodPost, "/search/trigger", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody[map[string]string](t, w); body["status"] != "started" {
		t.Fatalf("status = %q, want started", body["status"])
	}

	select {
	case <-f.controller.runCalls:
	case <-time.After(2 * time.Second):
		t.Fatal("scan never started")
	}
	f.srv.runner.Wait()
}

func TestSearchTriggerWhileRunning(t *testing.T) {
	f := newTestServer(t, Config{})
	f.controller.state = model.ScanState{Status: model.ScanStatusRunning}

	w := f.do(t, http.MethodPost, "/search/trigger", nil)
	if body := decodeBody[map[string]string](t, w); body["status"] != "running" {
		t.Fatalf("status = %q, want running", body["status"])
	}
}

func TestSearchStop(t *testing.T) {
	f := newTestServer(t, Config{})

	w := f.do(t, http.MethodPost, "/search/stop", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody[map[string]any](t, w)
	if body["status"] != "stopped" {
		t.Fatalf("status = %v, want stopped", body["status"])
	}
	if !f.controller.reset {
		t.Fatal("ResetRunning was not called")
	}
}

func TestSearchStatusAlwaysHasErrorsArray(t *testing.T) {
	f := newTestServer(t, Config{})
	w := f.do(t, http.MethodGet, "/search/status", nil)
	if !strings.Contains(w.Body.String(), `"errors":[]`) {
		t.Fatalf("body = %s, want errors:[]", w.Body.String())
	}
}

func TestListJobsQueryParams(t *testing.T) {
	f := newTestServer(t, Config{})
	f.repo.jobs = []model.Job{testJob("j1")}

	w := f.do(t, http.MethodGet, "/jobs?status=new&company_id=acme&min_score=0.7&query=tpm&limit=900&offset=20", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	q := f.repo.lastQuery
	if q.Status != "new" || q.CompanyID != "acme" || q.Search != "tpm" {
		t.Fatalf("query = %+v", q)
	}
	if q.MinScore == nil || *q.MinScore != 0.7 {
		t.Fatalf("min_score = %v, want 0.7", q.MinScore)
	}
	if q.Limit != 500 {
		t.Fatalf("limit = %d, want capped at 500", q.Limit)
	}
	if q.Offset != 20 {
		t.Fatalf("offset = %d, want 20", q.Offset)
	}

	out := decodeBody[jobListOut](t, w)
	if out.Total != 1 || len(out.Jobs) != 1 {
		t.Fatalf("total = %d, jobs = %d", out.Total, len(out.Jobs))
	}
}

func TestListJobsDefaultsAndBadParams(t *testing.T) {
	f := newTestServer(t, Config{})

	if w := f.do(t, http.MethodGet, "/jobs", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if f.repo.lastQuery.Limit != 100 {
		t.Fatalf("default limit = %d, want 100", f.repo.lastQuery.Limit)
	}

	for _, target := range []string{"/jobs?min_score=high", "/jobs?limit=0", "/jobs?offset=-1"} {
		if w := f.do(t, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestGetJob(t *testing.T) {
	f := newTestServer(t, Config{})
	f.repo.jobs = []model.Job{testJob("j1")}

	w := f.do(t, http.MethodGet, "/jobs/j1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	out := decodeBody[jobOut](t, w)
	if out.ID != "j1" || out.SalaryMin == nil || *out.SalaryMin != 150000 {
		t.Fatalf("job = %+v", out)
	}

	w = f.do(t, http.MethodGet, "/jobs/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := decodeBody[map[string]string](t, w); body["detail"] != "Job not found" {
		t.Fatalf("detail = %q", body["detail"])
	}
}

func TestUpdateJobStatus(t *testing.T) {
	f := newTestServer(t, Config{})
	f.repo.jobs = []model.Job{testJob("j1")}

	w := f.do(t, http.MethodPatch, "/jobs/j1/status",
		bytes.NewBufferString(`{"status":"bookmarked"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out := decodeBody[jobOut](t, w); out.Status != "bookmarked" {
		t.Fatalf("job status = %q", out.Status)
	}

	w = f.do(t, http.MethodPatch, "/jobs/j1/status",
		bytes.NewBufferString(`{"status":"archived"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status code = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodPatch, "/jobs/missing/status",
		bytes.NewBufferString(`{"status":"hidden"}`))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing job code = %d, want 404", w.Code)
	}
}

func TestUpdateCompany(t *testing.T) {
	f := newTestServer(t, Config{})

	w := f.do(t, http.MethodPatch, "/companies/acme",
		bytes.NewBufferString(`{"enabled":false}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out := decodeBody[companyOut](t, w); out.Enabled {
		t.Fatal("company still enabled")
	}

	w = f.do(t, http.MethodPatch, "/companies/acme", bytes.NewBufferString(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing enabled code = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodPatch, "/companies/nope",
		bytes.NewBufferString(`{"enabled":true}`))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown company code = %d, want 404", w.Code)
	}
}

func TestExportCSV(t *testing.T) {
	f := newTestServer(t, Config{})
	f.repo.jobs = []model.Job{testJob("j1")}

	w := f.do(t, http.MethodGet, "/jobs/export/csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=auros-jobs.csv" {
		t.Fatalf("disposition = %q", got)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header plus one row", len(lines))
	}
	wantHeader := "company_id,title,url,location,work_mode,match_score,salary_min,salary_max,salary_source,status,first_seen,last_seen"
	if lines[0] != wantHeader {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "150000") || !strings.Contains(lines[1], "0.85") {
		t.Fatalf("row = %q", lines[1])
	}
}

func TestStats(t *testing.T) {
	f := newTestServer(t, Config{})
	lastScan := time.Date(2025, 6, 3, 6, 0, 0, 0, time.UTC)
	f.repo.stats = model.Stats{
		TotalJobs: 5,
		StatusCounts: map[string]int{
			"new": 3, "bookmarked": 1, "applied": 1,
		},
		ByCompany:    map[string]int{"acme": 5},
		ScoreBuckets: map[string]int{"80-89": 2},
		NewJobsByDay: map[string]int{"2025-06-01": 5},
		LastScan:     &lastScan,
	}

	w := f.do(t, http.MethodGet, "/stats", nil)
	out := decodeBody[statsOut](t, w)
	if out.TotalJobs != 5 || out.NewJobs != 3 || out.Bookmarked != 1 || out.Hidden != 0 {
		t.Fatalf("stats = %+v", out)
	}
	if out.LastScan == nil || !out.LastScan.Equal(lastScan) {
		t.Fatalf("last_scan = %v", out.LastScan)
	}
}

func TestHealth(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ollama.Close()

	f := newTestServer(t, Config{OllamaBaseURL: ollama.URL, SlackConfigured: true})

	w := f.do(t, http.MethodGet, "/health", nil)
	body := decodeBody[map[string]string](t, w)
	if body["db"] != "ok" || body["ollama"] != "ok" || body["slack"] != "configured" {
		t.Fatalf("health = %v", body)
	}
}

func TestHealthDegraded(t *testing.T) {
	ollama := httptest.NewServer(http.NotFoundHandler())
	ollama.Close() // connection refused from here on

	f := newTestServer(t, Config{OllamaBaseURL: ollama.URL})
	f.pinger.err = io.ErrUnexpectedEOF

	w := f.do(t, http.MethodGet, "/health", nil)
	body := decodeBody[map[string]string](t, w)
	if body["db"] != "error" || body["ollama"] != "error" || body["slack"] != "disabled" {
		t.Fatalf("health = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestServer(t, Config{})
	f.do(t, http.MethodGet, "/jobs", nil)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "auros_http_requests_total") {
		t.Fatal("request counter missing from exposition")
	}
}

func TestRootEndpoint(t *testing.T) {
	f := newTestServer(t, Config{})
	w := f.do(t, http.MethodGet, "/", nil)
	if body := decodeBody[map[string]string](t, w); body["service"] != "Auros API" {
		t.Fatalf("service = %q", body["service"])
	}
}
