package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/scan"
)

const (
	defaultJobLimit = 100
	maxJobLimit     = 500
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "Auros API",
		"health":  "/health",
		"metrics": "/metrics",
	})
}

// Scan control.

func (s *Server) handleSearchTrigger(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state.Status == model.ScanStatusRunning {
		writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
		return
	}

	// The scan outlives the request; it is cancelled via /search/stop or
	// process shutdown, not by the client disconnecting.
	s.runner.Go(context.Background(), "full_scan", func(ctx context.Context) {
		err := s.controller.Run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, scan.ErrAlreadyRunning), errors.Is(err, context.Canceled):
			s.logger.Info("background scan ended early", "reason", err)
		default:
			s.logger.Error("background scan failed", "error", err)
		}
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleSearchStop(w http.ResponseWriter, r *http.Request) {
	cancelled := s.runner.CancelAll()
	if _, err := s.controller.ResetRunning(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "stopped",
		"tasks_cancelled": cancelled,
	})
}

func (s *Server) handleSearchStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toScanStatusOut(state))
}

// Jobs.

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := model.JobQuery{
		Status:    r.URL.Query().Get("status"),
		CompanyID: r.URL.Query().Get("company_id"),
		Search:    r.URL.Query().Get("query"),
		Limit:     defaultJobLimit,
	}

	if raw := r.URL.Query().Get("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		q.MinScore = &minScore
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit > maxJobLimit {
			limit = maxJobLimit
		}
		q.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		q.Offset = offset
	}

	jobs, total, err := s.repo.ListJobs(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := jobListOut{Jobs: make([]jobOut, 0, len(jobs)), Total: total}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, toJobOut(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.repo.JobByID(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobOut(*job))
}

var validJobStatuses = map[string]bool{
	model.JobStatusNew:        true,
	model.JobStatusBookmarked: true,
	model.JobStatusApplied:    true,
	model.JobStatusHidden:     true,
}

func (s *Server) handleUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	var payload jobStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validJobStatuses[payload.Status] {
		writeError(w, http.StatusBadRequest, "status must be new|bookmarked|applied|hidden")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	if err := s.repo.SetJobStatus(r.Context(), jobID, payload.Status); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, err := s.repo.JobByID(r.Context(), jobID)
	if err != nil || job == nil {
		writeError(w, http.StatusInternalServerError, "job vanished during update")
		return
	}
	writeJSON(w, http.StatusOK, toJobOut(*job))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	jobs, _, err := s.repo.ListJobs(r.Context(), model.JobQuery{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=auros-jobs.csv")

	cw := csv.NewWriter(w)
	record := []string{
		"company_id", "title", "url", "location", "work_mode", "match_score",
		"salary_min", "salary_max", "salary_source", "status", "first_seen", "last_seen",
	}
	if err := cw.Write(record); err != nil {
		s.logger.Error("csv write failed", "error", err)
		return
	}
	for _, j := range jobs {
		record = []string{
			j.CompanyID, j.Title, j.URL, j.Location, j.WorkMode,
			csvFloat(j.MatchScore), csvInt(j.SalaryMin), csvInt(j.SalaryMax),
			j.SalarySource, j.Status,
			j.FirstSeen.Format(time.RFC3339), j.LastSeen.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			s.logger.Error("csv write failed", "error", err)
			return
		}
	}
	cw.Flush()
}

func csvInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// Companies.

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.repo.ListCompanies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]companyOut, 0, len(companies))
	for _, c := range companies {
		out = append(out, toCompanyOut(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	var payload companyUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body must set enabled")
		return
	}

	companyID := chi.URLParam(r, "companyID")
	if err := s.repo.SetCompanyEnabled(r.Context(), companyID, *payload.Enabled); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Company not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	companies, err := s.repo.ListCompanies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, c := range companies {
		if c.ID == companyID {
			writeJSON(w, http.StatusOK, toCompanyOut(c))
			return
		}
	}
	writeError(w, http.StatusNotFound, "Company not found")
}

// Stats and health.

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statsOut{
		TotalJobs:    stats.TotalJobs,
		NewJobs:      stats.StatusCounts[model.JobStatusNew],
		Bookmarked:   stats.StatusCounts[model.JobStatusBookmarked],
		Applied:      stats.StatusCounts[model.JobStatusApplied],
		Hidden:       stats.StatusCounts[model.JobStatusHidden],
		LastScan:     stats.LastScan,
		ByCompany:    stats.ByCompany,
		ScoreBuckets: stats.ScoreBuckets,
		NewJobsByDay: stats.NewJobsByDay,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Error("database health check failed", "error", err)
		dbStatus = "error"
	}

	slackStatus := "disabled"
	if s.cfg.SlackConfigured {
		slackStatus = "configured"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"db":     dbStatus,
		"ollama": s.ollamaHealth(r.Context()),
		"slack":  slackStatus,
	})
}

func (s *Server) ollamaHealth(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.OllamaBaseURL+"/api/tags", nil)
	if err != nil {
		return "error"
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("ollama health check timed out")
			return "timeout"
		}
		s.logger.Error("ollama health check failed", "error", err)
		return "error"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "error"
	}
	return "ok"
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"detail":"encoding error"}`)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
