// Package server exposes the HTTP API: scan control, job and company
// management, stats, export, health, and Prometheus metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/scan"
)

// Controller is the scan surface the API drives.
type Controller interface {
	Run(ctx context.Context) error
	Status(ctx context.Context) (model.ScanState, error)
	ResetRunning(ctx context.Context) (bool, error)
}

// Pinger reports whether the database connection is alive.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the API surface settings.
type Config struct {
	ListenAddr         string
	APIKey             string // empty disables auth
	CORSOrigins        []string
	RateLimitPerMinute int
	OllamaBaseURL      string
	SlackConfigured    bool
}

// Server wires the router to the repository and scan controller.
type Server struct {
	cfg        Config
	repo       model.Repository
	pinger     Pinger
	controller Controller
	runner     *scan.Runner
	httpClient *http.Client
	logger     *slog.Logger

	srv *http.Server
}

func New(
	cfg Config,
	repo model.Repository,
	pinger Pinger,
	controller Controller,
	runner *scan.Runner,
	httpClient *http.Client,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		repo:       repo,
		pinger:     pinger,
		controller: controller,
		runner:     runner,
		httpClient: httpClient,
		logger:     logger,
	}
	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the full middleware chain and route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(s.cfg.RateLimitPerMinute, time.Minute))
	r.Use(s.requireAPIKey)

	r.Get("/", s.handleRoot)

	r.Route("/search", func(r chi.Router) {
		r.Post("/trigger", s.handleSearchTrigger)
		r.Post("/stop", s.handleSearchStop)
		r.Get("/status", s.handleSearchStatus)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/export/csv", s.handleExportCSV)
		r.Get("/{jobID}", s.handleGetJob)
		r.Patch("/{jobID}/status", s.handleUpdateJobStatus)
	})

	r.Route("/companies", func(r chi.Router) {
		r.Get("/", s.handleListCompanies)
		r.Patch("/{companyID}", s.handleUpdateCompany)
	})

	r.Get("/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.cfg.ListenAddr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.srv.Shutdown(ctx)
}
