package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/skalra/auros/internal/browser"
	"github.com/skalra/auros/internal/config"
	"github.com/skalra/auros/internal/llm"
	"github.com/skalra/auros/internal/salary"
	"github.com/skalra/auros/internal/scan"
	"github.com/skalra/auros/internal/scraper"
	"github.com/skalra/auros/internal/store"
)

// app holds the wired pipeline shared by the serve and scan commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	controller *scan.Controller
	runner     *scan.Runner
	httpClient *http.Client
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := st.SeedCompanies(context.Background(), store.DefaultCompanies); err != nil {
		st.Close()
		return nil, fmt.Errorf("seeding companies: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	b := browser.New(browser.Config{}, logger)
	openSession := func(ctx context.Context) (scraper.RenderSession, error) {
		return b.NewSession(ctx)
	}
	scr := scraper.New(httpClient, openSession, scraper.Config{
		MaxConcurrentPages: cfg.Scrape.MaxConcurrentPages,
		DelayMin:           time.Duration(cfg.Scrape.DelayMinSeconds) * time.Second,
		DelayMax:           time.Duration(cfg.Scrape.DelayMaxSeconds) * time.Second,
		AllowedDomains:     cfg.Scrape.AllowedDomains,
	}, logger)

	// Model calls can take minutes on CPU-only hosts.
	llmClient := llm.New(cfg.Ollama.BaseURL, cfg.Ollama.Model,
		&http.Client{Timeout: 5 * time.Minute}, logger)
	estimator := salary.NewEstimator(llmClient, logger)

	n := setupNotifier(cfg, httpClient, logger)

	controller := scan.NewController(st, scr, llmClient, estimator, n, scan.Config{
		PreferredWorkMode:   cfg.Preferences.WorkMode,
		MinSalaryConfidence: cfg.Preferences.MinSalaryConfidence,
		NotifyMinScore:      cfg.Slack.MinScore,
	}, logger)

	// Clear scan state left behind by a crashed process.
	if reset, err := controller.ResetRunning(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("resetting scan state: %w", err)
	} else if reset {
		logger.Warn("cleared stale running scan state from a previous process")
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		controller: controller,
		runner:     scan.NewRunner(logger),
		httpClient: httpClient,
	}, nil
}

// Close cancels background tasks and releases the store.
func (a *app) Close() {
	a.runner.CancelAll()
	a.runner.Wait()
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing store", "error", err)
	}
}
