package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skalra/auros/internal/scan"
	"github.com/skalra/auros/internal/scheduler"
	"github.com/skalra/auros/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and scan scheduler",
	Long:  "Run the HTTP API and the cron scheduler; blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"ollama_model", cfg.Ollama.Model,
		"schedule_hours", cfg.Scheduler.Hours,
		"timezone", cfg.Scheduler.Timezone,
		"scheduler_disabled", cfg.Scheduler.Disabled,
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	runScan := func() {
		a.runner.Go(context.Background(), "scheduled_scan", func(ctx context.Context) {
			err := a.controller.Run(ctx)
			switch {
			case err == nil:
			case errors.Is(err, scan.ErrAlreadyRunning):
				logger.Info("scheduled scan skipped, one already running")
			case errors.Is(err, context.Canceled):
				logger.Info("scheduled scan cancelled")
			default:
				logger.Error("scheduled scan failed", "error", err)
			}
		})
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Disabled {
		logger.Info("scheduler disabled, scans run only on demand")
	} else {
		sched, err = scheduler.New(cfg.Scheduler.Hours, cfg.Scheduler.Timezone, runScan, logger)
		if err != nil {
			logger.Error("failed to build scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
	}

	srv := server.New(server.Config{
		ListenAddr:         cfg.ListenAddr,
		APIKey:             cfg.API.Key,
		CORSOrigins:        cfg.API.CORSOrigins,
		RateLimitPerMinute: cfg.API.RateLimitPerMinute,
		OllamaBaseURL:      cfg.Ollama.BaseURL,
		SlackConfigured:    cfg.Slack.WebhookURL != "",
	}, a.store, a.store, a.controller, a.runner, a.httpClient, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}

	logger.Info("goodbye")
	return nil
}
