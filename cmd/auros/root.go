package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/skalra/auros/internal/config"
	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/notifier"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "auros",
	Short: "Job radar for senior program and platform roles",
	Long:  "Auros scans company career pages, scores the matches with a local model, and serves the results over HTTP.",
	// Default to `serve` so the bare binary runs the daemon. Keeps systemd
	// units that invoke the binary directly working.
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: AUROS_CONFIG env var, else env-only)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > AUROS_CONFIG env var > environment only.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("AUROS_CONFIG")
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	if cfg.Slack.WebhookURL != "" {
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Slack.WebhookURL, httpClient, logger)
	}
	return notifier.NewLogNotifier(logger)
}
