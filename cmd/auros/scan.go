package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan and exit",
	Long:  "Scan every enabled company once, then print the outcome and exit.",
	RunE:  runScanOnce,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScanOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.controller.Run(ctx); err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}

	state, err := a.controller.Status(context.Background())
	if err != nil {
		return err
	}
	logger.Info("scan finished",
		"companies_scanned", state.CompaniesScanned,
		"jobs_found", state.JobsFound,
		"jobs_new", state.JobsNew,
		"errors", len(state.Errors),
	)
	return nil
}
