package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skalra/auros/internal/store"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List tracked companies",
	Long:  "Prints a table of every company in the database, seeding defaults first if it is empty.",
	RunE:  runCompanies,
}

func init() {
	rootCmd.AddCommand(companiesCmd)
}

func runCompanies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.SeedCompanies(ctx, store.DefaultCompanies); err != nil {
		return err
	}
	companies, err := st.ListCompanies(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-15s %-45s %-5s %s\n", "Company", "Careers URL", "Tier", "Status")
	fmt.Println(strings.Repeat("─", 75))

	enabled, disabled := 0, 0
	for _, c := range companies {
		status := "enabled"
		if !c.Enabled {
			status = "disabled"
			disabled++
		} else {
			enabled++
		}
		fmt.Printf("%-15s %-45s %-5d %s\n", c.ID, c.CareersURL, c.Tier, status)
	}

	fmt.Printf("\nTotal: %d companies (%d enabled, %d disabled)\n", len(companies), enabled, disabled)
	return nil
}
