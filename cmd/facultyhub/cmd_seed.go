package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/facultyhub/internal/seed"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load a seed document into the store",
		Long: `Loads a YAML or JSON seed document (departments, branches, professors, news).
An empty store is seeded in full, including companies. A populated store is
reconciled: departments and branches are upserted, professors are upserted by
email and news is inserted when absent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			file := cfg.Seed.File
			if len(args) == 1 {
				file = args[0]
			}
			if file == "" {
				return fmt.Errorf("seed: no file given and seed.file is not configured")
			}

			doc, err := seed.Load(file)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("seed: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			report, err := seed.NewSeeder(st, cfg.News.Retention, logger).Apply(ctx, doc)
			if err != nil {
				return fmt.Errorf("seed: applying %s: %w", file, err)
			}

			fmt.Printf("Seed report (%s):\n", report.Mode)
			fmt.Printf("  Departments:  %d\n", report.Departments)
			fmt.Printf("  Branches:     %d\n", report.Branches)
			fmt.Printf("  Professors:   %d (skipped %d)\n", report.Professors, report.Skipped)
			fmt.Printf("  News:         %d\n", report.News)
			fmt.Printf("  Companies:    %d\n", report.Companies)
			return nil
		},
	}
}
