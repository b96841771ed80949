package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/facultyhub/internal/lifecycle"
)

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch job news once and store new items",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("ingest: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			ingester := newIngester(st, logger)
			if !ingester.Enabled() {
				fmt.Println("News ingestion is disabled: no search API key or engine id configured.")
				return nil
			}

			res := ingester.FetchAndStore(ctx)
			fmt.Printf("Processed %d items, inserted %d new\n", res.Processed, res.Inserted)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove news items whose retention window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("sweep: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			report, err := lifecycle.NewManager(st, logger).Run(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("sweep: running lifecycle: %w", err)
			}

			fmt.Printf("Lifecycle report:\n")
			fmt.Printf("  Expired news:  %d\n", report.Expired)
			if dryRun {
				fmt.Println("  (dry run: no changes applied)")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	return cmd
}
