package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/facultyhub/internal/directory"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to required services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Check the store
			st, err := newStore(ctx, logger)
			if err != nil {
				fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Driver, err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if _, err := st.CountProfessors(ctx); err != nil {
					fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Driver, err)
					allOK = false
				} else {
					fmt.Printf("Store (%s): OK\n", cfg.Store.Driver)
				}

				// Report the cascade mode; best-effort is a supported mode, not a failure.
				if directory.NewTxDetector(st, false, logger).CanUseTransactions(ctx) {
					fmt.Println("Transactions: OK (cascades are atomic)")
				} else {
					fmt.Println("Transactions: unavailable (cascades run best-effort)")
				}
			}

			// Check news credentials
			if cfg.News.Enabled() {
				fmt.Println("News search: OK")
			} else {
				fmt.Println("News search: DISABLED (no API key or engine id configured)")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
