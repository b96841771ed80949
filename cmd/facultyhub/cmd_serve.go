package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/facultyhub/internal/api"
	"github.com/ajitpratap0/facultyhub/internal/lifecycle"
	"github.com/ajitpratap0/facultyhub/internal/scheduler"
	"github.com/ajitpratap0/facultyhub/internal/seed"
)

func serveCmd() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server with news ingestion and expiry sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("serve: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if seedFile == "" {
				seedFile = cfg.Seed.File
			}
			if seedFile != "" {
				doc, loadErr := seed.Load(seedFile)
				if loadErr != nil {
					return fmt.Errorf("serve: %w", loadErr)
				}
				if _, seedErr := seed.NewSeeder(st, cfg.News.Retention, logger).Apply(ctx, doc); seedErr != nil {
					// Seeding is an aid, not a precondition for serving.
					logger.Error("seeding failed", "file", seedFile, "error", seedErr)
				}
			}

			engine := newEngine(st, logger)
			ingester := newIngester(st, logger)
			sweeper := lifecycle.NewManager(st, logger)

			if ingester.Enabled() {
				ingest := scheduler.New("news-ingest", cfg.News.PollInterval, ingester.Job, logger)
				ingest.Start(ctx)
				defer ingest.Stop()
			} else {
				logger.Warn("news ingestion disabled: set GOOGLE_API_KEY and GOOGLE_CX to enable it")
			}
			sweep := scheduler.New("news-expiry", cfg.Lifecycle.SweepInterval, sweeper.Job, logger)
			sweep.Start(ctx)
			defer sweep.Stop()

			srv := api.NewServer(engine, ingester, logger, cfg.API.AuthToken)

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set FACULTYHUB_API_AUTH_TOKEN or api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr, "store", cfg.Store.Driver)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				if startErr != nil {
					return startErr
				}
				return nil
			}

			const shutdownTimeout = 10 * time.Second
			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain the errCh in case ListenAndServe returned after Shutdown.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "seed", "", "seed document (YAML or JSON) to apply before serving")
	return cmd
}
