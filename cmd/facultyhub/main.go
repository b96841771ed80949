package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/facultyhub/internal/config"
	"github.com/ajitpratap0/facultyhub/internal/directory"
	"github.com/ajitpratap0/facultyhub/internal/news"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

var cfg *config.Config

func main() {
	// A missing .env is fine: config falls back to the environment and config.yaml.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "facultyhub",
		Short: "facultyhub: faculty directory service with job news ingestion",
		Long: "facultyhub keeps professors, branches and departments consistent as records change, " +
			"and ingests deduplicated job-vacancy news that expires after a retention window.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		ingestCmd(),
		sweepCmd(),
		seedCmd(),
		deleteProfessorCmd(),
		deleteDepartmentCmd(),
		listCmd(),
		healthCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			level = slog.LevelInfo
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newStore opens the configured backend and ensures its schema before anything uses it.
func newStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		st = store.NewMemoryStore(store.WithReplicaSet(cfg.Store.ReplicaSet))
	case config.DriverSQLite:
		st, err = store.OpenSQL(ctx, store.DialectSQLite, cfg.Store.DSN)
	case config.DriverPostgres:
		st, err = store.OpenSQL(ctx, store.DialectPostgres, cfg.Store.DSN)
	case config.DriverNeo4j:
		st, err = store.OpenNeo4j(ctx, store.Neo4jConfig{
			URI:      cfg.Store.Neo4j.URI,
			Username: cfg.Store.Neo4j.Username,
			Password: cfg.Store.Neo4j.Password,
			Database: cfg.Store.Neo4j.Database,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ensuring %s schema: %w", cfg.Store.Driver, err)
	}
	logger.Debug("store ready", "driver", cfg.Store.Driver)
	return st, nil
}

func newEngine(st store.Store, logger *slog.Logger) *directory.Engine {
	detector := directory.NewTxDetector(st, cfg.Store.CacheTxProbe, logger)
	return directory.NewEngine(st, detector, logger)
}

func newIngester(st store.Store, logger *slog.Logger) *news.Ingester {
	src := news.NewSource(news.GoogleConfig{
		APIKey:   cfg.News.APIKey,
		EngineID: cfg.News.EngineID,
		BaseURL:  cfg.News.BaseURL,
		Timeout:  cfg.News.Timeout,
	})
	return news.NewIngester(src, st, news.Options{
		Query:     cfg.News.Query,
		Count:     cfg.News.Count,
		Retention: cfg.News.Retention,
	}, logger)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
