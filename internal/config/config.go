package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultNewsQuery is the search query used by the ingestion loop.
	DefaultNewsQuery = `"job vacancy" OR hiring VL`

	// DefaultNewsCount is the number of results requested per fetch.
	DefaultNewsCount = 8

	// DefaultNewsRetention is how long a news item lives after publication.
	DefaultNewsRetention = 14 * 24 * time.Hour
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNeo4j    = "neo4j"
)

// Config holds all configuration for facultyhub.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	API       APIConfig       `mapstructure:"api"`
	News      NewsConfig      `mapstructure:"news"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// DSN is the SQLite file path or the PostgreSQL connection string.
	DSN          string      `mapstructure:"dsn"`
	Neo4j        Neo4jConfig `mapstructure:"neo4j"`
	ReplicaSet   bool        `mapstructure:"replica_set"` // memory driver only
	CacheTxProbe bool        `mapstructure:"cache_tx_probe"`
}

// Neo4jConfig holds graph database connection settings.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// String returns a safe representation of Neo4jConfig with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, Username:%s, Password:%s, Database:%s}",
		c.URI, c.Username, maskAPIKey(c.Password), c.Database)
}

// String returns a safe representation of StoreConfig with credentials masked.
func (c StoreConfig) String() string {
	return fmt.Sprintf("StoreConfig{Driver:%s, DSN:%s, Neo4j:%s, ReplicaSet:%t, CacheTxProbe:%t}",
		c.Driver, maskDSN(c.DSN), c.Neo4j, c.ReplicaSet, c.CacheTxProbe)
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// String returns a safe representation of APIConfig with the token masked.
func (c APIConfig) String() string {
	return fmt.Sprintf("APIConfig{ListenAddr:%s, AuthToken:%s}", c.ListenAddr, maskAPIKey(c.AuthToken))
}

// NewsConfig holds the search source and ingestion settings.
type NewsConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	EngineID     string        `mapstructure:"engine_id"`
	BaseURL      string        `mapstructure:"base_url"`
	Query        string        `mapstructure:"query"`
	Count        int           `mapstructure:"count"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Retention    time.Duration `mapstructure:"retention"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// String returns a safe representation of NewsConfig with the API key masked.
func (c NewsConfig) String() string {
	return fmt.Sprintf("NewsConfig{APIKey:%s, EngineID:%s, Query:%s, Count:%d, PollInterval:%s, Retention:%s}",
		maskAPIKey(c.APIKey), c.EngineID, c.Query, c.Count, c.PollInterval, c.Retention)
}

// Enabled reports whether both search credentials are present.
func (c NewsConfig) Enabled() bool {
	return c.APIKey != "" && c.EngineID != ""
}

// LifecycleConfig holds the expiry sweep settings.
type LifecycleConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SeedConfig points at the optional seed document.
type SeedConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if key == "" {
		return ""
	}
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// maskDSN hides the password of a URL-style DSN.
func maskDSN(dsn string) string {
	scheme := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return dsn
	}
	return dsn[:scheme+3] + user + ":***" + dsn[at:]
}

// String returns the configuration with every secret masked.
func (c Config) String() string {
	return fmt.Sprintf("Config{Store:%s, API:%s, News:%s, Lifecycle:{SweepInterval:%s}, Seed:{File:%s}, Logging:{Level:%s, Format:%s}}",
		c.Store, c.API, c.News, c.Lifecycle.SweepInterval, c.Seed.File, c.Logging.Level, c.Logging.Format)
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("store.neo4j.username", "neo4j")
	v.SetDefault("store.neo4j.password", "")
	v.SetDefault("store.neo4j.database", "neo4j")
	v.SetDefault("store.replica_set", false)
	v.SetDefault("store.cache_tx_probe", false)

	v.SetDefault("api.listen_addr", ":5000")
	v.SetDefault("api.auth_token", "")

	v.SetDefault("news.api_key", "")
	v.SetDefault("news.engine_id", "")
	v.SetDefault("news.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("news.query", DefaultNewsQuery)
	v.SetDefault("news.count", DefaultNewsCount)
	v.SetDefault("news.poll_interval", time.Hour)
	v.SetDefault("news.retention", DefaultNewsRetention)
	v.SetDefault("news.timeout", 15*time.Second)

	v.SetDefault("lifecycle.sweep_interval", time.Minute)

	v.SetDefault("seed.file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".facultyhub"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("FACULTYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("news.api_key", "FACULTYHUB_NEWS_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("news.engine_id", "FACULTYHUB_NEWS_ENGINE_ID", "GOOGLE_CX")
	_ = v.BindEnv("store.dsn", "FACULTYHUB_STORE_DSN", "DATABASE_URL")
	_ = v.BindEnv("store.neo4j.uri", "FACULTYHUB_STORE_NEO4J_URI", "NEO4J_URI")
	_ = v.BindEnv("store.neo4j.password", "FACULTYHUB_STORE_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("api.listen_addr", "FACULTYHUB_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "FACULTYHUB_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK: use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must not be empty for driver %q", c.Store.Driver)
		}
	case DriverNeo4j:
		if c.Store.Neo4j.URI == "" {
			return fmt.Errorf("store.neo4j.uri must not be empty for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, sqlite, postgres, neo4j (got %q)", c.Store.Driver)
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr must not be empty")
	}
	if c.News.Query == "" {
		return fmt.Errorf("news.query must not be empty")
	}
	if c.News.Count < 1 || c.News.Count > 10 {
		return fmt.Errorf("news.count must be between 1 and 10")
	}
	if c.News.PollInterval <= 0 {
		return fmt.Errorf("news.poll_interval must be greater than 0")
	}
	if c.News.Retention <= 0 {
		return fmt.Errorf("news.retention must be greater than 0")
	}
	if c.News.Timeout <= 0 {
		return fmt.Errorf("news.timeout must be greater than 0")
	}
	if c.Lifecycle.SweepInterval <= 0 {
		return fmt.Errorf("lifecycle.sweep_interval must be greater than 0")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
