// Package daemon manages the RateHive daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Awards  AwardsConfig  `toml:"awards"`
	Jobs    JobsConfig    `toml:"jobs"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StoreConfig selects and configures the ledger store.
type StoreConfig struct {
	// Driver is "sqlite" (default), "postgres", or "memory".
	Driver string `toml:"driver"`
	// DSN is the postgres connection string. Ignored for other drivers.
	DSN string `toml:"dsn"`
}

// AwardsConfig tunes the award pipeline.
type AwardsConfig struct {
	// LockWaitMS bounds how long an award waits for its user's turn.
	LockWaitMS int `toml:"lock_wait_ms"`
	// CatalogTTLMS bounds badge catalog staleness.
	CatalogTTLMS int `toml:"catalog_ttl_ms"`
	// Points overrides the built-in point values per action.
	Points map[string]int64 `toml:"points"`
}

// JobsConfig controls the background job scheduler.
type JobsConfig struct {
	Enabled bool `toml:"enabled"`
	// ReconcileSpec is a cron expression for snapshot reconciliation.
	ReconcileSpec string `toml:"reconcile_spec"`
	// CatalogRefreshSpec is a cron expression for badge catalog reloads.
	CatalogRefreshSpec string `toml:"catalog_refresh_spec"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// envOverrides are applied on top of the TOML file so deployments can
// configure the daemon without mounting a config file.
type envOverrides struct {
	Host        string `envconfig:"HOST"`
	Port        int    `envconfig:"PORT"`
	StoreDriver string `envconfig:"STORE_DRIVER"`
	StoreDSN    string `envconfig:"STORE_DSN"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogFormat   string `envconfig:"LOG_FORMAT"`
	LockWaitMS  int    `envconfig:"LOCK_WAIT_MS"`
	JobsEnabled *bool  `envconfig:"JOBS_ENABLED"`
	Metrics     *bool  `envconfig:"METRICS"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8090,
			Metrics: true,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Awards: AwardsConfig{
			LockWaitMS:   5000,
			CatalogTTLMS: 30000,
		},
		Jobs: JobsConfig{
			Enabled:            true,
			ReconcileSpec:      "@every 1h",
			CatalogRefreshSpec: "@every 30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads config from ~/.ratehive/config.toml, falling back to
// defaults, then applies RATEHIVE_* environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(ratehiveHome(), "config.toml")

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("RATEHIVE", &env); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if env.Host != "" {
		cfg.API.Host = env.Host
	}
	if env.Port != 0 {
		cfg.API.Port = env.Port
	}
	if env.StoreDriver != "" {
		cfg.Store.Driver = env.StoreDriver
	}
	if env.StoreDSN != "" {
		cfg.Store.DSN = env.StoreDSN
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Logging.Format = env.LogFormat
	}
	if env.LockWaitMS != 0 {
		cfg.Awards.LockWaitMS = env.LockWaitMS
	}
	if env.JobsEnabled != nil {
		cfg.Jobs.Enabled = *env.JobsEnabled
	}
	if env.Metrics != nil {
		cfg.API.Metrics = *env.Metrics
	}

	return cfg, nil
}

// SaveConfig writes the config to ~/.ratehive/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(ratehiveHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// LockWait returns the configured lock wait as a duration.
func (c AwardsConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitMS) * time.Millisecond
}

// CatalogTTL returns the configured catalog TTL as a duration.
func (c AwardsConfig) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLMS) * time.Millisecond
}

// ratehiveHome returns the RateHive data directory.
func ratehiveHome() string {
	if env := os.Getenv("RATEHIVE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ratehive")
}

// Home is exported for use by other packages.
func Home() string {
	return ratehiveHome()
}
