// internal/config/config.go
// Package config loads and validates run configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/realyield/auctionwatch/pkg/types"
)

// Config is one run's configuration. Durations are written in
// milliseconds, matching the site etiquette settings operators tune.
type Config struct {
	Source         string `yaml:"source"`
	Headless       *bool  `yaml:"headless"`
	UserAgent      string `yaml:"user_agent"`
	RequestDelayMs int    `yaml:"request_delay_ms"`
	NavTimeoutMs   int    `yaml:"nav_timeout_ms"`

	// MaxPages caps index discovery; MaxListings caps extraction. Zero
	// means unbounded.
	MaxPages    int `yaml:"max_pages"`
	MaxListings int `yaml:"max_listings"`

	Retry   RetryConfig   `yaml:"retry"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`

	LogLevel string `yaml:"log_level"`
}

type RetryConfig struct {
	MaxAttempts         int `yaml:"max_attempts"`
	PerAttemptTimeoutMs int `yaml:"per_attempt_timeout_ms"`
	BaseDelayMs         int `yaml:"base_delay_ms"`
	MaxDelayMs          int `yaml:"max_delay_ms"`
}

type OutputConfig struct {
	Format    string          `yaml:"format"`
	Directory string          `yaml:"directory"`
	Postgres  *PostgresConfig `yaml:"postgres"`
	SQLite    *SQLiteConfig   `yaml:"sqlite"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the configuration a flags-only invocation runs with.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path, expands ${VAR} references from the environment and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Headless == nil {
		headless := true
		c.Headless = &headless
	}
	if c.RequestDelayMs == 0 {
		c.RequestDelayMs = 1000
	}
	if c.NavTimeoutMs == 0 {
		c.NavTimeoutMs = 30000
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.PerAttemptTimeoutMs == 0 {
		c.Retry.PerAttemptTimeoutMs = 30000
	}
	if c.Retry.BaseDelayMs == 0 {
		c.Retry.BaseDelayMs = 2000
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = 15000
	}
	if c.Output.Format == "" {
		c.Output.Format = "csv"
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "exports"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}
	if _, err := types.ParseSource(c.Source); err != nil {
		return err
	}
	switch c.Output.Format {
	case "csv", "excel":
	default:
		return fmt.Errorf("unsupported output format %q (expected csv or excel)", c.Output.Format)
	}
	if c.RequestDelayMs < 0 {
		return fmt.Errorf("request_delay_ms must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.MaxPages < 0 || c.MaxListings < 0 {
		return fmt.Errorf("max_pages and max_listings must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}
	if c.Output.Postgres != nil && c.Output.Postgres.DSN == "" {
		return fmt.Errorf("output.postgres.dsn is required when the postgres sink is configured")
	}
	if c.Output.SQLite != nil && c.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path is required when the sqlite sink is configured")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// RequestDelay returns the pacing interval between navigations.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

// NavTimeout returns the per-navigation deadline.
func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutMs) * time.Millisecond
}

// PerAttemptTimeout returns the deadline for one extraction attempt.
func (c *RetryConfig) PerAttemptTimeout() time.Duration {
	return time.Duration(c.PerAttemptTimeoutMs) * time.Millisecond
}

// BaseDelay returns the first retry backoff.
func (c *RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff cap.
func (c *RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}
