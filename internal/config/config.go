// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and FANTASY_ environment variables on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseDSN is the postgres connection string.
	DatabaseDSN string `koanf:"database_dsn"`

	// JWTSecret verifies bearer token signatures. Empty accepts unverified tokens.
	JWTSecret string `koanf:"jwt_secret"`

	ProviderBaseURL   string `koanf:"provider_base_url"`
	ProviderTimeoutMS int    `koanf:"provider_timeout_ms"`

	// SyncInterval schedules periodic ingestion in the server. Zero disables it.
	SyncInterval time.Duration `koanf:"sync_interval"`

	// SyncSeason is the season year synced by the periodic job. Zero means
	// the current year.
	SyncSeason int `koanf:"sync_season"`

	ReadRetryAttempts  int `koanf:"read_retry_attempts"`
	ReadRetryBackoffMS int `koanf:"read_retry_backoff_ms"`

	// HistoryOffsetMS is added to an anchor event's date to stamp transfer edits.
	HistoryOffsetMS int `koanf:"history_offset_ms"`

	DefaultTeamSize          int     `koanf:"default_team_size"`
	DefaultTransfersPerEvent int     `koanf:"default_transfers_per_event"`
	DefaultCaptainMultiplier float64 `koanf:"default_captain_multiplier"`

	// LeaderboardConcurrency bounds per-team scoring goroutines.
	LeaderboardConcurrency int `koanf:"leaderboard_concurrency"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		Store:                    StoreMemory,
		ProviderBaseURL:          "https://ifsc.results.info",
		ProviderTimeoutMS:        30_000,
		ReadRetryAttempts:        3,
		ReadRetryBackoffMS:       100,
		HistoryOffsetMS:          1000,
		DefaultTeamSize:          6,
		DefaultTransfersPerEvent: 1,
		DefaultCaptainMultiplier: 1.2,
		LeaderboardConcurrency:   8,
	}
}

// ProviderTimeout returns the provider request timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMS) * time.Millisecond
}

// ReadRetryBackoff returns the fixed backoff between read retries.
func (c *Config) ReadRetryBackoff() time.Duration {
	return time.Duration(c.ReadRetryBackoffMS) * time.Millisecond
}

// HistoryOffset returns the transfer history timestamp offset.
func (c *Config) HistoryOffset() time.Duration {
	return time.Duration(c.HistoryOffsetMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownStore, c.Store)
	case c.Store == StorePostgres && c.DatabaseDSN == "":
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingDSN)
	case c.DefaultCaptainMultiplier <= 1:
		return fmt.Errorf("%w: default_captain_multiplier: %w", ErrInvalidConfig, ErrCaptainMultiplier)
	case c.HistoryOffsetMS <= 0:
		return fmt.Errorf("%w: history_offset_ms must be positive", ErrInvalidConfig)
	case c.DefaultTeamSize <= 0:
		return fmt.Errorf("%w: default_team_size must be positive", ErrInvalidConfig)
	case c.DefaultTransfersPerEvent < 0:
		return fmt.Errorf("%w: default_transfers_per_event must not be negative", ErrInvalidConfig)
	case c.SyncInterval < 0:
		return fmt.Errorf("%w: sync_interval must not be negative", ErrInvalidConfig)
	}
	return nil
}
