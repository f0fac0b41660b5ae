// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package config

import "time"

// Config holds all application configuration.
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Graph     GraphConfig     `koanf:"graph"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Retry     RetryConfig     `koanf:"retry"`
	Sync      SyncConfig      `koanf:"sync"`
	Cache     CacheConfig     `koanf:"cache"`
	Storage   StorageConfig   `koanf:"storage"`
	Backup    BackupConfig    `koanf:"backup"`
	Redis     RedisConfig     `koanf:"redis"`
	Events    EventsConfig    `koanf:"events"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// GraphConfig configures the Meta Graph API client.
//
// Environment Variables:
//   - GRAPH_BASE_URL: API host (default: https://graph.facebook.com)
//   - GRAPH_API_VERSION: versioned path segment (default: v21.0)
//   - GRAPH_TIMEOUT: per-request timeout (default: 30s)
//   - GRAPH_CIRCUIT_BREAKER: wrap calls in a circuit breaker (default: true)
type GraphConfig struct {
	BaseURL          string        `koanf:"base_url"`
	Version          string        `koanf:"version"`
	Timeout          time.Duration `koanf:"timeout"`
	CircuitBreaker   bool          `koanf:"circuit_breaker"`
	UsageWarnPercent int           `koanf:"usage_warn_percent"` // X-App-Usage call_count warning threshold
}

// RateLimitConfig configures the per-platform fixed windows.
//
// Meta documents 200 calls per user per hour for both platforms, which is
// the default for every key without a more specific limit.
type RateLimitConfig struct {
	Store          string        `koanf:"store"` // memory or redis
	DefaultLimit   int           `koanf:"default_limit"`
	DefaultWindow  time.Duration `koanf:"default_window"`
	InstagramLimit int           `koanf:"instagram_limit"`
	FacebookLimit  int           `koanf:"facebook_limit"`
	InsightsLimit  int           `koanf:"insights_limit"` // per-platform media insights endpoint
	PollMin        time.Duration `koanf:"poll_min"`
	PollMax        time.Duration `koanf:"poll_max"`
	KeyPrefix      string        `koanf:"key_prefix"` // redis key namespace
}

// RetryConfig is the default retry strategy of the rate limiter.
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries"`
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxDelay   time.Duration `koanf:"max_delay"`
	Multiplier float64       `koanf:"multiplier"`
	Jitter     float64       `koanf:"jitter"` // fraction, 0.25 = +-25%
}

// SyncConfig configures the orchestrator and its scheduler.
type SyncConfig struct {
	Enabled             bool          `koanf:"enabled"` // run the scheduler
	IncrementalInterval time.Duration `koanf:"incremental_interval"`
	DailyAt             string        `koanf:"daily_at"` // HH:MM, UTC
	InitialLookbackDays int           `koanf:"initial_lookback_days"`
	InitialPageSize     int           `koanf:"initial_page_size"`
	IncrementalPageSize int           `koanf:"incremental_page_size"`
	MaxMediaPerRun      int           `koanf:"max_media_per_run"` // 0 is unbounded
	RollupDays          int           `koanf:"rollup_days"`
	ItemDelay           time.Duration `koanf:"item_delay"`
	HotspotsEnabled     bool          `koanf:"hotspots_enabled"`
}

// CacheConfig configures the comparison cache.
type CacheConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// StorageConfig configures the reference storage adapter.
type StorageConfig struct {
	Driver           string `koanf:"driver"` // badger or memory
	Path             string `koanf:"path"`
	EncryptionSecret string `koanf:"encryption_secret"` // derives the token encryption key
}

// BackupConfig configures scheduled backups of the badger store.
//
// Environment Variables:
//   - BACKUP_ENABLED: run scheduled backups (default: false)
//   - BACKUP_DIR: destination directory (default: /data/backups)
//   - BACKUP_INTERVAL: time between scheduled backups (default: 24h)
//   - BACKUP_MIN_COUNT, BACKUP_MAX_COUNT, BACKUP_MAX_AGE_DAYS, BACKUP_KEEP_DAILY_DAYS: retention
type BackupConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Dir           string        `koanf:"dir"`
	Interval      time.Duration `koanf:"interval"`
	MinCount      int           `koanf:"min_count"`
	MaxCount      int           `koanf:"max_count"`
	MaxAgeDays    int           `koanf:"max_age_days"`
	KeepDailyDays int           `koanf:"keep_daily_days"`
}

// RedisConfig configures the shared rate-limit window store.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// EventsConfig configures the watermill event bus.
type EventsConfig struct {
	Transport         string  `koanf:"transport"` // gochannel or nats
	NATSURL           string  `koanf:"nats_url"`
	EmbeddedServer    bool    `koanf:"embedded_server"`
	EmbeddedHost      string  `koanf:"embedded_host"`
	EmbeddedPort      int     `koanf:"embedded_port"`
	HotspotMultiplier float64 `koanf:"hotspot_multiplier"`
	HotspotLookback   int     `koanf:"hotspot_lookback_days"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig configures the ops API guards.
type SecurityConfig struct {
	CORSOrigins        []string `koanf:"cors_origins"`
	TriggerRateLimit   int      `koanf:"trigger_rate_limit"` // sync triggers per minute per client
	TrustedProxyHeader bool     `koanf:"trusted_proxy_header"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}
