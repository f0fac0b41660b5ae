// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateGraph,
		c.validateRateLimit,
		c.validateRetry,
		c.validateSync,
		c.validateStorage,
		c.validateBackup,
		c.validateEvents,
		c.validateServer,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateGraph() error {
	if err := validateHTTPURL(c.Graph.BaseURL, "GRAPH_BASE_URL"); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Graph.Version, "v") {
		return fmt.Errorf("GRAPH_API_VERSION must look like v21.0, got %q", c.Graph.Version)
	}
	if c.Graph.Timeout <= 0 {
		return fmt.Errorf("GRAPH_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	switch c.RateLimit.Store {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_STORE=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be memory or redis, got %q", c.RateLimit.Store)
	}
	if c.RateLimit.DefaultLimit <= 0 || c.RateLimit.DefaultWindow <= 0 {
		return fmt.Errorf("rate limit default limit and window must be positive")
	}
	if c.RateLimit.InstagramLimit < 0 || c.RateLimit.FacebookLimit < 0 || c.RateLimit.InsightsLimit < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	if c.RateLimit.PollMin <= 0 || c.RateLimit.PollMax < c.RateLimit.PollMin {
		return fmt.Errorf("RATE_LIMIT_POLL_MIN must be positive and not exceed RATE_LIMIT_POLL_MAX")
	}
	return nil
}

func (c *Config) validateRetry() error {
	r := c.Retry
	if r.MaxRetries < 0 {
		return fmt.Errorf("RETRY_MAX_RETRIES cannot be negative")
	}
	if r.BaseDelay <= 0 || r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("RETRY_BASE_DELAY must be positive and not exceed RETRY_MAX_DELAY")
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1, got %v", r.Multiplier)
	}
	if r.Jitter < 0 || r.Jitter >= 1 {
		return fmt.Errorf("RETRY_JITTER must be in [0, 1), got %v", r.Jitter)
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	if _, err := ParseDailyAt(s.DailyAt); err != nil {
		return err
	}
	if s.IncrementalInterval < time.Minute {
		return fmt.Errorf("SYNC_INCREMENTAL_INTERVAL must be at least 1m, got %v", s.IncrementalInterval)
	}
	if s.InitialLookbackDays <= 0 || s.RollupDays <= 0 {
		return fmt.Errorf("sync lookback and rollup days must be positive")
	}
	if s.InitialPageSize <= 0 || s.IncrementalPageSize <= 0 {
		return fmt.Errorf("sync page sizes must be positive")
	}
	if s.MaxMediaPerRun < 0 {
		return fmt.Errorf("SYNC_MAX_MEDIA_PER_RUN cannot be negative")
	}
	if s.ItemDelay < 0 {
		return fmt.Errorf("SYNC_ITEM_DELAY cannot be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case "memory":
		return nil
	case "badger":
		if c.Storage.Path == "" {
			return fmt.Errorf("STORAGE_PATH is required for the badger driver")
		}
		if c.Storage.EncryptionSecret == "" {
			return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is required for the badger driver")
		}
		if len(c.Storage.EncryptionSecret) < 32 {
			return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must be at least 32 characters")
		}
		return nil
	default:
		return fmt.Errorf("STORAGE_DRIVER must be badger or memory, got %q", c.Storage.Driver)
	}
}

func (c *Config) validateBackup() error {
	b := c.Backup
	if !b.Enabled {
		return nil
	}
	if c.Storage.Driver != "badger" {
		return fmt.Errorf("BACKUP_ENABLED requires the badger storage driver")
	}
	if b.Dir == "" {
		return fmt.Errorf("BACKUP_DIR is required when backups are enabled")
	}
	if b.Interval < time.Minute {
		return fmt.Errorf("BACKUP_INTERVAL must be at least 1m")
	}
	if b.MinCount < 0 || b.MaxCount < 0 || b.MaxAgeDays < 0 || b.KeepDailyDays < 0 {
		return fmt.Errorf("backup retention values cannot be negative")
	}
	if b.MaxCount > 0 && b.MinCount > b.MaxCount {
		return fmt.Errorf("BACKUP_MIN_COUNT (%d) cannot exceed BACKUP_MAX_COUNT (%d)", b.MinCount, b.MaxCount)
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Transport {
	case "gochannel":
	case "nats":
		if !c.Events.EmbeddedServer {
			if err := validateNATSURL(c.Events.NATSURL); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("EVENTS_TRANSPORT must be gochannel or nats, got %q", c.Events.Transport)
	}
	if c.Events.HotspotMultiplier <= 1 {
		return fmt.Errorf("HOTSPOT_MULTIPLIER must be greater than 1, got %v", c.Events.HotspotMultiplier)
	}
	if c.Events.HotspotLookback <= 0 {
		return fmt.Errorf("HOTSPOT_LOOKBACK_DAYS must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Security.TriggerRateLimit <= 0 {
		return fmt.Errorf("TRIGGER_RATE_LIMIT must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// ParseDailyAt parses an HH:MM (UTC) schedule into an offset from midnight.
func ParseDailyAt(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("SYNC_DAILY_AT must be HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// validateHTTPURL validates that a URL is a base http(s) URL without path or query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

// validateNATSURL validates nats://, tls:// and ws:// URLs.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("NATS_URL failed to parse: %w", err)
	}
	switch parsedURL.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("NATS_URL scheme must be nats, tls, ws or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("NATS_URL host is required")
	}
	return nil
}
