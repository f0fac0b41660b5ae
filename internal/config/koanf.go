// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/resonance/config.yaml",
	"/etc/resonance/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPath is the optional dotenv file read before environment variables.
var DotEnvPath = ".env"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			BaseURL:          "https://graph.facebook.com",
			Version:          "v21.0",
			Timeout:          30 * time.Second,
			CircuitBreaker:   true,
			UsageWarnPercent: 95,
		},
		RateLimit: RateLimitConfig{
			Store:          "memory",
			DefaultLimit:   200,
			DefaultWindow:  time.Hour,
			InstagramLimit: 200,
			FacebookLimit:  200,
			InsightsLimit:  0, // share the platform window
			PollMin:        50 * time.Millisecond,
			PollMax:        time.Second,
			KeyPrefix:      "resonance:ratelimit:",
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   60 * time.Second,
			Multiplier: 2.0,
			Jitter:     0.25,
		},
		Sync: SyncConfig{
			Enabled:             true,
			IncrementalInterval: time.Hour,
			DailyAt:             "03:00",
			InitialLookbackDays: 30,
			InitialPageSize:     50,
			IncrementalPageSize: 25,
			MaxMediaPerRun:      1000,
			RollupDays:          30,
			ItemDelay:           200 * time.Millisecond,
			HotspotsEnabled:     true,
		},
		Cache: CacheConfig{
			TTL:             30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Driver: "badger",
			Path:   "/data/resonance",
		},
		Backup: BackupConfig{
			Dir:           "/data/backups",
			Interval:      24 * time.Hour,
			MinCount:      3,
			MaxCount:      30,
			MaxAgeDays:    90,
			KeepDailyDays: 7,
		},
		Events: EventsConfig{
			Transport:         "gochannel",
			NATSURL:           "nats://127.0.0.1:4222",
			EmbeddedHost:      "127.0.0.1",
			EmbeddedPort:      4222,
			HotspotMultiplier: 2.0,
			HotspotLookback:   7,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:      []string{},
			TriggerRateLimit: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads configuration from defaults, the config file, .env and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: .env populates the process environment without overriding it
	if err := loadDotEnv(DotEnvPath); err != nil {
		return nil, err
	}

	// Layer 4: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads path into the environment if it exists.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"graph_base_url":           "graph.base_url",
	"graph_api_version":        "graph.version",
	"graph_timeout":            "graph.timeout",
	"graph_circuit_breaker":    "graph.circuit_breaker",
	"graph_usage_warn_percent": "graph.usage_warn_percent",

	"rate_limit_store":           "rate_limit.store",
	"rate_limit_default":         "rate_limit.default_limit",
	"rate_limit_window":          "rate_limit.default_window",
	"rate_limit_instagram":       "rate_limit.instagram_limit",
	"rate_limit_facebook":        "rate_limit.facebook_limit",
	"rate_limit_insights":        "rate_limit.insights_limit",
	"rate_limit_poll_min":        "rate_limit.poll_min",
	"rate_limit_poll_max":        "rate_limit.poll_max",
	"rate_limit_redis_namespace": "rate_limit.key_prefix",

	"retry_max_retries": "retry.max_retries",
	"retry_base_delay":  "retry.base_delay",
	"retry_max_delay":   "retry.max_delay",
	"retry_multiplier":  "retry.multiplier",
	"retry_jitter":      "retry.jitter",

	"sync_enabled":               "sync.enabled",
	"sync_incremental_interval":  "sync.incremental_interval",
	"sync_daily_at":              "sync.daily_at",
	"sync_initial_lookback_days": "sync.initial_lookback_days",
	"sync_initial_page_size":     "sync.initial_page_size",
	"sync_page_size":             "sync.incremental_page_size",
	"sync_max_media_per_run":     "sync.max_media_per_run",
	"sync_rollup_days":           "sync.rollup_days",
	"sync_item_delay":            "sync.item_delay",
	"sync_hotspots_enabled":      "sync.hotspots_enabled",

	"cache_ttl":              "cache.ttl",
	"cache_cleanup_interval": "cache.cleanup_interval",

	"storage_driver":            "storage.driver",
	"storage_path":              "storage.path",
	"credential_encryption_key": "storage.encryption_secret",

	"backup_enabled":         "backup.enabled",
	"backup_dir":             "backup.dir",
	"backup_interval":        "backup.interval",
	"backup_min_count":       "backup.min_count",
	"backup_max_count":       "backup.max_count",
	"backup_max_age_days":    "backup.max_age_days",
	"backup_keep_daily_days": "backup.keep_daily_days",

	"redis_url": "redis.url",

	"events_transport":      "events.transport",
	"nats_url":              "events.nats_url",
	"nats_embedded":         "events.embedded_server",
	"nats_embedded_host":    "events.embedded_host",
	"nats_embedded_port":    "events.embedded_port",
	"hotspot_multiplier":    "events.hotspot_multiplier",
	"hotspot_lookback_days": "events.hotspot_lookback_days",

	"http_host":          "server.host",
	"http_port":          "server.port",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",

	"cors_origins":         "security.cors_origins",
	"trigger_rate_limit":   "security.trigger_rate_limit",
	"trusted_proxy_header": "security.trusted_proxy_header",

	"log_level":       "logging.level",
	"log_format":      "logging.format",
	"log_caller":      "logging.caller",
	"log_file":        "logging.file",
	"log_max_size_mb": "logging.max_size_mb",
	"log_max_backups": "logging.max_backups",
	"log_max_age":     "logging.max_age_days",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped keys return "" and are skipped.
//
// Examples:
//   - GRAPH_API_VERSION -> graph.version
//   - RATE_LIMIT_STORE -> rate_limit.store
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
