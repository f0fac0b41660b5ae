// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph API Metrics
	GraphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_api_requests_total",
			Help: "Total number of Graph API requests",
		},
		[]string{"platform", "endpoint", "status"}, // status: HTTP code or "transport_error"
	)

	GraphRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_api_request_duration_seconds",
			Help:    "Duration of Graph API requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"platform", "endpoint"},
	)

	GraphAppUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_api_app_usage_percent",
			Help: "Latest X-App-Usage call_count percentage reported by the Graph API",
		},
		[]string{"platform"},
	)

	// Rate Limiter Metrics
	RateLimitAcquired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_acquired_total",
			Help: "Total number of rate limiter grants",
		},
		[]string{"key", "path"}, // path: "fast", "queued"
	)

	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratelimit_wait_seconds",
			Help:    "Time queued requests waited for window capacity",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"key"},
	)

	RateLimitQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ratelimit_queue_depth",
			Help: "Number of requests queued per rate limit key",
		},
		[]string{"key"},
	)

	RateLimitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_retries_total",
			Help: "Total number of retries scheduled by executeWithRetry",
		},
		[]string{"key", "kind"}, // kind: RATE_LIMIT, NETWORK_ERROR, API_ERROR
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sync Metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by type and terminal status",
		},
		[]string{"sync_type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"sync_type"},
	)

	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_items_total",
			Help: "Media items processed by sync runs",
		},
		[]string{"sync_type", "outcome"}, // outcome: "updated", "skipped", "failed"
	)

	SyncMetricSetFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_metric_set_fallbacks_total",
			Help: "Media insight fetches served by a metric set other than the richest",
		},
		[]string{"platform", "metric_set"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync run",
		},
		[]string{"sync_type"},
	)

	// Normalizer Metrics
	SnapshotsEstimated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_estimated_total",
			Help: "Snapshots whose reach or impressions were estimated",
		},
		[]string{"platform"},
	)

	SnapshotValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_validation_failures_total",
			Help: "Snapshot invariant violations by rule",
		},
		[]string{"rule"},
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Metric anomalies flagged by the comparison engine",
		},
		[]string{"metric", "direction"}, // direction: "spike", "drop"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of comparison cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of comparison cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of expired or cleared cache entries",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cache entries, including expired ones not yet cleaned",
		},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events published to the event bus",
		},
		[]string{"topic", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Events handled by event bus consumers",
		},
		[]string{"topic", "result"},
	)

	HotspotsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotspot_posts_detected_total",
			Help: "Posts ranked as engagement hotspots",
		},
	)

	// Storage Metrics
	StorageGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_gc_runs_total",
			Help: "BadgerDB value log GC passes",
		},
		[]string{"result"}, // rewritten, noop, error
	)

	StorageGCDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storage_gc_duration_seconds",
			Help:    "Duration of BadgerDB value log GC passes",
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 30, 120},
		},
	)

	StorageBackups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_backups_total",
			Help: "Badger backups by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	StorageBackupBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_backup_last_size_bytes",
			Help: "Size of the newest completed backup",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of ops API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of ops API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordGraphRequest records one Graph API round trip.
// A zero statusCode denotes a transport failure.
func RecordGraphRequest(platform, endpoint string, statusCode int, duration time.Duration) {
	status := "transport_error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	GraphRequestsTotal.WithLabelValues(platform, endpoint, status).Inc()
	GraphRequestDuration.WithLabelValues(platform, endpoint).Observe(duration.Seconds())
}

// RecordAppUsage records the X-App-Usage call_count percentage.
func RecordAppUsage(platform string, percent float64) {
	GraphAppUsage.WithLabelValues(platform).Set(percent)
}

// RecordRateLimitAcquire records a grant; queued grants also record the wait.
func RecordRateLimitAcquire(key string, queued bool, wait time.Duration) {
	if !queued {
		RateLimitAcquired.WithLabelValues(key, "fast").Inc()
		return
	}
	RateLimitAcquired.WithLabelValues(key, "queued").Inc()
	RateLimitWait.WithLabelValues(key).Observe(wait.Seconds())
}

// SetRateLimitQueueDepth publishes the current queue length for key.
func SetRateLimitQueueDepth(key string, depth int) {
	RateLimitQueueDepth.WithLabelValues(key).Set(float64(depth))
}

// RecordRetry records a scheduled retry.
func RecordRetry(key, kind string) {
	RateLimitRetries.WithLabelValues(key, kind).Inc()
}

// RecordSyncRun records a finished sync run.
func RecordSyncRun(syncType string, success bool, duration time.Duration) {
	status := "failed"
	if success {
		status = "completed"
		SyncLastSuccess.WithLabelValues(syncType).Set(float64(time.Now().Unix()))
	}
	SyncRuns.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration.Seconds())
}

// RecordSyncItems records per-item outcomes of one run.
func RecordSyncItems(syncType string, updated, skipped, failed int) {
	SyncItems.WithLabelValues(syncType, "updated").Add(float64(updated))
	SyncItems.WithLabelValues(syncType, "skipped").Add(float64(skipped))
	SyncItems.WithLabelValues(syncType, "failed").Add(float64(failed))
}

// RecordMetricSetFallback records a media insight fetch served by a reduced metric set.
func RecordMetricSetFallback(platform, metricSet string) {
	SyncMetricSetFallbacks.WithLabelValues(platform, metricSet).Inc()
}

// RecordSnapshotEstimated records a snapshot built with estimated reach or impressions.
func RecordSnapshotEstimated(platform string) {
	SnapshotsEstimated.WithLabelValues(platform).Inc()
}

// RecordValidationFailure records one violated snapshot rule.
func RecordValidationFailure(rule string) {
	SnapshotValidationFailures.WithLabelValues(rule).Inc()
}

// RecordAnomaly records one flagged metric.
func RecordAnomaly(metric, direction string) {
	AnomaliesDetected.WithLabelValues(metric, direction).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// RecordCacheEvictions records removed entries and the resulting size.
func RecordCacheEvictions(evicted, remaining int) {
	CacheEvictions.Add(float64(evicted))
	CacheEntries.Set(float64(remaining))
}

// RecordEventPublished records one publish attempt.
func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}

// RecordEventConsumed records one handled message.
func RecordEventConsumed(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsConsumed.WithLabelValues(topic, result).Inc()
}

// RecordHotspots records ranked hotspot posts.
func RecordHotspots(n int) {
	HotspotsDetected.Add(float64(n))
}

// RecordStorageGC records one GC pass.
func RecordStorageGC(result string, duration time.Duration) {
	StorageGCRuns.WithLabelValues(result).Inc()
	StorageGCDuration.Observe(duration.Seconds())
}

// RecordBackup records one backup attempt.
func RecordBackup(trigger, status string, size int64) {
	StorageBackups.WithLabelValues(trigger, status).Inc()
	if status == "completed" {
		StorageBackupBytes.Set(float64(size))
	}
}

// RecordAPIRequest records one ops API request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
