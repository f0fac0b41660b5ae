// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package metrics provides Prometheus instrumentation for the collection pipeline.

Collectors are registered with promauto on the default registry and exposed
by the ops API at /metrics. Components never touch collectors directly; they
call the Record* helpers so label sets stay consistent.

# Available Metrics

Graph API:
  - graph_api_requests_total{platform, endpoint, status}
  - graph_api_request_duration_seconds{platform, endpoint}
  - graph_api_app_usage_percent{platform}

Rate limiter:
  - ratelimit_acquired_total{key, path}: path is fast or queued
  - ratelimit_wait_seconds{key}
  - ratelimit_queue_depth{key}
  - ratelimit_retries_total{key, kind}

Circuit breaker:
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name, result}
  - circuit_breaker_state_transitions_total{name, from_state, to_state}

Sync:
  - sync_runs_total{sync_type, status}
  - sync_duration_seconds{sync_type}
  - sync_items_total{sync_type, outcome}
  - sync_metric_set_fallbacks_total{platform, metric_set}
  - sync_last_success_timestamp{sync_type}

Normalizer and comparison:
  - snapshots_estimated_total{platform}
  - snapshot_validation_failures_total{rule}
  - anomalies_detected_total{metric, direction}
  - cache_hits_total, cache_misses_total, cache_evictions_total, cache_entries

Events:
  - events_published_total{topic, result}
*/
package metrics
