// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Command server runs the Resonance engagement analytics pipeline.

It syncs Instagram and Facebook media and account insights from the Meta
Graph API into storage, computes period comparisons and anomaly reports,
publishes sync and hotspot events, and serves a small ops API.

# Startup

 1. Configuration: koanf layers (defaults, config.yaml, .env via godotenv, environment)
 2. Logging: zerolog, optionally duplicated to a lumberjack-rotated file
 3. Storage: Badger (tokens encrypted at rest, optional scheduled backups) or in-memory
 4. Rate limiter: in-process windows, or Redis-shared windows
 5. Graph API client and the Instagram/Facebook adapter registry
 6. Events: watermill bus (gochannel or NATS, optionally embedded)
 7. Orchestrator, comparison engine, scheduler and the live event feed
 8. Supervisor tree: data, sync and api layers

# Supervisor Tree

	resonance
	├── data-layer: cache-cleanup, event-router, storage-gc, storage-backup
	├── sync-layer: sync-scheduler (when SYNC_ENABLED)
	└── api-layer:  websocket-hub, http-server

SIGINT or SIGTERM cancels the tree. The HTTP server drains for
SHUTDOWN_TIMEOUT, in-flight dispatched syncs are cancelled, then the
event bus, rate limiter and storage are closed in that order.

# Example

	export CREDENTIAL_ENCRYPTION_KEY=$(openssl rand -hex 32)
	export EVENTS_TRANSPORT=nats NATS_EMBEDDED=true
	./resonance
	curl -X POST localhost:8080/api/v1/accounts/system/sync/daily
*/
package main
