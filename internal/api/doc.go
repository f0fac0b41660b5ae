// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package api provides the ops HTTP surface of the pipeline.

Routes:

	GET    /health                                       liveness plus named checks
	GET    /metrics                                      Prometheus exposition
	POST   /api/v1/accounts/{accountID}/sync/{syncType}  run a sync (?async=true dispatches it)
	GET    /api/v1/accounts/{accountID}/sync/history     recent sync log entries
	GET    /api/v1/accounts/{accountID}/comparison       period comparison (?days=1..90)
	GET    /api/v1/accounts/{accountID}/anomalies        anomaly report of the latest snapshot
	GET    /api/v1/cache/stats                           comparison cache statistics
	DELETE /api/v1/cache                                 clear the cache (?account_id= narrows it)
	GET    /api/v1/events/ws                             live feed of sync, hotspot and anomaly events
	GET    /api/v1/backups                               storage backups, newest first, with totals
	POST   /api/v1/backups                               create a backup now
	GET    /api/v1/backups/{backupID}/verify             recompute a backup's checksum

Every JSON body uses the same envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
	{"status": "error", "error": {"code": "VALIDATION_ERROR", "message": "..."}, "metadata": {...}}

Sync triggers are rate limited per client with go-chi/httprate. Only one
sync runs at a time; a trigger while another run executes gets 409.

The event feed upgrades to a WebSocket only for requests whose Origin is
among the configured CORS origins.
*/
package api
