// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package middleware provides chi-compatible HTTP middleware for the ops API.

RequestID assigns each request an ID (honouring an upstream X-Request-ID),
echoes it in the response and seeds the logging context with request and
correlation IDs.

Metrics records request counts and latencies in Prometheus. Requests are
labelled by chi route pattern rather than raw path so account IDs do not
create unbounded label cardinality:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
*/
package middleware
