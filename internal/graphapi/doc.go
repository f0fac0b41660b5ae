// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package graphapi is the HTTP adapter for Meta's Graph API.
//
// Client builds versioned URLs ({base}/{version}/{path}), attaches the
// access token, enforces a request timeout and decodes JSON with
// goccy/go-json. Every non-2xx reply is classified into the apierror
// taxonomy from the Graph error envelope:
//
//	codes 4, 17, 32, 613, 80001-80014, HTTP 429  RATE_LIMIT (Retry-After honored)
//	codes 102, 190, 10, 200-299, HTTP 401         AUTH_ERROR
//	code 100 naming a metric, subcode 2108006     API_ERROR, unsupported metric
//	HTTP 5xx, codes 1 and 2, is_transient         API_ERROR, transient
//	transport failures                            NETWORK_ERROR
//
// Usage headers (X-App-Usage, X-Business-Use-Case-Usage) are parsed on every
// reply, exported as metrics and logged when they approach the quota.
//
// The optional circuit breaker (sony/gobreaker) opens after sustained
// network or transient API failures; rate limits, auth failures and
// unsupported metrics do not count against it.
//
// The client performs no retries itself; callers wrap requests in
// ratelimit.ExecuteWithRetry.
package graphapi
