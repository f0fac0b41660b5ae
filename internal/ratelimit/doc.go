// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package ratelimit gates every outbound Graph API call.
//
// Each platform+endpoint key owns an independent fixed window (count,
// reset time). TryAcquire is the non-blocking fast path. AcquireOrWait
// grants immediately when the window has room and otherwise parks the
// caller in a per-key priority queue (higher priority first, FIFO within a
// priority). A single drainer goroutine per busy key releases waiters as
// capacity frees, sleeping between polls for a bounded interval instead of
// spinning.
//
// ExecuteWithRetry wraps a request function with the retry policy of the
// error taxonomy: RATE_LIMIT waits for the upstream retry-after hint,
// transient NETWORK_ERROR / API_ERROR back off exponentially with jitter,
// everything else propagates immediately.
//
// Window state lives in a WindowStore. MemoryStore keeps it in-process;
// RedisStore shares it between instances so several replicas respect one
// upstream quota.
package ratelimit
