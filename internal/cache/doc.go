// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package cache provides the short-lived result cache of the comparison engine.

Entries are computed results (period comparisons, anomaly reports) keyed by
account, platform and the request parameters. Each entry remembers its
account so a finished sync can invalidate exactly that account's results.

# Expiry

Expiry is lazy: an expired entry is dropped when it is read, or during the
periodic cleanup pass run by Serve. Cleanup reports how many entries were
still valid and how many expired.

# Capacity

A positive MaxEntries bounds the cache. When full, the least recently used
entry is evicted. Zero means unbounded, which is the default because the key
space is small (accounts times windows).

# Usage Example

	c := cache.New(cache.Config{TTL: 30 * time.Minute})

	key := cache.Key{AccountID: "acc-1", Name: "comparison", Params: map[string]int{"days": 7}}
	if v, ok := c.Get(key.String()); ok {
	    return v.(*comparison.Report), nil
	}
	c.Set(key, report, 0) // default TTL

	// After a successful sync
	c.Clear("acc-1")

# Thread Safety

All methods are safe for concurrent use. Serve runs the cleanup loop until
its context is cancelled and is meant to run under the supervisor.
*/
package cache
