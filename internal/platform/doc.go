// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package platform holds the per-platform metric fetchers.
//
// Each Adapter knows one platform's Graph API surface: which profile fields
// to request, which insight metrics exist, and how to page through media.
// Adapters are looked up through a Registry keyed by platform, so adding a
// platform means registering one more Adapter.
//
// Metric availability drifts between API versions and media types, so the
// metric combinations are data rather than code paths. FetchMediaInsights
// walks an ordered []MetricSet (full, reduced, likes-only) and stops at the
// first set the API accepts; FetchAccountInsights walks an ordered
// []ReachStrategy (daily buckets, then the rolling 28-day window) and
// degrades to zero reach with a warning when every strategy fails.
//
// Every request goes through the shared rate limiter with retries.
package platform
