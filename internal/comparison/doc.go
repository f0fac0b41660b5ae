// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package comparison derives trends and anomaly reports from stored snapshots.
//
// Compare is a pure function over two snapshots. Engine wraps it with
// storage access and the result cache:
//
//	Engine.ComparePeriods(account, days)
//	    -> post snapshots [today-days, today) and [today-2*days, today-days)
//	    -> latest snapshot per post, Aggregate
//	    -> Compare
//	    -> cached for the cache TTL
//
// The overall trend is a majority vote over engagement rate, reach and
// impressions. A metric counts as changed only when its percent change is at
// least ChangeThresholdPercent in either direction.
package comparison
