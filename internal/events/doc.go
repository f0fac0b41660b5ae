// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package events carries pipeline notifications over a watermill bus.

Topics:

	resonance.sync.completed      SyncCompleted, after every run
	resonance.hotspot.requested   HotspotRequested, after incremental sync
	resonance.hotspot.detected    HotspotDetected, posts well above the account mean
	resonance.anomaly.detected    AnomalyDetected, from the comparison engine

The default transport is an in-process gochannel. The nats transport uses
core NATS through watermill-nats, optionally against an embedded server.

Publishing never blocks a sync run on the bus: hooks log publish failures
and move on. A circuit breaker stops hammering a dead broker.

The Router runs handlers as a supervised service and is rebuilt on every
Serve so the supervisor can restart it.
*/
package events
