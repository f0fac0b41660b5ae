// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Live feed message types.
const (
	FeedSyncCompleted   = "sync_completed"
	FeedHotspotDetected = "hotspot_detected"
	FeedAnomalyDetected = "anomaly_detected"
)

// Broadcaster pushes a message to live feed subscribers without blocking.
type Broadcaster interface {
	Broadcast(msgType string, data interface{})
}

// RegisterFeed forwards completed syncs, hotspots and anomalies to b.
func RegisterFeed(r *Router, b Broadcaster) {
	r.Handle("feed-sync", TopicSyncCompleted, forward[SyncCompleted](b, FeedSyncCompleted))
	r.Handle("feed-hotspot", TopicHotspotDetected, forward[HotspotDetected](b, FeedHotspotDetected))
	r.Handle("feed-anomaly", TopicAnomalyDetected, forward[AnomalyDetected](b, FeedAnomalyDetected))
}

func forward[T any](b Broadcaster, msgType string) HandlerFunc {
	return func(_ context.Context, msg *message.Message) error {
		var ev T
		if err := decode(msg, &ev); err != nil {
			return err
		}
		b.Broadcast(msgType, ev)
		return nil
	}
}
