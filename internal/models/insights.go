// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Period selects the window of an account insight request.
type Period struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// LastDays returns the period ending at now and covering the previous n days.
func LastDays(now time.Time, n int) Period {
	return Period{Since: now.AddDate(0, 0, -n), Until: now}
}

// AccountInsights is the account-level fetch result.
type AccountInsights struct {
	ProfileID     string          `json:"profile_id"`
	Username      string          `json:"username,omitempty"`
	Followers     int64           `json:"followers"`
	Follows       int64           `json:"follows"`
	MediaCount    int64           `json:"media_count"`
	ProfileVisits int64           `json:"profile_visits"`
	Reach         int64           `json:"reach"`
	Impressions   int64           `json:"impressions"`
	ReachStrategy string          `json:"reach_strategy,omitempty"` // empty when every strategy failed
	Warnings      []string        `json:"warnings,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// MediaItem is one entry of the upstream media listing.
type MediaItem struct {
	ID            string    `json:"id"`
	MediaType     string    `json:"media_type,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	Permalink     string    `json:"permalink,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	LikeCount     int64     `json:"like_count"`
	CommentsCount int64     `json:"comments_count"`
	SharesCount   int64     `json:"shares_count"`
}

// RawInsights is the per-media fetch result handed to the normalizer.
type RawInsights struct {
	Media     MediaItem        `json:"media"`
	Platform  Platform         `json:"platform"`
	Metrics   map[string]int64 `json:"metrics"`    // upstream metric name -> value
	MetricSet string           `json:"metric_set"` // name of the set that succeeded
	Attempts  int              `json:"attempts"`   // metric sets tried
	Raw       json.RawMessage  `json:"raw,omitempty"`
}
