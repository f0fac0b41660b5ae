// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package models

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// ErrSnapshotExists is returned when a subject already has a snapshot of
// the same kind for the UTC day.
var ErrSnapshotExists = errors.New("snapshot already recorded for this subject and day")

// SnapshotKind is the subject type a snapshot measures.
type SnapshotKind string

const (
	KindAccount SnapshotKind = "ACCOUNT"
	KindPost    SnapshotKind = "POST"
	KindStory   SnapshotKind = "STORY"
)

// DataQuality grades a snapshot by the share of upstream fetches that succeeded.
type DataQuality string

const (
	QualityExcellent DataQuality = "EXCELLENT"
	QualityGood      DataQuality = "GOOD"
	QualityLimited   DataQuality = "LIMITED"
	QualityBasic     DataQuality = "BASIC"
)

// DataSource records whether reach and impressions came from the API or were estimated.
type DataSource string

const (
	SourceAPI      DataSource = "api"
	SourceFallback DataSource = "fallback"
)

// AnalyticsSnapshot is one normalized measurement of an account or post.
type AnalyticsSnapshot struct {
	SubjectID string       `json:"subject_id" validate:"required"`
	AccountID string       `json:"account_id" validate:"required"`
	Platform  Platform     `json:"platform" validate:"required,platform"`
	Kind      SnapshotKind `json:"kind" validate:"required,oneof=ACCOUNT POST STORY"`

	Views       int64 `json:"views" validate:"gte=0"`
	Likes       int64 `json:"likes" validate:"gte=0"`
	Comments    int64 `json:"comments" validate:"gte=0"`
	Shares      int64 `json:"shares" validate:"gte=0"`
	Saves       int64 `json:"saves" validate:"gte=0"`
	Clicks      int64 `json:"clicks" validate:"gte=0"`
	Reach       int64 `json:"reach" validate:"gte=0"`
	Impressions int64 `json:"impressions" validate:"gte=0"`

	// Account-level counters, populated by daily sync only.
	Followers     int64 `json:"followers,omitempty" validate:"gte=0"`
	ProfileVisits int64 `json:"profile_visits,omitempty" validate:"gte=0"`

	EngagementRate float64 `json:"engagement_rate" validate:"gte=0,lte=100"` // percent of reach

	RecordedAt  time.Time       `json:"recorded_at" validate:"required"` // start of day, UTC
	DataQuality DataQuality     `json:"data_quality" validate:"required,oneof=EXCELLENT GOOD LIMITED BASIC"`
	DataSource  DataSource      `json:"data_source" validate:"required,oneof=api fallback"`
	MetricSet   string          `json:"metric_set,omitempty"` // name of the metric set that succeeded
	RawPayload  json.RawMessage `json:"raw_payload,omitempty" validate:"-"`
}

// TotalEngagement is likes + comments + shares + saves.
func (s *AnalyticsSnapshot) TotalEngagement() int64 {
	return s.Likes + s.Comments + s.Shares + s.Saves
}

// IsFallback reports whether reach or impressions were estimated.
func (s *AnalyticsSnapshot) IsFallback() bool {
	return s.DataSource == SourceFallback
}

// EngagementRate computes total engagement as a percentage of reach.
// Zero reach yields zero. Engagement above reach yields more than 100,
// which snapshot validation rejects.
func EngagementRate(engagement, reach int64) float64 {
	if reach <= 0 || engagement <= 0 {
		return 0
	}
	return float64(engagement) / float64(reach) * 100
}

// StartOfDay truncates t to midnight UTC so same-day snapshots share a timestamp.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// QualityFromRatio grades a fetch-success ratio in [0, 1].
func QualityFromRatio(ratio float64) DataQuality {
	switch {
	case ratio >= 0.9:
		return QualityExcellent
	case ratio >= 0.7:
		return QualityGood
	case ratio >= 0.4:
		return QualityLimited
	default:
		return QualityBasic
	}
}

// SnapshotQuery selects stored snapshots. Zero fields do not filter.
type SnapshotQuery struct {
	AccountID string
	SubjectID string
	Kinds     []SnapshotKind
	Since     time.Time // inclusive
	Until     time.Time // exclusive
	Limit     int       // most recent N when > 0
}

// Matches reports whether s satisfies every filter except Limit.
func (q SnapshotQuery) Matches(s *AnalyticsSnapshot) bool {
	if q.AccountID != "" && s.AccountID != q.AccountID {
		return false
	}
	if q.SubjectID != "" && s.SubjectID != q.SubjectID {
		return false
	}
	if len(q.Kinds) > 0 {
		found := false
		for _, k := range q.Kinds {
			if s.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.Since.IsZero() && s.RecordedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !s.RecordedAt.Before(q.Until) {
		return false
	}
	return true
}

// PostKinds are the snapshot kinds produced from media.
var PostKinds = []SnapshotKind{KindPost, KindStory}

// Rollup is an account-level summary of post snapshots.
type Rollup struct {
	Totals *AnalyticsSnapshot `json:"totals,omitempty"`
	Posts  int                `json:"posts"`

	AvgLikes          float64 `json:"avg_likes"`
	AvgComments       float64 `json:"avg_comments"`
	AvgShares         float64 `json:"avg_shares"`
	AvgSaves          float64 `json:"avg_saves"`
	AvgReach          float64 `json:"avg_reach"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
}
