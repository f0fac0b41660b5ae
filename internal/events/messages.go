// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"time"

	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/normalize"
)

// SchemaVersion is bumped on breaking payload changes.
const SchemaVersion = 1

// Topics.
const (
	TopicSyncCompleted    = "resonance.sync.completed"
	TopicHotspotRequested = "resonance.hotspot.requested"
	TopicHotspotDetected  = "resonance.hotspot.detected"
	TopicAnomalyDetected  = "resonance.anomaly.detected"
)

// Metadata keys.
const (
	MetaAccountID     = "account_id"
	MetaSchemaVersion = "schema_version"
)

// Event is implemented by every payload.
type Event interface {
	Topic() string
	Account() string
}

// SyncCompleted reports the outcome of one sync run.
type SyncCompleted struct {
	RunID            string          `json:"run_id"`
	AccountID        string          `json:"account_id"`
	Platform         models.Platform `json:"platform,omitempty"`
	SyncType         models.SyncType `json:"sync_type"`
	Success          bool            `json:"success"`
	PostsProcessed   int             `json:"posts_processed"`
	AnalyticsUpdated int             `json:"analytics_updated"`
	ErrorCount       int             `json:"error_count"`
	Warnings         []string        `json:"warnings,omitempty"`
	ExecutionTimeMs  int64           `json:"execution_time_ms"`
	FinishedAt       time.Time       `json:"finished_at"`
}

func (SyncCompleted) Topic() string { return TopicSyncCompleted }
func (e SyncCompleted) Account() string { return e.AccountID }

// HotspotRequested asks the analyzer to rank an account's recent posts.
type HotspotRequested struct {
	AccountID   string    `json:"account_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func (HotspotRequested) Topic() string { return TopicHotspotRequested }
func (e HotspotRequested) Account() string { return e.AccountID }

// Hotspot is one post whose engagement rate is well above the mean.
type Hotspot struct {
	SubjectID      string    `json:"subject_id"`
	Kind           string    `json:"kind"`
	EngagementRate float64   `json:"engagement_rate"`
	Multiple       float64   `json:"multiple"` // rate divided by the account mean
	RecordedAt     time.Time `json:"recorded_at"`
}

// HotspotDetected lists hotspots, highest rate first.
type HotspotDetected struct {
	AccountID    string    `json:"account_id"`
	MeanRate     float64   `json:"mean_rate"`
	Threshold    float64   `json:"threshold"`
	PostsScanned int       `json:"posts_scanned"`
	Hotspots     []Hotspot `json:"hotspots"`
	DetectedAt   time.Time `json:"detected_at"`
}

func (HotspotDetected) Topic() string { return TopicHotspotDetected }
func (e HotspotDetected) Account() string { return e.AccountID }

// AnomalyDetected carries a comparison anomaly report.
type AnomalyDetected struct {
	AccountID  string              `json:"account_id"`
	SubjectID  string              `json:"subject_id,omitempty"`
	RecordedAt time.Time           `json:"recorded_at,omitempty"`
	Severity   normalize.Severity  `json:"severity"`
	Findings   []normalize.Finding `json:"findings"`
	DetectedAt time.Time           `json:"detected_at"`
}

func (AnomalyDetected) Topic() string { return TopicAnomalyDetected }
func (e AnomalyDetected) Account() string { return e.AccountID }
