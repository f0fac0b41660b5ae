// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package models

import "time"

// SyncType is one of the three orchestrator entry points.
type SyncType string

const (
	SyncInitial     SyncType = "INITIAL"
	SyncIncremental SyncType = "INCREMENTAL"
	SyncDaily       SyncType = "DAILY"
)

// Valid reports whether t is a known sync type.
func (t SyncType) Valid() bool {
	return t == SyncInitial || t == SyncIncremental || t == SyncDaily
}

// SyncStatus is the terminal status of a sync run.
type SyncStatus string

const (
	SyncCompleted SyncStatus = "COMPLETED"
	SyncFailed    SyncStatus = "FAILED"
)

// SystemAccountID selects the fan-out over every eligible account.
const SystemAccountID = "system"

// SyncState is the append-only log entry written when a sync run ends.
type SyncState struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	Platform         Platform   `json:"platform,omitempty"`
	SyncType         SyncType   `json:"sync_type"`
	Status           SyncStatus `json:"status"`
	LastSyncAt       time.Time  `json:"last_sync_at"`
	ResumeFrom       *time.Time `json:"resume_from,omitempty"` // set when media remained unprocessed
	PostsProcessed   int        `json:"posts_processed"`
	AnalyticsUpdated int        `json:"analytics_updated"`
	Errors           []string   `json:"errors,omitempty"`
}

// SyncError attributes one failure inside a run to an account and item.
type SyncError struct {
	AccountID string `json:"account_id,omitempty"`
	ItemID    string `json:"item_id,omitempty"` // media id, empty for account-level failures
	Kind      string `json:"kind,omitempty"`    // taxonomy kind when classified
	Message   string `json:"message"`
}

func (e SyncError) String() string {
	prefix := e.AccountID
	if e.ItemID != "" {
		prefix += "/" + e.ItemID
	}
	if e.Kind != "" {
		prefix += " " + e.Kind
	}
	if prefix == "" {
		return e.Message
	}
	return prefix + ": " + e.Message
}

// GrowthDelta is a day-over-day change computed by daily sync.
type GrowthDelta struct {
	Metric   string  `json:"metric"`
	Previous int64   `json:"previous"`
	Current  int64   `json:"current"`
	Change   int64   `json:"change"`
	Percent  float64 `json:"percent"`
	HasPrior bool    `json:"has_prior"` // false when no previous snapshot existed
}

// SyncResult is returned by every sync entry point, including partial failures.
type SyncResult struct {
	Success          bool          `json:"success"`
	AccountID        string        `json:"account_id"`
	SyncType         SyncType      `json:"sync_type"`
	PostsProcessed   int           `json:"posts_processed"`
	AnalyticsUpdated int           `json:"analytics_updated"`
	Errors           []SyncError   `json:"errors"`
	Warnings         []string      `json:"warnings,omitempty"`
	Deltas           []GrowthDelta `json:"deltas,omitempty"` // daily sync only
	Rollup           *Rollup       `json:"rollup,omitempty"` // daily sync only
	AccountsSynced   int           `json:"accounts_synced,omitempty"`
	ExecutionTimeMs  int64         `json:"execution_time_ms"`
}

// ErrorStrings flattens Errors for the sync log.
func (r *SyncResult) ErrorStrings() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.String()
	}
	return out
}
