// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

// CredentialSource supplies access tokens. Nil credentials are treated as
// an AUTH_ERROR for the account.
type CredentialSource interface {
	GetCredentials(ctx context.Context, accountID string) (*models.Credentials, error)
}

// Store persists accounts, posts, snapshots and the sync log.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	// UpsertPost creates or updates a post and reports whether it was new.
	UpsertPost(ctx context.Context, post *models.Post) (bool, error)

	// CreateAnalyticsSnapshot returns an error wrapping
	// models.ErrSnapshotExists when the subject already has one for the day.
	CreateAnalyticsSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error

	// FindLatestSnapshot returns the newest snapshot of kind for the account
	// recorded strictly before before, or nil.
	FindLatestSnapshot(ctx context.Context, accountID string, kind models.SnapshotKind, before time.Time) (*models.AnalyticsSnapshot, error)

	SnapshotExistsForDay(ctx context.Context, subjectID string, kind models.SnapshotKind, day time.Time) (bool, error)
	ListSnapshots(ctx context.Context, q models.SnapshotQuery) ([]*models.AnalyticsSnapshot, error)

	AppendSyncLog(ctx context.Context, state *models.SyncState) error

	// LatestSyncState returns the newest COMPLETED entry for the account
	// whose type is one of types (any type when empty), or nil.
	LatestSyncState(ctx context.Context, accountID string, types ...models.SyncType) (*models.SyncState, error)
}

// HotspotDetector is the downstream analysis run after incremental sync.
type HotspotDetector interface {
	DetectHotspots(ctx context.Context, accountID string) error
}

// CacheInvalidator drops cached derived data for an account.
type CacheInvalidator interface {
	Invalidate(accountID string) int
}

// CompletionHook observes every finished per-account run.
type CompletionHook func(ctx context.Context, state *models.SyncState, result *models.SyncResult)
