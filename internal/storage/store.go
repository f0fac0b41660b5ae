// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

// Driver names.
const (
	DriverBadger = "badger"
	DriverMemory = "memory"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoCredentials   = errors.New("no credentials stored for account")
	ErrSnapshotExists  = models.ErrSnapshotExists
	ErrInvalidAccount  = errors.New("account requires an id without colons, a platform and a profile id")
)

// Store is the full persistence surface used by the server.
type Store interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	SaveCredentials(ctx context.Context, accountID string, creds *models.Credentials) error
	GetCredentials(ctx context.Context, accountID string) (*models.Credentials, error)

	UpsertPost(ctx context.Context, post *models.Post) (bool, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)

	CreateAnalyticsSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error
	FindLatestSnapshot(ctx context.Context, accountID string, kind models.SnapshotKind, before time.Time) (*models.AnalyticsSnapshot, error)
	SnapshotExistsForDay(ctx context.Context, subjectID string, kind models.SnapshotKind, day time.Time) (bool, error)
	ListSnapshots(ctx context.Context, q models.SnapshotQuery) ([]*models.AnalyticsSnapshot, error)

	AppendSyncLog(ctx context.Context, state *models.SyncState) error
	LatestSyncState(ctx context.Context, accountID string, types ...models.SyncType) (*models.SyncState, error)
	ListSyncLog(ctx context.Context, accountID string, limit int) ([]*models.SyncState, error)

	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver           string
	Path             string
	EncryptionSecret string
}

// Open creates the store named by cfg.Driver. An empty driver means memory.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverBadger:
		return OpenBadger(cfg.Path, cfg.EncryptionSecret)
	case DriverMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func validateAccount(a *models.Account) error {
	if a == nil || a.ID == "" || hasSeparator(a.ID) || !a.Platform.Valid() || a.ProfileID == "" {
		return ErrInvalidAccount
	}
	return nil
}

// dayKey formats the UTC day a snapshot belongs to.
func dayKey(t time.Time) string {
	return models.StartOfDay(t).Format("20060102")
}

// finishQuery orders snapshots oldest first and applies the limit, which
// keeps the most recent entries.
func finishQuery(out []*models.AnalyticsSnapshot, limit int) []*models.AnalyticsSnapshot {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func matchesType(st *models.SyncState, types []models.SyncType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if st.SyncType == t {
			return true
		}
	}
	return false
}
