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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/resonance/internal/models"
)

// MemoryStore keeps everything in process memory. Credentials are held
// in plaintext and lost on exit.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]models.Account
	creds     map[string]models.Credentials
	posts     map[string]models.Post
	snapshots []models.AnalyticsSnapshot
	snapIndex map[string]struct{}
	logs      []models.SyncState
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]models.Account),
		creds:     make(map[string]models.Credentials),
		posts:     make(map[string]models.Post),
		snapIndex: make(map[string]struct{}),
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) SaveAccount(_ context.Context, account *models.Account) error {
	if err := validateAccount(account); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = *account
	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return &a, nil
}

func (m *MemoryStore) ListAccounts(context.Context) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveCredentials(_ context.Context, accountID string, creds *models.Credentials) error {
	if creds == nil || creds.AccessToken == "" {
		return errors.New("access token is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	m.creds[accountID] = *creds
	return nil
}

func (m *MemoryStore) GetCredentials(_ context.Context, accountID string) (*models.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, accountID)
	}
	return &c, nil
}

func (m *MemoryStore) UpsertPost(_ context.Context, post *models.Post) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *post
	existing, ok := m.posts[post.ID]
	if ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.posts[post.ID] = cp
	return !ok, nil
}

func (m *MemoryStore) GetPost(_ context.Context, postID string) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) CreateAnalyticsSnapshot(_ context.Context, snap *models.AnalyticsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := snapDayKey(snap.SubjectID, snap.Kind, snap.RecordedAt)
	if _, ok := m.snapIndex[idx]; ok {
		return ErrSnapshotExists
	}
	m.snapIndex[idx] = struct{}{}
	m.snapshots = append(m.snapshots, *snap)
	return nil
}

func (m *MemoryStore) SnapshotExistsForDay(_ context.Context, subjectID string, kind models.SnapshotKind, day time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.snapIndex[snapDayKey(subjectID, kind, day)]
	return ok, nil
}

func (m *MemoryStore) FindLatestSnapshot(_ context.Context, accountID string, kind models.SnapshotKind, before time.Time) (*models.AnalyticsSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.AnalyticsSnapshot
	for i := range m.snapshots {
		s := &m.snapshots[i]
		if s.AccountID != accountID || s.Kind != kind || !s.RecordedAt.Before(before) {
			continue
		}
		if latest == nil || s.RecordedAt.After(latest.RecordedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *MemoryStore) ListSnapshots(_ context.Context, q models.SnapshotQuery) ([]*models.AnalyticsSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AnalyticsSnapshot
	for i := range m.snapshots {
		if q.Matches(&m.snapshots[i]) {
			cp := m.snapshots[i]
			out = append(out, &cp)
		}
	}
	return finishQuery(out, q.Limit), nil
}

func (m *MemoryStore) AppendSyncLog(_ context.Context, state *models.SyncState) error {
	cp := *state
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.LastSyncAt.IsZero() {
		cp.LastSyncAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, cp)
	sort.SliceStable(m.logs, func(i, j int) bool { return m.logs[i].LastSyncAt.Before(m.logs[j].LastSyncAt) })
	return nil
}

func (m *MemoryStore) LatestSyncState(_ context.Context, accountID string, types ...models.SyncType) (*models.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.logs) - 1; i >= 0; i-- {
		st := m.logs[i]
		if st.AccountID == accountID && st.Status == models.SyncCompleted && matchesType(&st, types) {
			return &st, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListSyncLog(_ context.Context, accountID string, limit int) ([]*models.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.SyncState
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].AccountID != accountID {
			continue
		}
		st := m.logs[i]
		out = append(out, &st)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
