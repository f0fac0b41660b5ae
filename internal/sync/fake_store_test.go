// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

var errNotFound = errors.New("not found")

// fakeStore is an in-memory Store and CredentialSource.
type fakeStore struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	creds     map[string]*models.Credentials
	posts     map[string]*models.Post
	snapshots []*models.AnalyticsSnapshot
	logs      []*models.SyncState
	listErr   error
	// hideExisting makes SnapshotExistsForDay report false so a run races
	// into CreateAnalyticsSnapshot's duplicate check.
	hideExisting bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*models.Account),
		creds:    make(map[string]*models.Credentials),
		posts:    make(map[string]*models.Post),
	}
}

func (f *fakeStore) addAccount(a *models.Account, c *models.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.ID] = a
	if c != nil {
		f.creds[a.ID] = c
	}
}

func (f *fakeStore) GetCredentials(_ context.Context, accountID string) (*models.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[accountID]
	if !ok {
		return nil, errNotFound
	}
	return c, nil
}

func (f *fakeStore) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, errNotFound
	}
	return a, nil
}

func (f *fakeStore) ListAccounts(context.Context) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpsertPost(_ context.Context, p *models.Post) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.posts[p.ID]
	cp := *p
	f.posts[p.ID] = &cp
	return !exists, nil
}

func (f *fakeStore) CreateAnalyticsSnapshot(_ context.Context, s *models.AnalyticsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := models.StartOfDay(s.RecordedAt)
	for _, e := range f.snapshots {
		if e.SubjectID == s.SubjectID && e.Kind == s.Kind && models.StartOfDay(e.RecordedAt).Equal(day) {
			return fmt.Errorf("snapshot %s: %w", s.SubjectID, models.ErrSnapshotExists)
		}
	}
	cp := *s
	f.snapshots = append(f.snapshots, &cp)
	return nil
}

func (f *fakeStore) FindLatestSnapshot(_ context.Context, accountID string, kind models.SnapshotKind, before time.Time) (*models.AnalyticsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.AnalyticsSnapshot
	for _, s := range f.snapshots {
		if s.AccountID != accountID || s.Kind != kind || !s.RecordedAt.Before(before) {
			continue
		}
		if latest == nil || s.RecordedAt.After(latest.RecordedAt) {
			latest = s
		}
	}
	return latest, nil
}

func (f *fakeStore) SnapshotExistsForDay(_ context.Context, subjectID string, kind models.SnapshotKind, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hideExisting {
		return false, nil
	}
	day = models.StartOfDay(day)
	for _, s := range f.snapshots {
		if s.SubjectID == subjectID && s.Kind == kind && s.RecordedAt.Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListSnapshots(_ context.Context, q models.SnapshotQuery) ([]*models.AnalyticsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AnalyticsSnapshot
	for _, s := range f.snapshots {
		if q.Matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendSyncLog(_ context.Context, st *models.SyncState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *st
	f.logs = append(f.logs, &cp)
	return nil
}

func (f *fakeStore) LatestSyncState(_ context.Context, accountID string, types ...models.SyncType) (*models.SyncState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.logs) - 1; i >= 0; i-- {
		st := f.logs[i]
		if st.AccountID != accountID || st.Status != models.SyncCompleted {
			continue
		}
		if len(types) == 0 {
			return st, nil
		}
		for _, t := range types {
			if st.SyncType == t {
				return st, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeStore) snapshotsFor(subjectID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.snapshots {
		if s.SubjectID == subjectID {
			n++
		}
	}
	return n
}

func (f *fakeStore) syncLogs() []*models.SyncState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.SyncState(nil), f.logs...)
}
