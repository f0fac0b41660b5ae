// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/resonance/internal/models"
)

// Key prefixes.
const (
	prefixAccount  = "account:"
	prefixCred     = "cred:"
	prefixPost     = "post:"
	prefixSnapshot = "snap:"    // snap:{account}:{kind}:{day}:{subject}
	prefixSnapDay  = "snapday:" // snapday:{subject}:{kind}:{day} -> snapshot key
	prefixSyncLog  = "synclog:" // synclog:{account}:{started unix nanos}:{id}
)

// BadgerStore is the BadgerDB driver.
type BadgerStore struct {
	db  *badger.DB
	enc *TokenEncryptor
}

// credentialRecord is the stored form of Credentials with sealed tokens.
type credentialRecord struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Platform     models.Platform `json:"platform"`
	ProfileID    string          `json:"profile_id,omitempty"`
}

// OpenBadger opens or creates a database at path.
func OpenBadger(path, secret string) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("badger path is required")
	}
	enc, err := NewTokenEncryptor(secret)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return &BadgerStore{db: db, enc: enc}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Backup streams every key version newer than since to w and returns the
// version to pass as since for an incremental follow-up.
func (s *BadgerStore) Backup(w io.Writer, since uint64) (uint64, error) {
	return s.db.Backup(w, since)
}

// DB exposes the handle for maintenance jobs.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// SaveAccount creates or replaces an account.
func (s *BadgerStore) SaveAccount(_ context.Context, account *models.Account) error {
	if err := validateAccount(account); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, prefixAccount+account.ID, account)
	})
}

// GetAccount returns ErrAccountNotFound for unknown ids.
func (s *BadgerStore) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	var a models.Account
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixAccount+accountID, &a)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// ListAccounts returns every account ordered by id.
func (s *BadgerStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	err := s.scan(ctx, prefixAccount, func(val []byte) error {
		var a models.Account
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		out = append(out, &a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// SaveCredentials seals and stores the tokens for an existing account.
func (s *BadgerStore) SaveCredentials(ctx context.Context, accountID string, creds *models.Credentials) error {
	if creds == nil || creds.AccessToken == "" {
		return errors.New("access token is required")
	}
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return err
	}
	access, err := s.enc.Encrypt(creds.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := s.enc.Encrypt(creds.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	rec := credentialRecord{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    creds.ExpiresAt,
		Platform:     creds.Platform,
		ProfileID:    creds.ProfileID,
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, prefixCred+accountID, rec)
	})
}

// GetCredentials returns ErrNoCredentials when none are stored.
func (s *BadgerStore) GetCredentials(_ context.Context, accountID string) (*models.Credentials, error) {
	var rec credentialRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixCred+accountID, &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	access, err := s.enc.Decrypt(rec.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refresh, err := s.enc.Decrypt(rec.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return &models.Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    rec.ExpiresAt,
		Platform:     rec.Platform,
		ProfileID:    rec.ProfileID,
	}, nil
}

// UpsertPost stores a post, keeping the original CreatedAt, and reports
// whether it was new.
func (s *BadgerStore) UpsertPost(_ context.Context, post *models.Post) (bool, error) {
	created := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := prefixPost + post.ID
		cp := *post
		var existing models.Post
		switch err := getJSON(txn, key, &existing); {
		case errors.Is(err, badger.ErrKeyNotFound):
			created = true
		case err != nil:
			return err
		default:
			cp.CreatedAt = existing.CreatedAt
		}
		return setJSON(txn, key, &cp)
	})
	if err != nil {
		return false, fmt.Errorf("upsert post: %w", err)
	}
	return created, nil
}

// GetPost returns nil when the post is unknown.
func (s *BadgerStore) GetPost(_ context.Context, postID string) (*models.Post, error) {
	var p models.Post
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixPost+postID, &p)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

func snapshotKey(s *models.AnalyticsSnapshot) string {
	return prefixSnapshot + s.AccountID + ":" + string(s.Kind) + ":" + dayKey(s.RecordedAt) + ":" + s.SubjectID
}

func snapDayKey(subjectID string, kind models.SnapshotKind, day time.Time) string {
	return prefixSnapDay + subjectID + ":" + string(kind) + ":" + dayKey(day)
}

// CreateAnalyticsSnapshot stores a snapshot, rejecting a second one for
// the same subject, kind and day.
func (s *BadgerStore) CreateAnalyticsSnapshot(_ context.Context, snap *models.AnalyticsSnapshot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		idx := snapDayKey(snap.SubjectID, snap.Kind, snap.RecordedAt)
		if _, err := txn.Get([]byte(idx)); err == nil {
			return ErrSnapshotExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		key := snapshotKey(snap)
		if err := setJSON(txn, key, snap); err != nil {
			return err
		}
		return txn.Set([]byte(idx), []byte(key))
	})
}

// SnapshotExistsForDay is a single index lookup.
func (s *BadgerStore) SnapshotExistsForDay(_ context.Context, subjectID string, kind models.SnapshotKind, day time.Time) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(snapDayKey(subjectID, kind, day)))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return true, nil
}

// FindLatestSnapshot walks the account's snapshots of kind backwards from
// the day of before and returns the first recorded strictly before it.
func (s *BadgerStore) FindLatestSnapshot(_ context.Context, accountID string, kind models.SnapshotKind, before time.Time) (*models.AnalyticsSnapshot, error) {
	prefix := []byte(prefixSnapshot + accountID + ":" + string(kind) + ":")
	seek := append(append([]byte{}, prefix...), []byte(dayKey(before)+"\xff")...)

	var found *models.AnalyticsSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var snap models.AnalyticsSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			if snap.RecordedAt.Before(before) {
				found = &snap
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find latest snapshot: %w", err)
	}
	return found, nil
}

// ListSnapshots returns matching snapshots oldest first.
func (s *BadgerStore) ListSnapshots(ctx context.Context, q models.SnapshotQuery) ([]*models.AnalyticsSnapshot, error) {
	prefix := prefixSnapshot
	if q.AccountID != "" {
		prefix += q.AccountID + ":"
		if len(q.Kinds) == 1 {
			prefix += string(q.Kinds[0]) + ":"
		}
	}

	var out []*models.AnalyticsSnapshot
	err := s.scan(ctx, prefix, func(val []byte) error {
		var snap models.AnalyticsSnapshot
		if err := json.Unmarshal(val, &snap); err != nil {
			return err
		}
		if q.Matches(&snap) {
			out = append(out, &snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return finishQuery(out, q.Limit), nil
}

func syncLogKey(st *models.SyncState) string {
	return fmt.Sprintf("%s%s:%020d:%s", prefixSyncLog, st.AccountID, st.LastSyncAt.UnixNano(), st.ID)
}

// AppendSyncLog adds an entry. Missing ids and times are filled in.
func (s *BadgerStore) AppendSyncLog(_ context.Context, state *models.SyncState) error {
	cp := *state
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.LastSyncAt.IsZero() {
		cp.LastSyncAt = time.Now().UTC()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, syncLogKey(&cp), &cp)
	})
}

// LatestSyncState returns the newest COMPLETED entry of any of types, or
// nil when there is none.
func (s *BadgerStore) LatestSyncState(_ context.Context, accountID string, types ...models.SyncType) (*models.SyncState, error) {
	var found *models.SyncState
	err := s.reverseSyncLog(accountID, func(st *models.SyncState) bool {
		if st.Status == models.SyncCompleted && matchesType(st, types) {
			found = st
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("latest sync state: %w", err)
	}
	return found, nil
}

// ListSyncLog returns up to limit entries, newest first. Zero means all.
func (s *BadgerStore) ListSyncLog(_ context.Context, accountID string, limit int) ([]*models.SyncState, error) {
	var out []*models.SyncState
	err := s.reverseSyncLog(accountID, func(st *models.SyncState) bool {
		out = append(out, st)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("list sync log: %w", err)
	}
	return out, nil
}

// reverseSyncLog visits an account's entries newest first until fn
// returns false.
func (s *BadgerStore) reverseSyncLog(accountID string, fn func(*models.SyncState) bool) error {
	prefix := []byte(prefixSyncLog + accountID + ":")
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			var st models.SyncState
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &st)
			}); err != nil {
				return err
			}
			if !fn(&st) {
				return nil
			}
		}
		return nil
	})
}

// scan visits every value under prefix in key order.
func (s *BadgerStore) scan(ctx context.Context, prefix string, fn func(val []byte) error) error {
	p := []byte(prefix)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// hasSeparator reports whether an id would break key prefix scans.
func hasSeparator(id string) bool {
	return strings.Contains(id, ":")
}
