// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
)

const (
	// DefaultInterval is the scheduled backup period.
	DefaultInterval = 24 * time.Hour

	metadataFile = "metadata.json"
	filePrefix   = "resonance-"
	fileSuffix   = ".badger.gz"
)

var (
	ErrBackupInProgress = errors.New("a backup is already in progress")
	ErrBackupNotFound   = errors.New("backup not found")
)

// Source produces a backup stream. *storage.BadgerStore implements it.
type Source interface {
	Backup(w io.Writer, since uint64) (uint64, error)
}

// Config configures a Manager.
type Config struct {
	Dir       string
	Interval  time.Duration
	Retention RetentionPolicy
	Now       func() time.Time
}

// Manager creates, indexes and prunes backups.
type Manager struct {
	cfg    Config
	src    Source
	logger zerolog.Logger

	runMu sync.Mutex // one backup at a time

	mu   sync.RWMutex
	meta metadata
}

// NewManager creates Dir when missing and loads its index.
func NewManager(cfg Config, src Source) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("backup dir is required")
	}
	if src == nil {
		return nil, errors.New("backup source is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	m := &Manager{cfg: cfg, src: src, logger: logging.WithComponent("storage-backup")}
	if err := m.loadMetadata(); err != nil {
		return nil, err
	}
	return m, nil
}

// Serve implements suture.Service.
func (m *Manager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.Interval).Str("dir", m.cfg.Dir).Msg("Backup scheduler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.CreateBackup(ctx, TriggerScheduled); err != nil {
				m.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			if n, err := m.ApplyRetention(); err != nil {
				m.logger.Error().Err(err).Msg("Backup retention failed")
			} else if n > 0 {
				m.logger.Info().Int("deleted", n).Msg("Backup retention applied")
			}
		}
	}
}

// String implements fmt.Stringer.
func (m *Manager) String() string {
	return "storage-backup"
}

// CreateBackup writes a full backup. A failed attempt is still indexed,
// with its error, and its partial file removed.
func (m *Manager) CreateBackup(ctx context.Context, trigger Trigger) (*Backup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.runMu.TryLock() {
		return nil, ErrBackupInProgress
	}
	defer m.runMu.Unlock()

	start := m.cfg.Now().UTC()
	b := &Backup{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		CreatedAt: start,
	}
	b.FileName = filePrefix + start.Format("20060102-150405") + "-" + b.ID[:8] + fileSuffix

	err := m.writeFile(b)
	done := m.cfg.Now().UTC()
	b.CompletedAt = &done
	b.DurationMs = done.Sub(start).Milliseconds()
	if err != nil {
		b.Status = StatusFailed
		b.Error = err.Error()
		_ = os.Remove(filepath.Join(m.cfg.Dir, b.FileName))
		b.FileName = ""
	} else {
		b.Status = StatusCompleted
	}
	metrics.RecordBackup(string(trigger), string(b.Status), b.FileSize)

	if serr := m.record(b); serr != nil {
		err = errors.Join(err, serr)
	}
	if err != nil {
		return b, fmt.Errorf("backup %s: %w", b.ID, err)
	}

	m.logger.Info().
		Str("backup_id", b.ID).
		Str("trigger", string(trigger)).
		Int64("size", b.FileSize).
		Int64("duration_ms", b.DurationMs).
		Msg("Backup completed")
	return b, nil
}

// writeFile streams the source through gzip into a temp file, hashing the
// compressed bytes, then renames it into place.
func (m *Manager) writeFile(b *Backup) (err error) {
	final := filepath.Join(m.cfg.Dir, b.FileName)
	f, err := os.CreateTemp(m.cfg.Dir, ".backup-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	hash := sha256.New()
	counter := &countingWriter{}
	gz := gzip.NewWriter(io.MultiWriter(f, hash, counter))

	version, err := m.src.Backup(gz, 0)
	if err != nil {
		return fmt.Errorf("stream backup: %w", err)
	}
	if err = gz.Close(); err != nil {
		return fmt.Errorf("finish gzip: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync backup file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close backup file: %w", err)
	}
	if err = os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename backup file: %w", err)
	}

	b.Version = version
	b.FileSize = counter.n
	b.Checksum = hex.EncodeToString(hash.Sum(nil))
	return nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// ListBackups returns every indexed backup, newest first.
func (m *Manager) ListBackups() []*Backup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Backup, 0, len(m.meta.Backups))
	for _, b := range m.meta.Backups {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// GetBackup returns one backup by id.
func (m *Manager) GetBackup(id string) (*Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.meta.Backups {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBackupNotFound
}

// Verify recomputes the checksum of a completed backup's file.
func (m *Manager) Verify(id string) error {
	b, err := m.GetBackup(id)
	if err != nil {
		return err
	}
	if b.Status != StatusCompleted {
		return fmt.Errorf("backup %s has status %s", id, b.Status)
	}
	f, err := os.Open(filepath.Join(m.cfg.Dir, b.FileName))
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return fmt.Errorf("read backup file: %w", err)
	}
	if got := hex.EncodeToString(hash.Sum(nil)); got != b.Checksum {
		return fmt.Errorf("backup %s checksum mismatch: got %s, want %s", id, got, b.Checksum)
	}
	return nil
}

// Stats summarizes the index.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, b := range m.meta.Backups {
		if b.Status != StatusCompleted {
			s.Failed++
			continue
		}
		s.Completed++
		s.TotalBytes += b.FileSize
		created := b.CreatedAt
		if s.Newest == nil || created.After(*s.Newest) {
			s.Newest = &created
		}
		if s.Oldest == nil || created.Before(*s.Oldest) {
			s.Oldest = &created
		}
	}
	return s
}

func (m *Manager) record(b *Backup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta.Backups = append(m.meta.Backups, b)
	return m.saveMetadataLocked()
}

func (m *Manager) loadMetadata() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup metadata: %w", err)
	}
	if err := json.Unmarshal(data, &m.meta); err != nil {
		return fmt.Errorf("decode backup metadata: %w", err)
	}
	return nil
}

// saveMetadataLocked rewrites the index atomically. Callers hold mu.
func (m *Manager) saveMetadataLocked() error {
	data, err := json.MarshalIndent(m.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup metadata: %w", err)
	}
	tmp := filepath.Join(m.cfg.Dir, metadataFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(m.cfg.Dir, metadataFile)); err != nil {
		return fmt.Errorf("replace backup metadata: %w", err)
	}
	return nil
}
