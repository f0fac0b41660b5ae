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
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/storage"
)

// fakeSource writes a fixed payload, optionally blocking or failing.
type fakeSource struct {
	payload string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSource) Backup(w io.Writer, _ uint64) (uint64, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		_, _ = io.WriteString(w, "partial")
		return 0, f.err
	}
	_, err := io.WriteString(w, f.payload)
	return 42, err
}

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newManager(t *testing.T, src Source, cfg Config) *Manager {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	m, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func gunzipFile(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{}, &fakeSource{}); err == nil {
		t.Error("NewManager(no dir) error = nil")
	}
	if _, err := NewManager(Config{Dir: t.TempDir()}, nil); err == nil {
		t.Error("NewManager(nil source) error = nil")
	}
}

func TestCreateBackup(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, &fakeSource{payload: "badger-stream"}, Config{Dir: dir, Now: func() time.Time { return testNow }})

	b, err := m.CreateBackup(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	if b.Status != StatusCompleted || b.Trigger != TriggerManual || b.Version != 42 {
		t.Errorf("backup = %+v", b)
	}
	if !strings.HasPrefix(b.FileName, "resonance-20260310-120000-") || !strings.HasSuffix(b.FileName, ".badger.gz") {
		t.Errorf("FileName = %q", b.FileName)
	}

	path := filepath.Join(dir, b.FileName)
	if got := gunzipFile(t, path); got != "badger-stream" {
		t.Errorf("content = %q", got)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(raw)
	if b.Checksum != hex.EncodeToString(sum[:]) || b.FileSize != int64(len(raw)) {
		t.Errorf("checksum/size = %s/%d, want %x/%d", b.Checksum, b.FileSize, sum, len(raw))
	}
	if err := m.Verify(b.ID); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	reloaded := newManager(t, &fakeSource{}, Config{Dir: dir})
	got, err := reloaded.GetBackup(b.ID)
	if err != nil {
		t.Fatalf("GetBackup() after reload error = %v", err)
	}
	if got.Checksum != b.Checksum {
		t.Errorf("reloaded checksum = %s, want %s", got.Checksum, b.Checksum)
	}
	if _, err := reloaded.GetBackup("missing"); !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("GetBackup(missing) error = %v, want ErrBackupNotFound", err)
	}
}

func TestCreateBackupFailure(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, &fakeSource{err: errors.New("disk on fire")}, Config{Dir: dir})

	b, err := m.CreateBackup(context.Background(), TriggerScheduled)
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("CreateBackup() error = %v, want source error", err)
	}
	if b == nil || b.Status != StatusFailed || b.FileName != "" || b.Error == "" {
		t.Errorf("backup = %+v", b)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != metadataFile {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want only %s", names, metadataFile)
	}
	if s := m.Stats(); s.Failed != 1 || s.Completed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
	if err := m.Verify(b.ID); err == nil {
		t.Error("Verify(failed backup) error = nil")
	}
}

func TestCreateBackupInProgress(t *testing.T) {
	src := &fakeSource{payload: "x", block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := newManager(t, src, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := m.CreateBackup(context.Background(), TriggerScheduled)
		done <- err
	}()
	<-src.started

	if _, err := m.CreateBackup(context.Background(), TriggerManual); !errors.Is(err, ErrBackupInProgress) {
		t.Errorf("concurrent CreateBackup() error = %v, want ErrBackupInProgress", err)
	}
	close(src.block)
	if err := <-done; err != nil {
		t.Errorf("first CreateBackup() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.CreateBackup(ctx, TriggerManual); !errors.Is(err, context.Canceled) {
		t.Errorf("CreateBackup(canceled) error = %v, want context.Canceled", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, &fakeSource{payload: "original"}, Config{Dir: dir})
	b, err := m.CreateBackup(context.Background(), TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, b.FileName), []byte("tampered"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := m.Verify(b.ID); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Verify() error = %v, want checksum mismatch", err)
	}
}

func TestApplyRetentionDeletesFiles(t *testing.T) {
	dir := t.TempDir()
	clock := &stepClock{now: testNow, step: 12 * time.Hour}
	m := newManager(t, &fakeSource{payload: "x"}, Config{
		Dir:       dir,
		Now:       clock.Now,
		Retention: RetentionPolicy{MinCount: 1, MaxCount: 2},
	})

	var created []*Backup
	for i := 0; i < 4; i++ {
		b, err := m.CreateBackup(context.Background(), TriggerScheduled)
		if err != nil {
			t.Fatal(err)
		}
		created = append(created, b)
	}

	removed, err := m.ApplyRetention()
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	list := m.ListBackups()
	if len(list) != 2 || list[0].ID != created[3].ID || list[1].ID != created[2].ID {
		t.Fatalf("ListBackups() = %d entries, want the two newest", len(list))
	}
	for _, b := range created[:2] {
		if _, err := os.Stat(filepath.Join(dir, b.FileName)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("file of pruned backup %s still present: %v", b.ID, err)
		}
	}
	if again, err := m.ApplyRetention(); err != nil || again != 0 {
		t.Errorf("second ApplyRetention() = %d, %v; want 0, nil", again, err)
	}
}

func TestServeRunsScheduledBackups(t *testing.T) {
	m := newManager(t, &fakeSource{payload: "x"}, Config{Interval: 10 * time.Millisecond})
	if m.String() != "storage-backup" {
		t.Errorf("String() = %q", m.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(m.ListBackups()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no scheduled backup within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if b := m.ListBackups()[0]; b.Trigger != TriggerScheduled {
		t.Errorf("trigger = %s, want scheduled", b.Trigger)
	}
}

func TestBadgerBackupLoadsIntoFreshStore(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	ctx := context.Background()

	src, err := storage.OpenBadger(t.TempDir(), secret)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = src.Close() })
	account := &models.Account{ID: "acct-1", Platform: models.PlatformFacebook, ProfileID: "page-1", Name: "studio"}
	if err := src.SaveAccount(ctx, account); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	m := newManager(t, src, Config{Dir: dir})
	b, err := m.CreateBackup(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	dst, err := storage.OpenBadger(t.TempDir(), secret)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dst.Close() })

	f, err := os.Open(filepath.Join(dir, b.FileName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.DB().Load(zr, 16); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got, err := dst.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount() after load error = %v", err)
	}
	if got.ProfileID != "page-1" || got.Platform != models.PlatformFacebook {
		t.Errorf("account = %+v", got)
	}
}
