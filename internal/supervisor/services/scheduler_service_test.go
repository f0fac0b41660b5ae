// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/resonance/internal/models"
	syncpkg "github.com/tomtom215/resonance/internal/sync"
)

type fakeStartStopper struct {
	startErr error
	stopErr  error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (f *fakeStartStopper) Start(context.Context) error {
	f.started.Add(1)
	return f.startErr
}

func (f *fakeStartStopper) Stop() error {
	f.stopped.Add(1)
	return f.stopErr
}

func TestSchedulerService(t *testing.T) {
	t.Run("start failure is returned", func(t *testing.T) {
		f := &fakeStartStopper{startErr: errors.New("boom")}
		err := NewSchedulerService(f).Serve(context.Background())
		if err == nil || f.stopped.Load() != 0 {
			t.Errorf("Serve() error = %v, stops = %d", err, f.stopped.Load())
		}
	})

	t.Run("stop on cancel", func(t *testing.T) {
		f := &fakeStartStopper{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := NewSchedulerService(f).Serve(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
		if f.started.Load() != 1 || f.stopped.Load() != 1 {
			t.Errorf("starts = %d, stops = %d", f.started.Load(), f.stopped.Load())
		}
	})

	t.Run("stop failure is returned", func(t *testing.T) {
		stopErr := errors.New("stuck")
		f := &fakeStartStopper{stopErr: stopErr}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := NewSchedulerService(f).Serve(ctx); !errors.Is(err, stopErr) {
			t.Errorf("Serve() error = %v, want %v", err, stopErr)
		}
	})

	t.Run("default name", func(t *testing.T) {
		if got := NewSchedulerService(&fakeStartStopper{}).String(); got != "sync-scheduler" {
			t.Errorf("String() = %q", got)
		}
	})
}

type nopRunner struct{}

func (nopRunner) InitialSync(context.Context, syncpkg.InitialSyncJob) (*models.SyncResult, error) {
	return &models.SyncResult{Success: true}, nil
}

func (nopRunner) IncrementalSync(context.Context, syncpkg.IncrementalSyncJob) (*models.SyncResult, error) {
	return &models.SyncResult{Success: true}, nil
}

func (nopRunner) DailySync(context.Context, syncpkg.DailySyncJob) (*models.SyncResult, error) {
	return &models.SyncResult{Success: true}, nil
}

func TestSchedulerServiceWithScheduler(t *testing.T) {
	scheduler := syncpkg.NewScheduler(nopRunner{}, syncpkg.SchedulerConfig{IncrementalInterval: time.Hour})
	svc := NewSchedulerService(scheduler)
	if svc.String() != "sync-scheduler" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler service did not stop")
	}

	// the scheduler can be started again, as on a supervisor restart
	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	_ = scheduler.Stop()
}
