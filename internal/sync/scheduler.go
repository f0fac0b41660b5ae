// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/models"
)

// Scheduler defaults.
const (
	DefaultIncrementalInterval = time.Hour
	DefaultDailyAt             = 3 * time.Hour // 03:00 UTC
)

var (
	// ErrSyncInProgress is returned when a run is already executing.
	ErrSyncInProgress = errors.New("a sync run is already in progress")

	ErrSchedulerRunning    = errors.New("scheduler is already running")
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
)

// Runner is the set of entry points the scheduler drives.
type Runner interface {
	InitialSync(ctx context.Context, job InitialSyncJob) (*models.SyncResult, error)
	IncrementalSync(ctx context.Context, job IncrementalSyncJob) (*models.SyncResult, error)
	DailySync(ctx context.Context, job DailySyncJob) (*models.SyncResult, error)
}

// SchedulerConfig configures the periodic runs.
type SchedulerConfig struct {
	IncrementalInterval time.Duration
	DailyAt             time.Duration // offset from midnight UTC
}

// Scheduler runs the incremental fan-out on an interval and the daily
// fan-out once a day, and serializes manual triggers with both.
type Scheduler struct {
	runner Runner
	cfg    SchedulerConfig
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun map[models.SyncType]time.Time

	runMu sync.Mutex // held for the duration of a run

	bgCancel context.CancelFunc // cancels the running Dispatch, if any
	bgWG     sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock sets the clock used to compute the daily run time.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(runner Runner, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.IncrementalInterval <= 0 {
		cfg.IncrementalInterval = DefaultIncrementalInterval
	}
	if cfg.DailyAt < 0 || cfg.DailyAt >= 24*time.Hour {
		cfg.DailyAt = DefaultDailyAt
	}
	s := &Scheduler{
		runner:  runner,
		cfg:     cfg,
		now:     time.Now,
		logger:  logging.WithComponent("scheduler"),
		lastRun: make(map[models.SyncType]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the periodic runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info().
		Dur("incremental_interval", s.cfg.IncrementalInterval).
		Time("next_daily", NextDailyRun(s.now(), s.cfg.DailyAt)).
		Msg("Scheduler started")
	return nil
}

// Stop cancels the loop, any run it started and any dispatched run, then
// waits for them.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	cancel, bgCancel := s.cancel, s.bgCancel
	s.mu.Unlock()

	if bgCancel != nil {
		bgCancel()
	}
	s.bgWG.Wait()
	if !wasRunning {
		return ErrSchedulerNotRunning
	}

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// LastRun returns when a run of type t last started, zero when never.
func (s *Scheduler) LastRun(t models.SyncType) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun[t]
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.IncrementalInterval)
	defer ticker.Stop()
	daily := time.NewTimer(s.untilDaily())
	defer daily.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduled(ctx, models.SyncIncremental)
		case <-daily.C:
			s.scheduled(ctx, models.SyncDaily)
			daily.Reset(s.untilDaily())
		}
	}
}

func (s *Scheduler) untilDaily() time.Duration {
	now := s.now()
	return NextDailyRun(now, s.cfg.DailyAt).Sub(now)
}

func (s *Scheduler) scheduled(ctx context.Context, t models.SyncType) {
	_, err := s.Trigger(ctx, models.SystemAccountID, t)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Info().Str("sync_type", string(t)).Msg("Scheduled run skipped, another run in progress")
	case err != nil:
		s.logger.Error().Err(err).Str("sync_type", string(t)).Msg("Scheduled run failed")
	}
}

// Trigger runs one sync now. It returns ErrSyncInProgress instead of
// waiting when another run is executing.
func (s *Scheduler) Trigger(ctx context.Context, accountID string, t models.SyncType) (*models.SyncResult, error) {
	if err := validateTrigger(accountID, t); err != nil {
		return nil, err
	}
	if !s.runMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.runMu.Unlock()
	return s.dispatch(ctx, accountID, t)
}

// Dispatch claims the run slot and runs the sync in the background. The
// run outlives ctx; Stop cancels it. done, when non-nil, receives the
// outcome.
func (s *Scheduler) Dispatch(ctx context.Context, accountID string, t models.SyncType, done func(*models.SyncResult, error)) error {
	if err := validateTrigger(accountID, t); err != nil {
		return err
	}
	if !s.runMu.TryLock() {
		return ErrSyncInProgress
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.bgCancel = cancel
	s.mu.Unlock()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		defer s.runMu.Unlock()
		defer func() {
			s.mu.Lock()
			s.bgCancel = nil
			s.mu.Unlock()
			cancel()
		}()

		res, err := s.dispatch(runCtx, accountID, t)
		if err != nil {
			s.logger.Error().Err(err).Str("account_id", accountID).Str("sync_type", string(t)).Msg("Dispatched run failed")
		}
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

func validateTrigger(accountID string, t models.SyncType) error {
	if !t.Valid() {
		return apierror.New(apierror.KindValidation, "unknown sync type %q", t)
	}
	if accountID == "" {
		return apierror.New(apierror.KindValidation, "account id is required")
	}
	return nil
}

// dispatch runs t while the caller holds runMu.
func (s *Scheduler) dispatch(ctx context.Context, accountID string, t models.SyncType) (*models.SyncResult, error) {
	s.mu.Lock()
	s.lastRun[t] = s.now()
	s.mu.Unlock()

	switch t {
	case models.SyncInitial:
		return s.runner.InitialSync(ctx, InitialSyncJob{AccountID: accountID})
	case models.SyncIncremental:
		return s.runner.IncrementalSync(ctx, IncrementalSyncJob{AccountID: accountID})
	case models.SyncDaily:
		return s.runner.DailySync(ctx, DailySyncJob{AccountID: accountID})
	default:
		return nil, fmt.Errorf("unhandled sync type %s", t)
	}
}

// NextDailyRun returns the first instant strictly after now at the given
// offset from midnight UTC.
func NextDailyRun(now time.Time, at time.Duration) time.Time {
	next := models.StartOfDay(now).Add(at)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// String implements fmt.Stringer.
func (s *Scheduler) String() string {
	return "sync-scheduler"
}
