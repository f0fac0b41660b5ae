// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package comparison

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/cache"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/normalize"
)

// Window limits of ComparePeriods.
const (
	DefaultDays        = 7
	MaxDays            = 90
	AnomalyHistoryDays = 30
)

// Cache entry names.
const (
	cacheComparison = "comparison"
	cacheAnomalies  = "anomalies"
)

// SnapshotLister reads stored snapshots.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, q models.SnapshotQuery) ([]*models.AnalyticsSnapshot, error)
}

// AnomalyHook is called when a freshly computed report has anomalies.
type AnomalyHook func(ctx context.Context, accountID string, current *models.AnalyticsSnapshot, report normalize.AnomalyReport)

// PeriodComparison compares two adjacent windows of post snapshots.
type PeriodComparison struct {
	AccountID      string                    `json:"account_id"`
	Days           int                       `json:"days"`
	CurrentPeriod  models.Period             `json:"current_period"`
	PreviousPeriod models.Period             `json:"previous_period"`
	CurrentPosts   int                       `json:"current_posts"`
	PreviousPosts  int                       `json:"previous_posts"`
	Current        *models.AnalyticsSnapshot `json:"current,omitempty"`
	Previous       *models.AnalyticsSnapshot `json:"previous,omitempty"`
	Result         ComparisonResult          `json:"result"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	Cached         bool                      `json:"cached"`
}

// AccountAnomalies is the anomaly report of an account's latest snapshot.
type AccountAnomalies struct {
	AccountID   string                    `json:"account_id"`
	Current     *models.AnalyticsSnapshot `json:"current,omitempty"`
	Report      normalize.AnomalyReport   `json:"report"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Cached      bool                      `json:"cached"`
}

// Engine serves cached comparisons and anomaly reports.
type Engine struct {
	store     SnapshotLister
	cache     *cache.Cache
	now       func() time.Time
	onAnomaly AnomalyHook
	logger    zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock used for window boundaries.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithAnomalyHook registers fn for reports with anomalies.
func WithAnomalyHook(fn AnomalyHook) EngineOption {
	return func(e *Engine) { e.onAnomaly = fn }
}

// NewEngine creates an Engine over store, caching results in c.
func NewEngine(store SnapshotLister, c *cache.Cache, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		cache:  c,
		now:    time.Now,
		logger: logging.WithComponent("comparison"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComparePeriods compares the last days days with the days before them.
func (e *Engine) ComparePeriods(ctx context.Context, accountID string, days int) (*PeriodComparison, error) {
	if days == 0 {
		days = DefaultDays
	}
	if days < 1 || days > MaxDays {
		return nil, apierror.New(apierror.KindValidation, "days must be between 1 and %d, got %d", MaxDays, days)
	}

	key := cache.Key{AccountID: accountID, Name: cacheComparison, Params: days}.String()
	if v, ok := e.cache.Get(key); ok {
		if pc, ok := v.(*PeriodComparison); ok {
			hit := *pc
			hit.Cached = true
			return &hit, nil
		}
	}

	// Windows end at tomorrow's midnight so today's snapshots count.
	end := models.StartOfDay(e.now()).AddDate(0, 0, 1)
	current := models.Period{Since: end.AddDate(0, 0, -days), Until: end}
	previous := models.Period{Since: current.Since.AddDate(0, 0, -days), Until: current.Since}

	snaps, err := e.store.ListSnapshots(ctx, models.SnapshotQuery{
		AccountID: accountID,
		Kinds:     models.PostKinds,
		Since:     previous.Since,
		Until:     current.Until,
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots for %s: %w", accountID, err)
	}

	var cur, prev []*models.AnalyticsSnapshot
	for _, s := range snaps {
		if s.RecordedAt.Before(current.Since) {
			prev = append(prev, s)
		} else {
			cur = append(cur, s)
		}
	}
	cur = normalize.LatestPerSubject(cur)
	prev = normalize.LatestPerSubject(prev)

	pc := &PeriodComparison{
		AccountID:      accountID,
		Days:           days,
		CurrentPeriod:  current,
		PreviousPeriod: previous,
		CurrentPosts:   len(cur),
		PreviousPosts:  len(prev),
		Current:        normalize.Aggregate(cur),
		Previous:       normalize.Aggregate(prev),
		GeneratedAt:    e.now(),
	}
	pc.Result = Compare(pc.Current, pc.Previous)

	e.cache.SetString(key, pc, 0)
	e.logger.Debug().
		Str("account_id", accountID).
		Int("days", days).
		Str("trend", string(pc.Result.Trend)).
		Msg("Computed period comparison")
	return pc, nil
}

// Anomalies checks the latest account snapshot against the preceding
// AnomalyHistoryDays of account snapshots.
func (e *Engine) Anomalies(ctx context.Context, accountID string) (*AccountAnomalies, error) {
	key := cache.Key{AccountID: accountID, Name: cacheAnomalies}.String()
	if v, ok := e.cache.Get(key); ok {
		if aa, ok := v.(*AccountAnomalies); ok {
			hit := *aa
			hit.Cached = true
			return &hit, nil
		}
	}

	end := models.StartOfDay(e.now()).AddDate(0, 0, 1)
	snaps, err := e.store.ListSnapshots(ctx, models.SnapshotQuery{
		AccountID: accountID,
		Kinds:     []models.SnapshotKind{models.KindAccount},
		Since:     end.AddDate(0, 0, -(AnomalyHistoryDays + 1)),
		Until:     end,
	})
	if err != nil {
		return nil, fmt.Errorf("list account snapshots for %s: %w", accountID, err)
	}

	aa := &AccountAnomalies{AccountID: accountID, GeneratedAt: e.now()}
	if len(snaps) == 0 {
		aa.Report = normalize.DetectAnomalies(nil, nil)
	} else {
		latest := 0
		for i, s := range snaps {
			if s.RecordedAt.After(snaps[latest].RecordedAt) {
				latest = i
			}
		}
		aa.Current = snaps[latest]
		history := make([]*models.AnalyticsSnapshot, 0, len(snaps)-1)
		for i, s := range snaps {
			if i != latest {
				history = append(history, s)
			}
		}
		aa.Report = normalize.DetectAnomalies(aa.Current, history)
	}

	e.cache.SetString(key, aa, 0)
	if aa.Report.HasAnomalies {
		e.logger.Info().
			Str("account_id", accountID).
			Str("severity", string(aa.Report.Severity)).
			Int("findings", len(aa.Report.Findings)).
			Msg("Anomalies detected")
		if e.onAnomaly != nil {
			e.onAnomaly(ctx, accountID, aa.Current, aa.Report)
		}
	}
	return aa, nil
}

// Invalidate drops every cached result of accountID.
func (e *Engine) Invalidate(accountID string) int {
	return e.cache.Clear(accountID)
}

// Cache exposes the result cache for the ops API.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}
