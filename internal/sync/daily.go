// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/normalize"
)

// DailySync records the account snapshot for the day: fresh account
// metrics plus engagement rolled up from the last RollupDays of post
// snapshots. Deltas compare it with the previous account snapshot.
func (o *Orchestrator) DailySync(ctx context.Context, job DailySyncJob) (*models.SyncResult, error) {
	if job.AccountID == models.SystemAccountID {
		return o.fanOut(ctx, models.SyncDaily, func(ctx context.Context, accountID string) (*models.SyncResult, error) {
			return o.dailyAccount(ctx, accountID, job.Date)
		})
	}
	return o.dailyAccount(ctx, job.AccountID, job.Date)
}

func (o *Orchestrator) dailyAccount(ctx context.Context, accountID string, date time.Time) (*models.SyncResult, error) {
	r, err := o.begin(ctx, accountID, models.SyncDaily)
	if err != nil {
		return r.result, err
	}
	if !date.IsZero() {
		r.day = models.StartOfDay(date)
	}
	if err := o.authorize(ctx, r); err != nil {
		r.fail(err)
		return o.finish(ctx, r), nil
	}

	rollup, err := o.rollup(ctx, r)
	if err != nil {
		r.fail(err)
		return o.finish(ctx, r), nil
	}
	r.result.Rollup = &rollup
	r.result.PostsProcessed = rollup.Posts

	current, err := o.accountSnapshot(ctx, r, rollup)
	if err != nil {
		r.fail(err)
		return o.finish(ctx, r), nil
	}

	previous, err := o.store.FindLatestSnapshot(ctx, r.account.ID, models.KindAccount, r.day)
	if err != nil {
		r.warn(fmt.Sprintf("previous snapshot unavailable: %v", err))
	}
	r.result.Deltas = GrowthDeltas(previous, current)
	return o.finish(ctx, r), nil
}

// rollup summarizes the latest snapshot of every post in the window.
func (o *Orchestrator) rollup(ctx context.Context, r *run) (models.Rollup, error) {
	q := models.SnapshotQuery{
		AccountID: r.account.ID,
		Kinds:     models.PostKinds,
		Since:     r.day.AddDate(0, 0, -(o.cfg.RollupDays - 1)),
		Until:     r.day.AddDate(0, 0, 1),
	}
	posts, err := o.store.ListSnapshots(ctx, q)
	if err != nil {
		return models.Rollup{}, fmt.Errorf("list post snapshots: %w", err)
	}
	return normalize.Summarize(normalize.LatestPerSubject(posts)), nil
}

// accountSnapshot creates the day's ACCOUNT snapshot, or loads it when an
// earlier run already recorded one.
func (o *Orchestrator) accountSnapshot(ctx context.Context, r *run, rollup models.Rollup) (*models.AnalyticsSnapshot, error) {
	subject := r.creds.ProfileID
	exists, err := o.store.SnapshotExistsForDay(ctx, subject, models.KindAccount, r.day)
	if err != nil {
		return nil, fmt.Errorf("check account snapshot: %w", err)
	}
	if exists {
		return o.recordedAccountSnapshot(ctx, r)
	}

	insights, err := r.adapter.FetchAccountInsights(ctx, r.creds, models.LastDays(r.day, 1))
	if err != nil {
		return nil, err
	}
	r.result.Warnings = append(r.result.Warnings, insights.Warnings...)

	snap, err := o.normalizer.NormalizeAccount(insights, r.account.Platform)
	if err != nil {
		return nil, err
	}
	snap.SubjectID = subject
	snap.AccountID = r.account.ID
	snap.RecordedAt = r.day
	if t := rollup.Totals; t != nil {
		snap.Views = t.Views
		snap.Likes = t.Likes
		snap.Comments = t.Comments
		snap.Shares = t.Shares
		snap.Saves = t.Saves
		snap.Clicks = t.Clicks
	}
	snap.EngagementRate = models.EngagementRate(snap.TotalEngagement(), snap.Reach)

	if err := normalize.Validate(snap); err != nil {
		return nil, err
	}
	if err := o.store.CreateAnalyticsSnapshot(ctx, snap); err != nil {
		if errors.Is(err, models.ErrSnapshotExists) {
			return o.recordedAccountSnapshot(ctx, r)
		}
		return nil, fmt.Errorf("create account snapshot: %w", err)
	}
	r.result.AnalyticsUpdated++
	return snap, nil
}

// recordedAccountSnapshot loads the day's snapshot recorded by an earlier run.
func (o *Orchestrator) recordedAccountSnapshot(ctx context.Context, r *run) (*models.AnalyticsSnapshot, error) {
	r.skipped++
	r.logger.Debug().Time("day", r.day).Msg("Account snapshot already recorded")
	existing, err := o.store.FindLatestSnapshot(ctx, r.account.ID, models.KindAccount, r.day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load account snapshot: %w", err)
	}
	return existing, nil
}

// deltaMetrics are the account counters reported day over day.
var deltaMetrics = []struct {
	name string
	get  func(*models.AnalyticsSnapshot) int64
}{
	{"followers", func(s *models.AnalyticsSnapshot) int64 { return s.Followers }},
	{"profile_visits", func(s *models.AnalyticsSnapshot) int64 { return s.ProfileVisits }},
	{"reach", func(s *models.AnalyticsSnapshot) int64 { return s.Reach }},
	{"impressions", func(s *models.AnalyticsSnapshot) int64 { return s.Impressions }},
	{"likes", func(s *models.AnalyticsSnapshot) int64 { return s.Likes }},
	{"comments", func(s *models.AnalyticsSnapshot) int64 { return s.Comments }},
	{"shares", func(s *models.AnalyticsSnapshot) int64 { return s.Shares }},
	{"saves", func(s *models.AnalyticsSnapshot) int64 { return s.Saves }},
}

// GrowthDeltas compares two account snapshots. Without a previous
// snapshot every delta has HasPrior false and a zero change.
func GrowthDeltas(previous, current *models.AnalyticsSnapshot) []models.GrowthDelta {
	if current == nil {
		return nil
	}
	out := make([]models.GrowthDelta, 0, len(deltaMetrics))
	for _, m := range deltaMetrics {
		d := models.GrowthDelta{Metric: m.name, Current: m.get(current)}
		if previous != nil {
			d.HasPrior = true
			d.Previous = m.get(previous)
			d.Change = d.Current - d.Previous
			d.Percent = growthPercent(d.Previous, d.Current)
		}
		out = append(out, d)
	}
	return out
}

// growthPercent is rounded to two decimals; growth from zero counts as 100%.
func growthPercent(previous, current int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	pct := float64(current-previous) / float64(previous) * 100
	return math.Round(pct*100) / 100
}
