// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

// IncrementalSync fetches media published since the last completed run.
// The system account id runs every account holding credentials in turn.
func (o *Orchestrator) IncrementalSync(ctx context.Context, job IncrementalSyncJob) (*models.SyncResult, error) {
	if job.AccountID == models.SystemAccountID {
		return o.fanOut(ctx, models.SyncIncremental, func(ctx context.Context, accountID string) (*models.SyncResult, error) {
			return o.incrementalAccount(ctx, accountID, job.Since)
		})
	}
	return o.incrementalAccount(ctx, job.AccountID, job.Since)
}

func (o *Orchestrator) incrementalAccount(ctx context.Context, accountID string, since time.Time) (*models.SyncResult, error) {
	r, err := o.begin(ctx, accountID, models.SyncIncremental)
	if err != nil {
		return r.result, err
	}
	if err := o.authorize(ctx, r); err != nil {
		r.fail(err)
		return o.finish(ctx, r), nil
	}

	if since.IsZero() {
		since, err = o.resumePoint(ctx, r)
		if err != nil {
			r.fail(err)
			return o.finish(ctx, r), nil
		}
	}

	o.collectMedia(ctx, r, since, o.cfg.IncrementalPageSize)

	if r.fatal == nil && o.hotspots != nil {
		if err := o.hotspots.DetectHotspots(ctx, accountID); err != nil {
			r.logger.Warn().Err(err).Msg("Hotspot detection failed")
			r.warn(fmt.Sprintf("hotspot detection: %v", err))
		}
	}
	return o.finish(ctx, r), nil
}

// resumePoint is the start of the last completed media run, or the initial
// lookback window when the account was never synced. A run that left media
// unprocessed resumes from where it began.
func (o *Orchestrator) resumePoint(ctx context.Context, r *run) (time.Time, error) {
	state, err := o.store.LatestSyncState(ctx, r.account.ID, models.SyncInitial, models.SyncIncremental)
	if err != nil {
		return time.Time{}, fmt.Errorf("load sync state: %w", err)
	}
	if state == nil {
		return r.started.AddDate(0, 0, -o.cfg.InitialLookbackDays), nil
	}
	if state.ResumeFrom != nil {
		return *state.ResumeFrom, nil
	}
	return state.LastSyncAt, nil
}

// accountRun syncs one account for fanOut.
type accountRun func(ctx context.Context, accountID string) (*models.SyncResult, error)

// fanOut runs one sequentially for every account holding credentials.
// Per-account failures are collected and never stop the batch; no eligible
// accounts is a successful, empty run.
func (o *Orchestrator) fanOut(ctx context.Context, t models.SyncType, one accountRun) (*models.SyncResult, error) {
	start := o.now()
	res := &models.SyncResult{
		Success:   true,
		AccountID: models.SystemAccountID,
		SyncType:  t,
		Errors:    []models.SyncError{},
	}
	logger := o.logger.With().Str("sync_type", string(t)).Str("account_id", models.SystemAccountID).Logger()

	accounts, err := o.store.ListAccounts(ctx)
	if err != nil {
		res.Success = false
		res.Errors = append(res.Errors, models.SyncError{AccountID: models.SystemAccountID, Message: err.Error()})
		return res, fmt.Errorf("list accounts: %w", err)
	}

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			res.Success = false
			res.Errors = append(res.Errors, models.SyncError{
				AccountID: models.SystemAccountID,
				Message:   fmt.Sprintf("fan-out stopped after %d accounts: %v", res.AccountsSynced, err),
			})
			break
		}
		if !o.eligible(ctx, account) {
			continue
		}

		res.AccountsSynced++
		ar, err := one(ctx, account.ID)
		if err != nil {
			logger.Warn().Err(err).Str("account", account.ID).Msg("Account sync failed")
		}
		if ar == nil {
			res.Success = false
			res.Errors = append(res.Errors, models.SyncError{AccountID: account.ID, Message: fmt.Sprint(err)})
			continue
		}
		res.PostsProcessed += ar.PostsProcessed
		res.AnalyticsUpdated += ar.AnalyticsUpdated
		res.Errors = append(res.Errors, ar.Errors...)
		for _, w := range ar.Warnings {
			res.Warnings = append(res.Warnings, account.ID+": "+w)
		}
		if !ar.Success {
			res.Success = false
		}
	}

	res.ExecutionTimeMs = o.now().Sub(start).Milliseconds()
	logger.Info().
		Int("accounts", res.AccountsSynced).
		Int("posts_processed", res.PostsProcessed).
		Int("analytics_updated", res.AnalyticsUpdated).
		Int("errors", len(res.Errors)).
		Bool("success", res.Success).
		Msg("Fan-out finished")
	return res, nil
}
