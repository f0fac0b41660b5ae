// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package sync drives collection runs for connected accounts.

The Orchestrator exposes three entry points that share one run lifecycle:

  - InitialSync: backfills the last LookbackDays of media for a newly
    connected account, creating each post and its first snapshot
  - IncrementalSync: fetches media newer than the last completed sync and
    hands the account to the hotspot collaborator afterwards; the
    "system" account id fans out over every account holding credentials
  - DailySync: refreshes account metrics, rolls the last 30 days of post
    snapshots into an account snapshot and reports day-over-day deltas

Run Lifecycle:

 1. Resolve the account (the only failure returned as an error)
 2. Load credentials and validate the token (AUTH_ERROR fails fast)
 3. Fold over media items sequentially, paced by a token bucket
 4. Skip items that already have a snapshot for the day
 5. Append a SyncState entry, COMPLETED or FAILED, and invalidate the
    comparison cache on success

A failing item becomes an entry in SyncResult.Errors and never aborts the
batch. Auth failures and context cancellation stop the fold; the partial
counters are still recorded.

Scheduling:

Scheduler is a suture service that runs the incremental fan-out on an
interval and the daily fan-out at a fixed UTC time of day. It also serves
manual triggers from the ops API. At most one run executes at a time;
overlapping requests get ErrSyncInProgress.

	orch := sync.NewOrchestrator(store, store, registry, sync.Config{}, sync.WithHotspotDetector(analyzer))
	result, err := orch.IncrementalSync(ctx, sync.IncrementalSyncJob{AccountID: models.SystemAccountID})
*/
package sync
