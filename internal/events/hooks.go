// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/normalize"
)

// SyncCompletedHook publishes SyncCompleted for every finished run.
// Publish failures are logged.
func SyncCompletedHook(pub Publisher) func(ctx context.Context, state *models.SyncState, result *models.SyncResult) {
	return func(ctx context.Context, state *models.SyncState, result *models.SyncResult) {
		if state == nil || result == nil {
			return
		}
		ev := SyncCompleted{
			RunID:            state.ID,
			AccountID:        state.AccountID,
			Platform:         state.Platform,
			SyncType:         state.SyncType,
			Success:          result.Success,
			PostsProcessed:   result.PostsProcessed,
			AnalyticsUpdated: result.AnalyticsUpdated,
			ErrorCount:       len(result.Errors),
			Warnings:         result.Warnings,
			ExecutionTimeMs:  result.ExecutionTimeMs,
			FinishedAt:       state.LastSyncAt.Add(time.Duration(result.ExecutionTimeMs) * time.Millisecond),
		}
		if err := pub.Publish(ctx, ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("account_id", state.AccountID).Msg("Publish sync completed event failed")
		}
	}
}

// AnomalyHook publishes AnomalyDetected for reports with findings.
func AnomalyHook(pub Publisher) func(ctx context.Context, accountID string, current *models.AnalyticsSnapshot, report normalize.AnomalyReport) {
	return func(ctx context.Context, accountID string, current *models.AnalyticsSnapshot, report normalize.AnomalyReport) {
		if !report.HasAnomalies {
			return
		}
		ev := AnomalyDetected{
			AccountID:  accountID,
			Severity:   report.Severity,
			Findings:   report.Findings,
			DetectedAt: time.Now().UTC(),
		}
		if current != nil {
			ev.SubjectID = current.SubjectID
			ev.RecordedAt = current.RecordedAt
		}
		if err := pub.Publish(ctx, ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("account_id", accountID).Msg("Publish anomaly event failed")
		}
	}
}

// RegisterActivityLog logs completed syncs, hotspots and anomalies as
// they arrive on the bus.
func RegisterActivityLog(r *Router) {
	r.Handle("activity-sync", TopicSyncCompleted, func(ctx context.Context, msg *message.Message) error {
		var ev SyncCompleted
		if err := decode(msg, &ev); err != nil {
			return err
		}
		level := zerolog.InfoLevel
		if !ev.Success {
			level = zerolog.WarnLevel
		}
		logging.Ctx(ctx).WithLevel(level).
			Str("account_id", ev.AccountID).
			Str("sync_type", string(ev.SyncType)).
			Bool("success", ev.Success).
			Int("posts", ev.PostsProcessed).
			Int("updated", ev.AnalyticsUpdated).
			Int("errors", ev.ErrorCount).
			Msg("Sync completed event")
		return nil
	})

	r.Handle("activity-hotspot", TopicHotspotDetected, func(ctx context.Context, msg *message.Message) error {
		var ev HotspotDetected
		if err := decode(msg, &ev); err != nil {
			return err
		}
		e := logging.Ctx(ctx).Info().
			Str("account_id", ev.AccountID).
			Int("hotspots", len(ev.Hotspots)).
			Float64("mean_rate", ev.MeanRate)
		if len(ev.Hotspots) > 0 {
			e = e.Str("top_subject", ev.Hotspots[0].SubjectID).Float64("top_multiple", ev.Hotspots[0].Multiple)
		}
		e.Msg("Hotspots detected")
		return nil
	})

	r.Handle("activity-anomaly", TopicAnomalyDetected, func(ctx context.Context, msg *message.Message) error {
		var ev AnomalyDetected
		if err := decode(msg, &ev); err != nil {
			return err
		}
		logging.Ctx(ctx).Warn().
			Str("account_id", ev.AccountID).
			Str("severity", string(ev.Severity)).
			Int("findings", len(ev.Findings)).
			Msg("Anomaly event")
		return nil
	})
}
