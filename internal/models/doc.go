// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package models defines the platform-agnostic data structures of the pipeline.

Key Components:

  - AnalyticsSnapshot: one normalized measurement of an account or post at a
    point in time, truncated to day granularity
  - SyncState: append-only log entry describing one finished sync run
  - SyncResult: structured outcome returned by every sync entry point
  - AccountInsights, MediaItem, RawInsights: fetcher output before normalization
  - Account, Credentials, Post: records owned by the storage collaborator

All JSON tags use snake_case to match the ops API and the persisted form.
*/
package models
