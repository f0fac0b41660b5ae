// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package storage persists accounts, credentials, posts, analytics snapshots
and the sync log.

Two drivers share one contract:

  - badger: BadgerDB on disk. Access and refresh tokens are sealed with
    AES-256-GCM under a key derived by HKDF-SHA256 from the configured secret.
  - memory: process-local maps, for tests and throwaway runs.

Snapshots are keyed by account, kind and UTC day, with a secondary
subject/kind/day index so the same-day existence check is a single point
lookup. A second snapshot for the same subject, kind and day is rejected
with ErrSnapshotExists.

Sync log entries are append-only and keyed by run start time, so the
newest completed run is found by reverse iteration.
*/
package storage
