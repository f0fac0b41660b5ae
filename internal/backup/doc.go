// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package backup writes scheduled backups of the badger store.
//
// # Overview
//
// A backup is the badger backup stream of every key version, gzip
// compressed, written to Dir as resonance-YYYYMMDD-HHMMSS-<id>.badger.gz.
// Each file's SHA-256 is recorded in metadata.json beside the backups, so
// an operator can verify a file before restoring it with badger's own
// restore tooling into an empty data directory.
//
// # Retention
//
// After every scheduled backup the retention policy runs:
//
//	MinCount      - newest backups always kept
//	KeepDailyDays - newest backup of each of the last N days kept
//	MaxAgeDays    - backups older than this are deleted unless kept above
//	MaxCount      - hard ceiling; oldest kept backups go first, never below MinCount
//
// Failed backups are recorded with their error but never count toward
// retention; their partial files are removed.
//
// # Supervision
//
// Manager implements suture.Service. Serve creates a backup every Interval
// until its context ends.
package backup
