// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package backup

import "time"

// Status is the outcome of a backup.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Trigger records what started a backup.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Backup describes one backup file.
type Backup struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Trigger     Trigger    `json:"trigger"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
	FileName    string     `json:"file_name,omitempty"` // relative to Dir
	FileSize    int64      `json:"file_size"`
	Checksum    string     `json:"checksum,omitempty"` // hex SHA-256 of the file
	Version     uint64     `json:"version"`            // badger version the backup reaches
	Error       string     `json:"error,omitempty"`
}

// RetentionPolicy controls which completed backups are kept.
type RetentionPolicy struct {
	MinCount      int
	MaxCount      int
	MaxAgeDays    int
	KeepDailyDays int
}

// Stats summarizes the backup directory.
type Stats struct {
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	TotalBytes int64      `json:"total_bytes"`
	Newest     *time.Time `json:"newest,omitempty"`
	Oldest     *time.Time `json:"oldest,omitempty"`
}

// metadata is the on-disk index of backups.
type metadata struct {
	Backups []*Backup `json:"backups"`
}
