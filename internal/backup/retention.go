// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ApplyRetention deletes completed backups the policy no longer keeps and
// drops failed entries older than MaxAgeDays. It returns how many index
// entries were removed.
func (m *Manager) ApplyRetention() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now().UTC()
	var completed []*Backup
	for _, b := range m.meta.Backups {
		if b.Status == StatusCompleted {
			completed = append(completed, b)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].CreatedAt.After(completed[j].CreatedAt) })

	remove := selectForDeletion(completed, m.cfg.Retention, now)
	if days := m.cfg.Retention.MaxAgeDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		for _, b := range m.meta.Backups {
			if b.Status == StatusFailed && b.CreatedAt.Before(cutoff) {
				remove[b.ID] = true
			}
		}
	}
	if len(remove) == 0 {
		return 0, nil
	}

	var errs []error
	kept := m.meta.Backups[:0]
	removed := 0
	for _, b := range m.meta.Backups {
		if !remove[b.ID] {
			kept = append(kept, b)
			continue
		}
		if b.FileName != "" {
			err := os.Remove(filepath.Join(m.cfg.Dir, b.FileName))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("delete backup %s: %w", b.ID, err))
				kept = append(kept, b)
				continue
			}
		}
		removed++
	}
	m.meta.Backups = kept

	if err := m.saveMetadataLocked(); err != nil {
		errs = append(errs, err)
	}
	return removed, errors.Join(errs...)
}

// selectForDeletion applies p to completed backups sorted newest first.
//
// The MinCount newest and the newest of each of the last KeepDailyDays days
// are kept; anything else older than MaxAgeDays goes. MaxCount then trims
// the oldest unkept survivors, then the oldest daily keeps, but never the
// MinCount newest.
func selectForDeletion(backups []*Backup, p RetentionPolicy, now time.Time) map[string]bool {
	keep := make(map[string]bool)
	for i := 0; i < p.MinCount && i < len(backups); i++ {
		keep[backups[i].ID] = true
	}
	if p.KeepDailyDays > 0 {
		y, mo, d := now.UTC().Date()
		cutoff := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(p.KeepDailyDays - 1))
		seen := make(map[string]bool)
		for _, b := range backups {
			if b.CreatedAt.Before(cutoff) {
				continue
			}
			day := b.CreatedAt.UTC().Format("2006-01-02")
			if !seen[day] {
				seen[day] = true
				keep[b.ID] = true
			}
		}
	}

	remove := make(map[string]bool)
	if p.MaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -p.MaxAgeDays)
		for _, b := range backups {
			if !keep[b.ID] && b.CreatedAt.Before(cutoff) {
				remove[b.ID] = true
			}
		}
	}

	if p.MaxCount > 0 {
		survivors := len(backups) - len(remove)
		trim := func(eligible func(*Backup) bool) {
			for i := len(backups) - 1; i >= p.MinCount && survivors > p.MaxCount; i-- {
				b := backups[i]
				if remove[b.ID] || !eligible(b) {
					continue
				}
				remove[b.ID] = true
				survivors--
			}
		}
		trim(func(b *Backup) bool { return !keep[b.ID] })
		trim(func(*Backup) bool { return true })
	}
	return remove
}
