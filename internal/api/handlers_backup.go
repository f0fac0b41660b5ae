// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/resonance/internal/backup"
)

// BackupList is the body of GET /api/v1/backups.
type BackupList struct {
	Backups []*backup.Backup `json:"backups"`
	Stats   backup.Stats     `json:"stats"`
}

// BackupVerification is the body of GET /api/v1/backups/{backupID}/verify.
type BackupVerification struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) requireBackups(w http.ResponseWriter, r *http.Request) bool {
	if h.deps.Backups == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "backups are not enabled", nil)
		return false
	}
	return true
}

// ListBackups returns every indexed backup.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	respondSuccess(w, r, http.StatusOK, BackupList{Backups: h.deps.Backups.ListBackups(), Stats: h.deps.Backups.Stats()})
}

// CreateBackup runs a manual backup synchronously.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	b, err := h.deps.Backups.CreateBackup(r.Context(), backup.TriggerManual)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, b)
}

// VerifyBackup reports whether a backup file still matches its checksum.
func (h *Handler) VerifyBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	id := chi.URLParam(r, "backupID")
	err := h.deps.Backups.Verify(id)
	if errors.Is(err, backup.ErrBackupNotFound) {
		respondFailure(w, r, err)
		return
	}
	result := BackupVerification{ID: id, Valid: err == nil}
	if err != nil {
		result.Error = err.Error()
	}
	respondSuccess(w, r, http.StatusOK, result)
}
