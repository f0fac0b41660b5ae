// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/resonance/internal/comparison"
)

type comparisonRequest struct {
	Days int `json:"days" validate:"min=1,max=90"`
}

// Comparison compares the last ?days days (default 7) of an account's
// post snapshots with the days before them.
func (h *Handler) Comparison(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	days, err := intParam(r, "days", comparison.DefaultDays)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "days must be an integer", nil)
		return
	}
	if !validateRequest(w, r, &comparisonRequest{Days: days}) {
		return
	}
	if !h.requireAccount(w, r, accountID) {
		return
	}

	result, err := h.deps.Analytics.ComparePeriods(r.Context(), accountID, days)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, result)
}

// Anomalies reports anomalies of the account's latest snapshot against its
// recent history.
func (h *Handler) Anomalies(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.requireAccount(w, r, accountID) {
		return
	}

	result, err := h.deps.Analytics.Anomalies(r.Context(), accountID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, result)
}
