// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/resonance/internal/validation"
)

// validateRequest validates v and writes a 400 listing every violation.
// It reports whether the handler may continue.
func validateRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	respondJSON(w, r, http.StatusBadRequest, &Response{
		Status: "error",
		Error: &ErrorBody{
			Code:    CodeValidation,
			Message: verr.Error(),
			Details: verr.Details(),
		},
	})
	return false
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// boolParam parses an optional boolean query parameter.
func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// requireAccount writes 404 for unknown accounts.
func (h *Handler) requireAccount(w http.ResponseWriter, r *http.Request, accountID string) bool {
	if _, err := h.deps.Accounts.GetAccount(r.Context(), accountID); err != nil {
		respondFailure(w, r, err)
		return false
	}
	return true
}
