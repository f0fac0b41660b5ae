// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"net/http"
)

// CacheCleared is the body of DELETE /api/v1/cache.
type CacheCleared struct {
	Scope     string `json:"scope"` // account or all
	AccountID string `json:"account_id,omitempty"`
	Cleared   int    `json:"cleared"`
}

// CacheStats returns the analytics cache statistics.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.deps.Cache.Stats())
}

// ClearCache drops the cached results of one account, or of every account
// when account_id is absent.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		n := h.deps.Cache.ClearAll()
		h.logger.Info().Int("cleared", n).Msg("Analytics cache cleared")
		respondSuccess(w, r, http.StatusOK, CacheCleared{Scope: "all", Cleared: n})
		return
	}

	n := h.deps.Cache.Clear(accountID)
	h.logger.Info().Str("account_id", sanitizeLogValue(accountID)).Int("cleared", n).Msg("Analytics cache cleared for account")
	respondSuccess(w, r, http.StatusOK, CacheCleared{Scope: "account", AccountID: accountID, Cleared: n})
}
