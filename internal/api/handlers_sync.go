// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/models"
)

// defaultHistoryLimit is the sync history page size.
const defaultHistoryLimit = 20

type syncRequest struct {
	AccountID string `json:"account_id" validate:"required,max=128,excludesall=:"`
	SyncType  string `json:"sync_type" validate:"required,sync_type"`
}

// SyncAccepted is the body of an accepted asynchronous trigger.
type SyncAccepted struct {
	AccountID  string          `json:"account_id"`
	SyncType   models.SyncType `json:"sync_type"`
	AcceptedAt time.Time       `json:"accepted_at"`
}

// TriggerSync runs a sync for one account, or for every account when the
// account is "system". With ?async=true the run is dispatched and the
// handler answers 202 at once.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	req := syncRequest{
		AccountID: chi.URLParam(r, "accountID"),
		SyncType:  chi.URLParam(r, "syncType"),
	}
	if !validateRequest(w, r, &req) {
		return
	}
	syncType := models.SyncType(strings.ToUpper(req.SyncType))

	async, err := boolParam(r, "async")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "async must be a boolean", nil)
		return
	}

	if req.AccountID == models.SystemAccountID {
		if syncType == models.SyncInitial {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "initial sync needs a concrete account", nil)
			return
		}
	} else if !h.requireAccount(w, r, req.AccountID) {
		return
	}

	ctx := logging.ContextWithLogger(r.Context(), h.logger.With().
		Str("account_id", req.AccountID).
		Str("sync_type", string(syncType)).
		Logger())

	if async {
		h.dispatchSync(ctx, w, r, req.AccountID, syncType)
		return
	}

	res, err := h.deps.Sync.Trigger(ctx, req.AccountID, syncType)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, res)
}

func (h *Handler) dispatchSync(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string, t models.SyncType) {
	logger := logging.LoggerFromContext(ctx)
	err := h.deps.Sync.Dispatch(ctx, accountID, t, func(res *models.SyncResult, err error) {
		if err == nil && res != nil {
			logger.Info().
				Bool("success", res.Success).
				Int("posts_processed", res.PostsProcessed).
				Int("analytics_updated", res.AnalyticsUpdated).
				Msg("Dispatched sync finished")
		}
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, SyncAccepted{
		AccountID:  accountID,
		SyncType:   t,
		AcceptedAt: time.Now().UTC(),
	})
}

type historyRequest struct {
	Limit int `json:"limit" validate:"min=1,max=100"`
}

// SyncHistory lists the newest sync log entries of an account.
func (h *Handler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	limit, err := intParam(r, "limit", defaultHistoryLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "limit must be an integer", nil)
		return
	}
	if !validateRequest(w, r, &historyRequest{Limit: limit}) {
		return
	}
	if !h.requireAccount(w, r, accountID) {
		return
	}

	entries, err := h.deps.Accounts.ListSyncLog(r.Context(), accountID, limit)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.SyncState{}
	}
	respondSuccess(w, r, http.StatusOK, entries)
}
