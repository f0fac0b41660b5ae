// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/backup"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/middleware"
	"github.com/tomtom215/resonance/internal/storage"
	syncpkg "github.com/tomtom215/resonance/internal/sync"
)

// Error codes returned in the envelope.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeSyncInProgress = "SYNC_IN_PROGRESS"
	CodeBackupBusy     = "BACKUP_IN_PROGRESS"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnauthorized   = "AUTH_ERROR"
	CodeUpstream       = "UPSTREAM_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
)

// Response is the envelope of every JSON body.
type Response struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Error    *ErrorBody  `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Details []map[string]interface{} `json:"details,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// sanitizeLogValue escapes control characters so client input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *Response) {
	resp.Metadata = Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, r, status, &Response{Status: "success", Data: data})
}

// respondError sends an error envelope. err, when set, is logged and never
// shown to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Str("code", code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	respondJSON(w, r, status, &Response{
		Status: "error",
		Error:  &ErrorBody{Code: code, Message: message},
	})
}

// respondFailure maps a domain error to a status and code.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, syncpkg.ErrSyncInProgress):
		respondError(w, r, http.StatusConflict, CodeSyncInProgress, err.Error(), nil)
		return
	case errors.Is(err, storage.ErrAccountNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "account not found", nil)
		return
	case errors.Is(err, backup.ErrBackupInProgress):
		respondError(w, r, http.StatusConflict, CodeBackupBusy, err.Error(), nil)
		return
	case errors.Is(err, backup.ErrBackupNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "backup not found", nil)
		return
	}

	switch apierror.KindOf(err) {
	case apierror.KindValidation:
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case apierror.KindAuth:
		respondError(w, r, http.StatusUnauthorized, CodeUnauthorized, "platform credentials rejected", err)
	case apierror.KindRateLimit:
		if ra := apierror.RetryAfterOf(err); ra > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(ra.Seconds()+0.5)))
		}
		respondError(w, r, http.StatusTooManyRequests, CodeRateLimited, "platform rate limit reached", err)
	case apierror.KindNetwork, apierror.KindAPI:
		respondError(w, r, http.StatusBadGateway, CodeUpstream, "platform request failed", err)
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "internal error", err)
	}
}
