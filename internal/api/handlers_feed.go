// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/tomtom215/resonance/internal/websocket"
)

// EventFeed upgrades the request into a live feed subscription.
func (h *Handler) EventFeed(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feed == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "event feed unavailable", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkFeedOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Debug().Err(err).Msg("event feed upgrade failed")
		return
	}

	client := ws.NewClient(h.deps.Feed, conn)
	if err := h.deps.Feed.Register(client); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed not running"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	client.Start()
}

// checkFeedOrigin admits browsers from the configured CORS origins.
// Browsers always send Origin on WebSocket handshakes, so a missing one is
// rejected.
func (h *Handler) checkFeedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		h.logger.Warn().Msg("event feed rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.corsOrigins() {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn().Str("origin", sanitizeLogValue(origin)).Msg("event feed rejected from unauthorized origin")
	return false
}
