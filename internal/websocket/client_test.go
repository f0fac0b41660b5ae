// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// feedServer upgrades every request into a client of h.
func feedServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(h, conn)
		if err := h.Register(c); err != nil {
			_ = conn.Close()
			return
		}
		c.Start()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestClientReceivesBroadcastJSON(t *testing.T) {
	h := NewHub()
	runHub(t, h)
	conn := dial(t, feedServer(t, h))
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast("sync_completed", map[string]interface{}{"account_id": "acct-1", "success": true})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Type != "sync_completed" || got.Data["account_id"] != "acct-1" || got.Data["success"] != true {
		t.Errorf("frame = %+v", got)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	h := NewHub()
	runHub(t, h)
	conn := dial(t, feedServer(t, h))
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = conn.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHubShutdownSendsCloseFrame(t *testing.T) {
	h := NewHub()
	cancel := runHub(t, h)
	conn := dial(t, feedServer(t, h))
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want going-away close", err)
	}
}
