// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/logging"
)

// broadcastBuffer is the number of messages queued before Broadcast drops.
const broadcastBuffer = 256

// ErrHubStopped is returned by Register while the hub is not serving.
var ErrHubStopped = errors.New("websocket hub is not running")

// Message is one frame of the live feed.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans feed messages out to connected clients.
type Hub struct {
	broadcast chan Message
	logger    zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	running bool
}

// NewHub creates a stopped hub.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan Message, broadcastBuffer),
		clients:   make(map[*Client]struct{}),
		logger:    logging.WithComponent("websocket-hub"),
	}
}

// Serve implements suture.Service. Clients connected when ctx ends are
// closed; a restarted hub accepts new ones.
func (h *Hub) Serve(ctx context.Context) error {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		// Shutdown wins over pending broadcasts.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// String implements fmt.Stringer.
func (h *Hub) String() string {
	return "websocket-hub"
}

// Register adds c to the broadcast set.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrHubStopped
	}
	h.clients[c] = struct{}{}
	h.logger.Info().Uint64("client_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client connected")
	return nil
}

// Unregister removes c and closes its send queue. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Info().Uint64("client_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client disconnected")
}

// Broadcast queues a message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: msgType, Data: data}:
	default:
		h.logger.Warn().Str("message_type", msgType).Msg("broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// sortedClients returns the clients in connection order. Callers hold mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// broadcastToClients delivers msg in connection order. A client whose
// queue is full is disconnected.
func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sortedClients() {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn().Uint64("client_id", c.id).Msg("websocket client too slow, disconnected")
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	h.running = false
	clients := h.sortedClients()
	for _, c := range clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "context_deadline"
	}
	h.logger.Info().Str("reason", reason).Int("clients_closed", len(clients)).Msg("websocket hub stopped")
}
