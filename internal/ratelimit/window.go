// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

// Key identifies one rate limit window.
type Key struct {
	Platform models.Platform
	Endpoint string
}

func (k Key) String() string {
	return string(k.Platform) + ":" + k.Endpoint
}

// Limit is the capacity of a fixed window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Window is the state of one key's fixed window.
type Window struct {
	Count         int       `json:"count"`
	ResetTime     time.Time `json:"reset_time"`
	LastRequestAt time.Time `json:"last_request_at"`
}

// WindowStore persists fixed windows.
//
// Take consumes one slot of key's window if capacity remains, resetting the
// window first when now has reached its reset time. It always returns the
// resulting window state so callers can compute how long to wait.
type WindowStore interface {
	Take(ctx context.Context, key string, limit Limit, now time.Time) (granted bool, w Window, err error)
	Peek(ctx context.Context, key string) (Window, error)
}

// MemoryStore is an in-process WindowStore.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*Window
}

// NewMemoryStore creates an empty in-process window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*Window)}
}

// Take implements WindowStore.
func (s *MemoryStore) Take(_ context.Context, key string, limit Limit, now time.Time) (bool, Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &Window{}
		s.windows[key] = w
	}
	if !now.Before(w.ResetTime) {
		w.Count = 0
		w.ResetTime = now.Add(limit.Window)
	}

	if w.Count >= limit.Requests {
		return false, *w, nil
	}
	w.Count++
	w.LastRequestAt = now
	return true, *w, nil
}

// Peek implements WindowStore. Unknown keys return a zero window.
func (s *MemoryStore) Peek(_ context.Context, key string) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[key]; ok {
		return *w, nil
	}
	return Window{}, nil
}
