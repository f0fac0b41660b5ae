// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

// healthCheckTimeout bounds all checks of one /health request.
const healthCheckTimeout = 5 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status        string                `json:"status"` // healthy or degraded
	Version       string                `json:"version,omitempty"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Checks        map[string]string     `json:"checks"`
	LastRuns      map[string]*time.Time `json:"last_runs"`
}

// Health reports liveness, named dependency checks and when each sync
// type last ran. Any failing check turns the response into 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := HealthStatus{
		Status:        "healthy",
		Version:       h.cfg.Version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Checks:        make(map[string]string, len(h.deps.Checks)),
		LastRuns:      make(map[string]*time.Time, 3),
	}
	for _, c := range h.deps.Checks {
		if err := c.Check(ctx); err != nil {
			status.Status = "degraded"
			status.Checks[c.Name] = err.Error()
			h.logger.Warn().Err(err).Str("check", c.Name).Msg("Health check failed")
			continue
		}
		status.Checks[c.Name] = "ok"
	}
	if h.deps.Sync != nil {
		for _, t := range []models.SyncType{models.SyncInitial, models.SyncIncremental, models.SyncDaily} {
			var last *time.Time
			if at := h.deps.Sync.LastRun(t); !at.IsZero() {
				last = &at
			}
			status.LastRuns[string(t)] = last
		}
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondSuccess(w, r, code, status)
}
