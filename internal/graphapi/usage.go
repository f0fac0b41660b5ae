// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package graphapi

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
)

const (
	HeaderAppUsage             = "X-App-Usage"
	HeaderBusinessUseCaseUsage = "X-Business-Use-Case-Usage"
)

// Usage is the quota consumption reported by the Graph API, in percent.
type Usage struct {
	CallCount           float64 `json:"call_count"`
	TotalTime           float64 `json:"total_time"`
	TotalCPUTime        float64 `json:"total_cputime"`
	RegainAccessMinutes int     `json:"estimated_time_to_regain_access,omitempty"`
}

// Max returns the highest of the three percentages.
func (u Usage) Max() float64 {
	m := u.CallCount
	if u.TotalTime > m {
		m = u.TotalTime
	}
	if u.TotalCPUTime > m {
		m = u.TotalCPUTime
	}
	return m
}

func parseAppUsage(raw string) (Usage, bool) {
	if raw == "" {
		return Usage{}, false
	}
	var u Usage
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return Usage{}, false
	}
	return u, true
}

// parseBusinessUsage folds the per-business usage header into its worst entry.
// Format: {"<business id>": [{"type": "...", "call_count": 28, ...}]}.
func parseBusinessUsage(raw string) (Usage, bool) {
	if raw == "" {
		return Usage{}, false
	}
	var byBusiness map[string][]Usage
	if err := json.Unmarshal([]byte(raw), &byBusiness); err != nil {
		return Usage{}, false
	}

	var worst Usage
	found := false
	for _, entries := range byBusiness {
		for _, u := range entries {
			if !found || u.Max() > worst.Max() {
				worst = u
			}
			if u.RegainAccessMinutes > worst.RegainAccessMinutes {
				worst.RegainAccessMinutes = u.RegainAccessMinutes
			}
			found = true
		}
	}
	return worst, found
}

// observeUsage records the usage headers of a reply.
func (c *Client) observeUsage(platform models.Platform, header http.Header) {
	app, okApp := parseAppUsage(header.Get(HeaderAppUsage))
	biz, okBiz := parseBusinessUsage(header.Get(HeaderBusinessUseCaseUsage))
	if !okApp && !okBiz {
		return
	}

	u := app
	if !okApp || (okBiz && biz.Max() > app.Max()) {
		u = biz
	}

	c.mu.Lock()
	c.usage[platform] = u
	c.mu.Unlock()

	metrics.RecordAppUsage(string(platform), u.Max())
	if c.warnUsage > 0 && u.Max() >= c.warnUsage {
		c.logger.Warn().
			Str("platform", string(platform)).
			Float64("call_count", u.CallCount).
			Float64("total_time", u.TotalTime).
			Float64("total_cputime", u.TotalCPUTime).
			Msg("Graph API usage approaching quota")
	}
}

// LastUsage returns the most recent usage reported for platform.
func (c *Client) LastUsage(platform models.Platform) (Usage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.usage[platform]
	return u, ok
}
