// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package comparison

import (
	"fmt"
	"math"

	"github.com/tomtom215/resonance/internal/models"
)

// ChangeThresholdPercent is the smallest percent change counted as a move.
const ChangeThresholdPercent = 1.0

// Trend is the overall direction of a comparison.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Direction values of MetricChange.
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStable = "stable"
)

// MetricChange compares one metric across two snapshots.
type MetricChange struct {
	Metric         string  `json:"metric"`
	Current        float64 `json:"current"`
	Previous       float64 `json:"previous"`
	AbsoluteChange float64 `json:"absolute_change"`
	ChangePercent  float64 `json:"change_percent"`
	Direction      string  `json:"direction"`
	Tracked        bool    `json:"tracked"` // votes on the overall trend
}

// ComparisonResult is the outcome of Compare.
type ComparisonResult struct {
	Metrics   []MetricChange `json:"metrics"`
	Trend     Trend          `json:"trend"`
	Improving int            `json:"improving"` // tracked metrics up
	Declining int            `json:"declining"` // tracked metrics down
	Insights  []string       `json:"insights"`
}

// Metric returns the change for name.
func (r ComparisonResult) Metric(name string) (MetricChange, bool) {
	for _, m := range r.Metrics {
		if m.Metric == name {
			return m, true
		}
	}
	return MetricChange{}, false
}

type metricDef struct {
	name    string
	tracked bool
	value   func(*models.AnalyticsSnapshot) float64
}

var metricDefs = []metricDef{
	{"engagement_rate", true, func(s *models.AnalyticsSnapshot) float64 { return s.EngagementRate }},
	{"reach", true, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Reach) }},
	{"impressions", true, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Impressions) }},
	{"likes", false, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Likes) }},
	{"comments", false, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Comments) }},
	{"shares", false, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Shares) }},
	{"saves", false, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Saves) }},
	{"views", false, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Views) }},
	{"followers", false, func(s *models.AnalyticsSnapshot) float64 { return float64(s.Followers) }},
}

// Compare computes per-metric changes from previous to current and votes
// on the trend. A nil snapshot is treated as all zeros.
func Compare(current, previous *models.AnalyticsSnapshot) ComparisonResult {
	if current == nil {
		current = &models.AnalyticsSnapshot{}
	}
	if previous == nil {
		previous = &models.AnalyticsSnapshot{}
	}

	result := ComparisonResult{Metrics: make([]MetricChange, 0, len(metricDefs))}
	for _, def := range metricDefs {
		m := compareMetric(def.name, def.value(current), def.value(previous))
		m.Tracked = def.tracked
		result.Metrics = append(result.Metrics, m)
		if !def.tracked {
			continue
		}
		switch m.Direction {
		case DirectionUp:
			result.Improving++
		case DirectionDown:
			result.Declining++
		}
	}

	result.Trend = voteTrend(result.Improving, result.Declining)
	result.Insights = insights(result)
	return result
}

func compareMetric(name string, current, previous float64) MetricChange {
	pct := percentChange(current, previous)
	return MetricChange{
		Metric:         name,
		Current:        current,
		Previous:       previous,
		AbsoluteChange: current - previous,
		ChangePercent:  pct,
		Direction:      direction(pct),
	}
}

// percentChange is rounded to two decimals. Growth from zero counts as 100%.
func percentChange(current, previous float64) float64 {
	var pct float64
	switch {
	case previous != 0:
		pct = (current - previous) / math.Abs(previous) * 100
	case current > 0:
		pct = 100
	case current < 0:
		pct = -100
	}
	return math.Round(pct*100) / 100
}

func direction(pct float64) string {
	switch {
	case pct >= ChangeThresholdPercent:
		return DirectionUp
	case pct <= -ChangeThresholdPercent:
		return DirectionDown
	default:
		return DirectionStable
	}
}

func voteTrend(improving, declining int) Trend {
	switch {
	case improving >= 2:
		return TrendImproving
	case declining >= 2:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func insights(r ComparisonResult) []string {
	out := []string{}
	for _, m := range r.Metrics {
		if !m.Tracked || m.Direction == DirectionStable {
			continue
		}
		verb := "rose"
		if m.Direction == DirectionDown {
			verb = "fell"
		}
		out = append(out, fmt.Sprintf("%s %s %.1f%%", m.Metric, verb, math.Abs(m.ChangePercent)))
	}
	return out
}
