// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package normalize

import (
	"fmt"

	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
)

// Anomaly thresholds.
const (
	MinHistoryPoints = 3
	SpikeMultiplier  = 3.0
	DropMultiplier   = 0.5
	DropMinimumMean  = 10.0 // drops below this baseline are noise
)

// Direction is the sign of an anomaly.
type Direction string

const (
	DirectionSpike Direction = "spike"
	DirectionDrop  Direction = "drop"
)

// Severity grows with the number of simultaneous findings.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Finding is one metric outside its historical band.
type Finding struct {
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction"`
	Current   float64   `json:"current"`
	Mean      float64   `json:"mean"`
	Ratio     float64   `json:"ratio"`
	Message   string    `json:"message"`
}

// AnomalyReport is the outcome of DetectAnomalies.
type AnomalyReport struct {
	HasAnomalies  bool      `json:"has_anomalies"`
	Findings      []Finding `json:"findings"`
	Severity      Severity  `json:"severity"`
	HistoryPoints int       `json:"history_points"`
}

type trackedMetric struct {
	name  string
	value func(*models.AnalyticsSnapshot) float64
}

var trackedMetrics = []trackedMetric{
	{"reach", func(s *models.AnalyticsSnapshot) float64 { return float64(s.Reach) }},
	{"impressions", func(s *models.AnalyticsSnapshot) float64 { return float64(s.Impressions) }},
	{"views", func(s *models.AnalyticsSnapshot) float64 { return float64(s.Views) }},
	{"likes", func(s *models.AnalyticsSnapshot) float64 { return float64(s.Likes) }},
	{"comments", func(s *models.AnalyticsSnapshot) float64 { return float64(s.Comments) }},
	{"shares", func(s *models.AnalyticsSnapshot) float64 { return float64(s.Shares) }},
	{"saves", func(s *models.AnalyticsSnapshot) float64 { return float64(s.Saves) }},
	{"engagement_rate", func(s *models.AnalyticsSnapshot) float64 { return s.EngagementRate }},
}

// DetectAnomalies compares current against the mean of history, metric by
// metric. Fewer than MinHistoryPoints history entries yield an empty report.
func DetectAnomalies(current *models.AnalyticsSnapshot, history []*models.AnalyticsSnapshot) AnomalyReport {
	points := make([]*models.AnalyticsSnapshot, 0, len(history))
	for _, h := range history {
		if h != nil {
			points = append(points, h)
		}
	}
	report := AnomalyReport{Findings: []Finding{}, Severity: SeverityLow, HistoryPoints: len(points)}
	if current == nil || len(points) < MinHistoryPoints {
		return report
	}

	for _, m := range trackedMetrics {
		var sum float64
		for _, h := range points {
			sum += m.value(h)
		}
		mean := sum / float64(len(points))
		if mean <= 0 {
			continue
		}
		cur := m.value(current)
		ratio := cur / mean

		switch {
		case cur > SpikeMultiplier*mean:
			report.Findings = append(report.Findings, Finding{
				Metric: m.name, Direction: DirectionSpike, Current: cur, Mean: mean, Ratio: ratio,
				Message: fmt.Sprintf("%s is %.1fx its %d-point average", m.name, ratio, len(points)),
			})
		case mean >= DropMinimumMean && cur < DropMultiplier*mean:
			report.Findings = append(report.Findings, Finding{
				Metric: m.name, Direction: DirectionDrop, Current: cur, Mean: mean, Ratio: ratio,
				Message: fmt.Sprintf("%s fell to %.0f%% of its %d-point average", m.name, ratio*100, len(points)),
			})
		}
	}

	report.HasAnomalies = len(report.Findings) > 0
	report.Severity = severityFor(len(report.Findings))
	for _, f := range report.Findings {
		metrics.RecordAnomaly(f.Metric, string(f.Direction))
	}
	return report
}

func severityFor(findings int) Severity {
	switch {
	case findings == 0:
		return SeverityLow
	case findings <= 2:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}
