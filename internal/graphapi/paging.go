// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package graphapi

// Cursors are the cursor-based paging tokens.
type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Paging is the paging block of a list reply.
type Paging struct {
	Cursors  Cursors `json:"cursors"`
	Next     string  `json:"next,omitempty"`
	Previous string  `json:"previous,omitempty"`
}

// NextCursor returns the cursor for the following page, or "" on the last page.
func (p *Paging) NextCursor() string {
	if p == nil || p.Next == "" {
		return ""
	}
	return p.Cursors.After
}

// Page is a list reply.
type Page[T any] struct {
	Data   []T     `json:"data"`
	Paging *Paging `json:"paging,omitempty"`
}

// InsightValue is one value of an insights metric.
type InsightValue struct {
	Value   interface{} `json:"value"`
	EndTime string      `json:"end_time,omitempty"`
}

// Insight is one metric of an /insights reply.
type Insight struct {
	Name       string         `json:"name"`
	Period     string         `json:"period"`
	Title      string         `json:"title,omitempty"`
	Values     []InsightValue `json:"values,omitempty"`
	TotalValue *struct {
		Value interface{} `json:"value"`
	} `json:"total_value,omitempty"`
}

// Sum returns the metric total: total_value when present, otherwise the sum
// of every numeric value. Breakdown objects count as zero.
func (in Insight) Sum() int64 {
	if in.TotalValue != nil {
		return toInt64(in.TotalValue.Value)
	}
	var sum int64
	for _, v := range in.Values {
		sum += toInt64(v.Value)
	}
	return sum
}

// Latest returns the last value, for lifetime metrics.
func (in Insight) Latest() int64 {
	if in.TotalValue != nil {
		return toInt64(in.TotalValue.Value)
	}
	if len(in.Values) == 0 {
		return 0
	}
	return toInt64(in.Values[len(in.Values)-1].Value)
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

// InsightsMap flattens an insights reply into name -> total.
func InsightsMap(insights []Insight) map[string]int64 {
	out := make(map[string]int64, len(insights))
	for _, in := range insights {
		out[in.Name] = in.Sum()
	}
	return out
}
