// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package normalize

import (
	"sort"

	"github.com/tomtom215/resonance/internal/models"
)

var qualityRank = map[models.DataQuality]int{
	models.QualityBasic:     0,
	models.QualityLimited:   1,
	models.QualityGood:      2,
	models.QualityExcellent: 3,
}

// Aggregate folds snapshots into one. Counters are summed, reach is the
// maximum across the set and the engagement rate is recomputed from the
// totals. Identity fields and the account counters come from the latest
// snapshot; quality is the worst of the set. Returns nil for no input.
func Aggregate(snapshots []*models.AnalyticsSnapshot) *models.AnalyticsSnapshot {
	var out *models.AnalyticsSnapshot
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		if out == nil {
			c := *s
			c.RawPayload = nil
			out = &c
			continue
		}

		out.Views += s.Views
		out.Likes += s.Likes
		out.Comments += s.Comments
		out.Shares += s.Shares
		out.Saves += s.Saves
		out.Clicks += s.Clicks
		out.Impressions += s.Impressions
		out.Reach = max(out.Reach, s.Reach)

		if s.RecordedAt.After(out.RecordedAt) {
			out.SubjectID = s.SubjectID
			out.AccountID = s.AccountID
			out.RecordedAt = s.RecordedAt
			out.Followers = s.Followers
			out.ProfileVisits = s.ProfileVisits
		}
		if qualityRank[s.DataQuality] < qualityRank[out.DataQuality] {
			out.DataQuality = s.DataQuality
		}
		if s.IsFallback() {
			out.DataSource = models.SourceFallback
		}
		if s.MetricSet != out.MetricSet {
			out.MetricSet = ""
		}
	}
	if out == nil {
		return nil
	}
	out.EngagementRate = models.EngagementRate(out.TotalEngagement(), out.Reach)
	return out
}

// Summarize aggregates post snapshots and computes per-post averages.
func Summarize(posts []*models.AnalyticsSnapshot) models.Rollup {
	r := models.Rollup{Totals: Aggregate(posts)}
	var reach int64
	var rate float64
	for _, s := range posts {
		if s == nil {
			continue
		}
		r.Posts++
		reach += s.Reach
		rate += s.EngagementRate
	}
	if r.Posts == 0 {
		return r
	}
	n := float64(r.Posts)
	r.AvgLikes = float64(r.Totals.Likes) / n
	r.AvgComments = float64(r.Totals.Comments) / n
	r.AvgShares = float64(r.Totals.Shares) / n
	r.AvgSaves = float64(r.Totals.Saves) / n
	r.AvgReach = float64(reach) / n
	r.AvgEngagementRate = rate / n
	return r
}

// LatestPerSubject keeps the most recent snapshot of every subject.
// Post insights are lifetime totals, so summing several days of the same
// post would count it more than once. The result is ordered by subject.
func LatestPerSubject(snapshots []*models.AnalyticsSnapshot) []*models.AnalyticsSnapshot {
	latest := make(map[string]*models.AnalyticsSnapshot, len(snapshots))
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		if cur, ok := latest[s.SubjectID]; !ok || s.RecordedAt.After(cur.RecordedAt) {
			latest[s.SubjectID] = s
		}
	}
	out := make([]*models.AnalyticsSnapshot, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}
