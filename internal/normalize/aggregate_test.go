// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

func TestAggregateSingleRoundTrip(t *testing.T) {
	t.Parallel()

	in := validSnapshot()
	in.Views, in.Shares, in.Saves, in.Clicks = 700, 4, 6, 12
	in.EngagementRate = models.EngagementRate(in.TotalEngagement(), in.Reach)

	got := Aggregate([]*models.AnalyticsSnapshot{in})
	if got == in {
		t.Fatal("Aggregate must not return its input")
	}
	summed := []struct {
		name      string
		got, want int64
	}{
		{"views", got.Views, in.Views},
		{"likes", got.Likes, in.Likes},
		{"comments", got.Comments, in.Comments},
		{"shares", got.Shares, in.Shares},
		{"saves", got.Saves, in.Saves},
		{"clicks", got.Clicks, in.Clicks},
		{"reach", got.Reach, in.Reach},
		{"impressions", got.Impressions, in.Impressions},
	}
	for _, f := range summed {
		if f.got != f.want {
			t.Errorf("%s = %d, want %d", f.name, f.got, f.want)
		}
	}
	if math.Abs(got.EngagementRate-in.EngagementRate) > 1e-9 {
		t.Errorf("EngagementRate = %v, want %v", got.EngagementRate, in.EngagementRate)
	}
}

func TestAggregateMany(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	a := &models.AnalyticsSnapshot{
		SubjectID: "m1", AccountID: "acc-1", Platform: models.PlatformInstagram, Kind: models.KindPost,
		Likes: 10, Comments: 2, Reach: 300, Impressions: 400, Followers: 100,
		RecordedAt: day1, DataQuality: models.QualityExcellent, DataSource: models.SourceAPI, MetricSet: "full",
	}
	b := &models.AnalyticsSnapshot{
		SubjectID: "m2", AccountID: "acc-1", Platform: models.PlatformInstagram, Kind: models.KindPost,
		Likes: 30, Saves: 8, Reach: 500, Impressions: 750, Followers: 120,
		RecordedAt: day2, DataQuality: models.QualityLimited, DataSource: models.SourceFallback, MetricSet: "reduced",
	}

	got := Aggregate([]*models.AnalyticsSnapshot{a, nil, b})
	if got.Likes != 40 || got.Comments != 2 || got.Saves != 8 || got.Impressions != 1150 {
		t.Errorf("sums = %+v", got)
	}
	if got.Reach != 500 {
		t.Errorf("Reach = %d, want max 500", got.Reach)
	}
	if math.Abs(got.EngagementRate-10) > 1e-9 {
		t.Errorf("EngagementRate = %v, want 50/500 = 10", got.EngagementRate)
	}
	if got.Followers != 120 || !got.RecordedAt.Equal(day2) {
		t.Errorf("latest fields = followers %d recorded %v", got.Followers, got.RecordedAt)
	}
	if got.DataQuality != models.QualityLimited || !got.IsFallback() {
		t.Errorf("quality/source = %s/%s", got.DataQuality, got.DataSource)
	}
	if got.MetricSet != "" {
		t.Errorf("MetricSet = %q, want empty for mixed sets", got.MetricSet)
	}
	if a.Likes != 10 {
		t.Error("Aggregate mutated its input")
	}
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()

	if Aggregate(nil) != nil {
		t.Error("Aggregate(nil) should be nil")
	}
	if Aggregate([]*models.AnalyticsSnapshot{nil}) != nil {
		t.Error("Aggregate of nils should be nil")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	posts := []*models.AnalyticsSnapshot{
		{Likes: 10, Comments: 4, Reach: 100, EngagementRate: 14},
		{Likes: 30, Shares: 2, Reach: 300, EngagementRate: 10.6},
	}
	r := Summarize(posts)
	if r.Posts != 2 {
		t.Fatalf("Posts = %d, want 2", r.Posts)
	}
	if r.AvgLikes != 20 || r.AvgComments != 2 || r.AvgShares != 1 || r.AvgReach != 200 {
		t.Errorf("averages = %+v", r)
	}
	if math.Abs(r.AvgEngagementRate-12.3) > 1e-9 {
		t.Errorf("AvgEngagementRate = %v, want 12.3", r.AvgEngagementRate)
	}
	if r.Totals.Likes != 40 || r.Totals.Reach != 300 {
		t.Errorf("Totals = %+v", r.Totals)
	}

	if empty := Summarize(nil); empty.Posts != 0 || empty.Totals != nil {
		t.Errorf("Summarize(nil) = %+v", empty)
	}
}

func TestLatestPerSubject(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	snaps := []*models.AnalyticsSnapshot{
		{SubjectID: "b", Likes: 1, RecordedAt: day},
		{SubjectID: "a", Likes: 5, RecordedAt: day.AddDate(0, 0, 1)},
		{SubjectID: "a", Likes: 3, RecordedAt: day},
		nil,
		{SubjectID: "b", Likes: 9, RecordedAt: day.AddDate(0, 0, 2)},
	}
	got := LatestPerSubject(snaps)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].SubjectID != "a" || got[0].Likes != 5 || got[1].Likes != 9 {
		t.Errorf("LatestPerSubject() = %+v, %+v", got[0], got[1])
	}
}
