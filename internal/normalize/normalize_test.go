// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

var fixedNow = time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestNormalizeInstagramFullSet(t *testing.T) {
	t.Parallel()

	raw := &models.RawInsights{
		Media:    models.MediaItem{ID: "m1", LikeCount: 48},
		Platform: models.PlatformInstagram,
		Metrics: map[string]int64{
			"reach": 1000, "views": 1500, "likes": 50, "comments": 5, "shares": 3, "saved": 2,
		},
		MetricSet: "full",
		Attempts:  1,
	}

	s, err := newTestNormalizer().Normalize(raw, models.PlatformInstagram, models.KindPost)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	s.AccountID = "acc-1"

	if s.SubjectID != "m1" || s.Kind != models.KindPost {
		t.Errorf("identity = %s/%s", s.SubjectID, s.Kind)
	}
	if s.Reach != 1000 || s.Impressions != 1500 || s.Views != 1500 {
		t.Errorf("reach/impressions/views = %d/%d/%d", s.Reach, s.Impressions, s.Views)
	}
	if s.Likes != 50 || s.Saves != 2 {
		t.Errorf("likes = %d, saves = %d; metric values must win over the media edge", s.Likes, s.Saves)
	}
	if math.Abs(s.EngagementRate-6) > 1e-9 {
		t.Errorf("EngagementRate = %v, want 6", s.EngagementRate)
	}
	if s.DataSource != models.SourceAPI || s.DataQuality != models.QualityExcellent {
		t.Errorf("source/quality = %s/%s", s.DataSource, s.DataQuality)
	}
	if !s.RecordedAt.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("RecordedAt = %v, want start of day", s.RecordedAt)
	}
	if err := Validate(s); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestNormalizeInstagramLikesOnlyFallsBack(t *testing.T) {
	t.Parallel()

	raw := &models.RawInsights{
		Media:     models.MediaItem{ID: "m2", CommentsCount: 5},
		Platform:  models.PlatformInstagram,
		Metrics:   map[string]int64{"likes": 40},
		MetricSet: "likes_only",
		Attempts:  3,
	}

	s, err := newTestNormalizer().Normalize(raw, models.PlatformInstagram, models.KindPost)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	s.AccountID = "acc-1"

	// 45 engagement -> reach 360 -> impressions 540
	if s.Reach != 360 || s.Impressions != 540 {
		t.Errorf("estimated reach/impressions = %d/%d, want 360/540", s.Reach, s.Impressions)
	}
	if !s.IsFallback() {
		t.Error("estimated snapshot must be tagged fallback")
	}
	if s.DataQuality != models.QualityBasic {
		t.Errorf("DataQuality = %s, want BASIC after 3 attempts", s.DataQuality)
	}
	if math.Abs(s.EngagementRate-12.5) > 1e-9 {
		t.Errorf("EngagementRate = %v, want 12.5", s.EngagementRate)
	}
	if err := Validate(s); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestNormalizeFallbackTagging(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	payloads := []map[string]int64{
		{"reach": 500, "likes": 20, "views": 800},
		{"reach": 500, "likes": 20},
		{"likes": 20},
		{"views": 300},
		{},
	}
	for _, m := range payloads {
		raw := &models.RawInsights{Media: models.MediaItem{ID: "m"}, Platform: models.PlatformInstagram, Metrics: m, Attempts: 1}
		s, err := n.Normalize(raw, models.PlatformInstagram, models.KindPost)
		if err != nil {
			t.Fatalf("Normalize(%v) error = %v", m, err)
		}
		_, hadReach := m["reach"]
		estimatedReach := !hadReach && s.Reach > 0
		estimatedImpressions := s.Impressions > 0 && s.Impressions != m["views"]
		if (estimatedReach || estimatedImpressions) != s.IsFallback() {
			t.Errorf("metrics %v: DataSource = %s, reach %d, impressions %d", m, s.DataSource, s.Reach, s.Impressions)
		}
		if s.Impressions > 0 && s.Reach > s.Impressions {
			t.Errorf("metrics %v: reach %d exceeds impressions %d", m, s.Reach, s.Impressions)
		}
	}
}

func TestNormalizeInstagramStory(t *testing.T) {
	t.Parallel()

	raw := &models.RawInsights{
		Media:    models.MediaItem{ID: "s1", MediaType: "STORY"},
		Platform: models.PlatformInstagram,
		Metrics:  map[string]int64{"reach": 200, "replies": 7, "views": 260},
		Attempts: 1,
	}
	s, err := newTestNormalizer().Normalize(raw, models.PlatformInstagram, models.KindStory)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if s.Comments != 7 || s.Kind != models.KindStory || s.Impressions != 260 {
		t.Errorf("story = %+v", s)
	}
}

func TestNormalizeFacebook(t *testing.T) {
	t.Parallel()

	raw := &models.RawInsights{
		Media:    models.MediaItem{ID: "p1", LikeCount: 90, CommentsCount: 14, SharesCount: 7},
		Platform: models.PlatformFacebook,
		Metrics: map[string]int64{
			"post_impressions": 900, "post_impressions_unique": 600, "post_clicks": 35, "post_reactions_like_total": 80,
		},
		MetricSet: "full",
		Attempts:  1,
	}
	s, err := newTestNormalizer().Normalize(raw, models.PlatformFacebook, models.KindPost)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if s.Reach != 600 || s.Impressions != 900 || s.Clicks != 35 {
		t.Errorf("reach/impressions/clicks = %d/%d/%d", s.Reach, s.Impressions, s.Clicks)
	}
	if s.Likes != 80 || s.Comments != 14 || s.Shares != 7 {
		t.Errorf("likes/comments/shares = %d/%d/%d", s.Likes, s.Comments, s.Shares)
	}
	if s.IsFallback() {
		t.Error("complete payload must not be tagged fallback")
	}
}

func TestNormalizeErrors(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	tests := []struct {
		name     string
		raw      *models.RawInsights
		platform models.Platform
		kind     models.SnapshotKind
	}{
		{"nil payload", nil, models.PlatformInstagram, models.KindPost},
		{"platform mismatch", &models.RawInsights{Platform: models.PlatformFacebook}, models.PlatformInstagram, models.KindPost},
		{"account kind", &models.RawInsights{}, models.PlatformInstagram, models.KindAccount},
		{"unknown platform", &models.RawInsights{}, "TIKTOK", models.KindPost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := n.Normalize(tt.raw, tt.platform, tt.kind); err == nil {
				t.Error("Normalize() expected error")
			}
		})
	}

	_, err := n.Normalize(&models.RawInsights{}, "TIKTOK", models.KindPost)
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("error = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestRegisterExtractor(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	n.Register("THREADS", func(raw *models.RawInsights) Counters {
		return Counters{Likes: raw.Metrics["likes"], Reach: raw.Metrics["reach"], Impressions: raw.Metrics["reach"]}
	})
	s, err := n.Normalize(&models.RawInsights{Metrics: map[string]int64{"likes": 5, "reach": 50}}, "THREADS", models.KindPost)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if s.Likes != 5 || math.Abs(s.EngagementRate-10) > 1e-9 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestNormalizeAccount(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	in := &models.AccountInsights{
		ProfileID:     "1784",
		Followers:     5000,
		ProfileVisits: 40,
		Reach:         1300,
		ReachStrategy: "days_28",
		Warnings:      []string{"reach strategy daily failed"},
	}
	s, err := n.NormalizeAccount(in, models.PlatformInstagram)
	if err != nil {
		t.Fatalf("NormalizeAccount() error = %v", err)
	}
	if s.Kind != models.KindAccount || s.Followers != 5000 || s.Reach != 1300 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.DataQuality != models.QualityLimited {
		t.Errorf("DataQuality = %s, want LIMITED (second strategy)", s.DataQuality)
	}
	if s.IsFallback() {
		t.Error("account snapshots are never estimated")
	}

	s, _ = n.NormalizeAccount(&models.AccountInsights{ProfileID: "1784", Followers: 10}, models.PlatformInstagram)
	if s.DataQuality != models.QualityBasic {
		t.Errorf("DataQuality = %s, want BASIC without reach", s.DataQuality)
	}

	if _, err := n.NormalizeAccount(nil, models.PlatformInstagram); err == nil {
		t.Error("NormalizeAccount(nil) expected error")
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		in            Counters
		wantReach     int64
		wantImpr      int64
		wantEstimated bool
	}{
		{"nothing to estimate from", Counters{}, 0, 0, false},
		{"reach from engagement", Counters{Likes: 8, Comments: 2}, 80, 120, true},
		{"impressions from reach", Counters{Reach: 101}, 101, 152, true},
		{"complete", Counters{Likes: 3, Reach: 100, Impressions: 130}, 100, 130, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, estimated := Estimate(tt.in)
			if got.Reach != tt.wantReach || got.Impressions != tt.wantImpr || estimated != tt.wantEstimated {
				t.Errorf("Estimate() = reach %d impressions %d estimated %v, want %d %d %v",
					got.Reach, got.Impressions, estimated, tt.wantReach, tt.wantImpr, tt.wantEstimated)
			}
			if got.Reach > 0 && got.Reach < got.Engagement() {
				t.Errorf("reach %d below engagement %d", got.Reach, got.Engagement())
			}
		})
	}
}

func TestEngagementRateBounds(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	cases := []map[string]int64{
		{"likes": 5000, "reach": 10, "impressions": 10},
		{"likes": 0, "reach": 0},
		{"likes": 1, "reach": 1_000_000, "impressions": 2_000_000},
		{"likes": 30, "comments": 30, "shares": 30, "saved": 30, "reach": 100, "impressions": 100},
	}
	for _, m := range cases {
		s, err := n.Normalize(&models.RawInsights{Metrics: m, Attempts: 1}, models.PlatformInstagram, models.KindPost)
		if err != nil {
			t.Fatalf("Normalize(%v) error = %v", m, err)
		}
		if s.EngagementRate < 0 || s.EngagementRate > 100 {
			t.Errorf("metrics %v: EngagementRate = %v, out of [0,100]", m, s.EngagementRate)
		}
		if s.Reach == 0 && s.EngagementRate != 0 {
			t.Errorf("metrics %v: zero reach must give zero rate", m)
		}
	}
}

func TestQuality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		successes, attempts int
		want                models.DataQuality
	}{
		{1, 1, models.QualityExcellent},
		{9, 10, models.QualityExcellent},
		{3, 4, models.QualityGood},
		{1, 2, models.QualityLimited},
		{1, 3, models.QualityBasic},
		{0, 5, models.QualityBasic},
		{0, 0, models.QualityBasic},
	}
	for _, tt := range tests {
		if got := Quality(tt.successes, tt.attempts); got != tt.want {
			t.Errorf("Quality(%d, %d) = %s, want %s", tt.successes, tt.attempts, got, tt.want)
		}
	}
}
