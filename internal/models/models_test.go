// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package models

import (
	"math"
	"testing"
	"time"
)

func TestEngagementRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		engagement int64
		reach      int64
		want       float64
	}{
		{"zero reach", 50, 0, 0},
		{"zero engagement", 0, 100, 0},
		{"six percent", 60, 1000, 6},
		{"engagement above reach is not capped", 500, 100, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EngagementRate(tt.engagement, tt.reach)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EngagementRate(%d, %d) = %v, want %v", tt.engagement, tt.reach, got, tt.want)
			}
		})
	}
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*3600)
	in := time.Date(2026, 3, 10, 1, 30, 0, 0, loc) // 2026-03-09 23:30 UTC
	got := StartOfDay(in)
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfDay() = %v, want %v", got, want)
	}
}

func TestQualityFromRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ratio float64
		want  DataQuality
	}{
		{1, QualityExcellent},
		{0.9, QualityExcellent},
		{0.75, QualityGood},
		{0.5, QualityLimited},
		{0.1, QualityBasic},
		{0, QualityBasic},
	}
	for _, tt := range tests {
		if got := QualityFromRatio(tt.ratio); got != tt.want {
			t.Errorf("QualityFromRatio(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestParsePlatform(t *testing.T) {
	t.Parallel()

	if p, err := ParsePlatform(" instagram "); err != nil || p != PlatformInstagram {
		t.Errorf("ParsePlatform(instagram) = %v, %v", p, err)
	}
	if _, err := ParsePlatform("myspace"); err == nil {
		t.Error("ParsePlatform(myspace) expected error")
	}
}

func TestCredentialsExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if (&Credentials{}).Expired(now) {
		t.Error("credentials without expiry must not be expired")
	}
	if !(&Credentials{ExpiresAt: &past}).Expired(now) {
		t.Error("past expiry must be expired")
	}
	if (&Credentials{ExpiresAt: &future}).Expired(now) {
		t.Error("future expiry must not be expired")
	}
}

func TestSyncResultErrorStrings(t *testing.T) {
	t.Parallel()

	r := &SyncResult{Errors: []SyncError{
		{AccountID: "acc-1", ItemID: "m-3", Kind: "API_ERROR", Message: "all metric sets failed"},
		{Message: "bare"},
	}}
	got := r.ErrorStrings()
	if got[0] != "acc-1/m-3 API_ERROR: all metric sets failed" {
		t.Errorf("ErrorStrings()[0] = %q", got[0])
	}
	if got[1] != "bare" {
		t.Errorf("ErrorStrings()[1] = %q", got[1])
	}
	if (&SyncResult{}).ErrorStrings() != nil {
		t.Error("empty result should flatten to nil")
	}
}

func TestSnapshotQueryMatches(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s := &AnalyticsSnapshot{SubjectID: "m1", AccountID: "acc-1", Kind: KindStory, RecordedAt: day}

	tests := []struct {
		name string
		q    SnapshotQuery
		want bool
	}{
		{"empty query", SnapshotQuery{}, true},
		{"account", SnapshotQuery{AccountID: "acc-1"}, true},
		{"other account", SnapshotQuery{AccountID: "acc-2"}, false},
		{"subject", SnapshotQuery{SubjectID: "m2"}, false},
		{"post kinds", SnapshotQuery{Kinds: PostKinds}, true},
		{"account kind", SnapshotQuery{Kinds: []SnapshotKind{KindAccount}}, false},
		{"since inclusive", SnapshotQuery{Since: day}, true},
		{"until exclusive", SnapshotQuery{Until: day}, false},
		{"inside range", SnapshotQuery{Since: day.AddDate(0, 0, -1), Until: day.AddDate(0, 0, 1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Matches(s); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
