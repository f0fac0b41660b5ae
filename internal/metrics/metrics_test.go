// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordGraphRequest(t *testing.T) {
	before := testutil.ToFloat64(GraphRequestsTotal.WithLabelValues("INSTAGRAM", "media_insights", "200"))
	RecordGraphRequest("INSTAGRAM", "media_insights", 200, 120*time.Millisecond)
	after := testutil.ToFloat64(GraphRequestsTotal.WithLabelValues("INSTAGRAM", "media_insights", "200"))
	if after-before != 1 {
		t.Errorf("graph_api_requests_total delta = %v, want 1", after-before)
	}

	before = testutil.ToFloat64(GraphRequestsTotal.WithLabelValues("FACEBOOK", "posts", "transport_error"))
	RecordGraphRequest("FACEBOOK", "posts", 0, time.Second)
	after = testutil.ToFloat64(GraphRequestsTotal.WithLabelValues("FACEBOOK", "posts", "transport_error"))
	if after-before != 1 {
		t.Errorf("transport_error delta = %v, want 1", after-before)
	}
}

func TestRecordRateLimitAcquire(t *testing.T) {
	key := "INSTAGRAM:test_acquire"
	RecordRateLimitAcquire(key, false, 0)
	RecordRateLimitAcquire(key, true, 2*time.Second)

	if got := testutil.ToFloat64(RateLimitAcquired.WithLabelValues(key, "fast")); got != 1 {
		t.Errorf("fast grants = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RateLimitAcquired.WithLabelValues(key, "queued")); got != 1 {
		t.Errorf("queued grants = %v, want 1", got)
	}

	m := &dto.Metric{}
	obs, ok := RateLimitWait.WithLabelValues(key).(interface{ Write(*dto.Metric) error })
	if !ok {
		t.Fatal("histogram does not expose Write")
	}
	if err := obs.Write(m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("wait sample count = %d, want 1", m.GetHistogram().GetSampleCount())
	}
	if m.GetHistogram().GetSampleSum() != 2 {
		t.Errorf("wait sample sum = %v, want 2", m.GetHistogram().GetSampleSum())
	}
}

func TestRecordSyncRun(t *testing.T) {
	before := testutil.ToFloat64(SyncRuns.WithLabelValues("DAILY", "completed"))
	RecordSyncRun("DAILY", true, 3*time.Second)
	if got := testutil.ToFloat64(SyncRuns.WithLabelValues("DAILY", "completed")) - before; got != 1 {
		t.Errorf("completed runs delta = %v, want 1", got)
	}
	if testutil.ToFloat64(SyncLastSuccess.WithLabelValues("DAILY")) == 0 {
		t.Error("last success timestamp not set")
	}

	before = testutil.ToFloat64(SyncRuns.WithLabelValues("INITIAL", "failed"))
	RecordSyncRun("INITIAL", false, time.Second)
	if got := testutil.ToFloat64(SyncRuns.WithLabelValues("INITIAL", "failed")) - before; got != 1 {
		t.Errorf("failed runs delta = %v, want 1", got)
	}
}

func TestRecordCache(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits)
	misses := testutil.ToFloat64(CacheMisses)
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	if got := testutil.ToFloat64(CacheHits) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CacheMisses) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}

	RecordCacheEvictions(3, 7)
	if got := testutil.ToFloat64(CacheEntries); got != 7 {
		t.Errorf("cache_entries = %v, want 7", got)
	}
}

func TestRecordEventPublished(t *testing.T) {
	RecordEventPublished("sync.completed.test", nil)
	RecordEventPublished("sync.completed.test", errors.New("nats down"))

	if got := testutil.ToFloat64(EventsPublished.WithLabelValues("sync.completed.test", "success")); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EventsPublished.WithLabelValues("sync.completed.test", "failure")); got != 1 {
		t.Errorf("failure = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	route := "/api/v1/test-route"
	RecordAPIRequest("GET", route, 200, 5*time.Millisecond)
	RecordAPIRequest("GET", route, 200, 7*time.Millisecond)
	RecordAPIRequest("GET", route, 404, time.Millisecond)

	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", route, "200")); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", route, "404")); got != 1 {
		t.Errorf("404 count = %v, want 1", got)
	}
}

func TestRecordStorageGC(t *testing.T) {
	before := testutil.ToFloat64(StorageGCRuns.WithLabelValues("noop"))
	RecordStorageGC("noop", 10*time.Millisecond)
	if got := testutil.ToFloat64(StorageGCRuns.WithLabelValues("noop")) - before; got != 1 {
		t.Errorf("noop delta = %v, want 1", got)
	}
}
