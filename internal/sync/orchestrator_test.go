// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/graphapi"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/platform"
	"github.com/tomtom215/resonance/internal/ratelimit"
	"github.com/tomtom215/resonance/internal/testinfra"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const unsupportedMsg = "(#100) The value must be a valid insights metric"

func fixedClock() time.Time { return testNow }

func newTestRegistry(t *testing.T, graph *testinfra.GraphServer) *platform.Registry {
	t.Helper()
	l := ratelimit.New(ratelimit.Config{
		Default: ratelimit.Limit{Requests: 1000, Window: time.Hour},
		PollMin: time.Millisecond,
		PollMax: 5 * time.Millisecond,
	})
	t.Cleanup(l.Close)
	deps := platform.Deps{
		Client:  graphapi.NewClient(graphapi.Config{BaseURL: graph.URL()}),
		Limiter: l,
		Strategy: ratelimit.Strategy{
			MaxRetries: 1,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
			Multiplier: 2,
		},
		Now: fixedClock,
	}
	return platform.NewRegistry(platform.NewInstagram(deps), platform.NewFacebook(deps))
}

func newTestOrchestrator(t *testing.T, graph *testinfra.GraphServer, store *fakeStore, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewOrchestrator(store, store, newTestRegistry(t, graph), Config{}, opts...)
}

func seedInstagram(store *fakeStore, id, profileID string) {
	store.addAccount(
		&models.Account{ID: id, Platform: models.PlatformInstagram, ProfileID: profileID},
		&models.Credentials{AccessToken: "EAAB-" + id, Platform: models.PlatformInstagram, ProfileID: profileID},
	)
}

func insights(metrics map[string]int64) map[string]interface{} {
	data := make([]interface{}, 0, len(metrics))
	for name, v := range metrics {
		data = append(data, map[string]interface{}{
			"name":   name,
			"period": "lifetime",
			"values": []interface{}{map[string]interface{}{"value": v}},
		})
	}
	return map[string]interface{}{"data": data}
}

func mediaItem(id string, age time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"id":                 id,
		"media_type":         "IMAGE",
		"media_product_type": "FEED",
		"timestamp":          testNow.Add(-age).Format("2006-01-02T15:04:05-0700"),
	}
}

// scriptThreeItems serves three media items; m3 fails every metric set.
func scriptThreeItems(graph *testinfra.GraphServer) {
	graph.Handle("/1784", testinfra.JSON(map[string]interface{}{"id": "1784"}))
	graph.Handle("/1784/media", testinfra.JSON(map[string]interface{}{
		"data": []interface{}{
			mediaItem("m1", time.Hour),
			mediaItem("m2", 5*time.Hour),
			mediaItem("m3", 30*time.Hour),
		},
	}))
	graph.Handle("/m1/insights", testinfra.JSON(insights(map[string]int64{"reach": 400, "views": 900, "likes": 30, "comments": 5, "saved": 5})))
	graph.Handle("/m2/insights", testinfra.JSON(insights(map[string]int64{"reach": 200, "views": 300, "likes": 10})))
	graph.Handle("/m3/insights", testinfra.GraphError(http.StatusBadRequest, 100, 0, unsupportedMsg))
}

func TestInitialSyncPartialFailure(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptThreeItems(graph)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")

	invalidated := 0
	var completed *models.SyncState
	orch := newTestOrchestrator(t, graph, store,
		WithCacheInvalidator(invalidatorFunc(func(string) int { invalidated++; return 0 })),
		WithCompletionHook(func(_ context.Context, st *models.SyncState, _ *models.SyncResult) { completed = st }),
	)

	res, err := orch.InitialSync(context.Background(), InitialSyncJob{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("InitialSync() error = %v", err)
	}
	if !res.Success {
		t.Errorf("Success = false, errors = %v", res.Errors)
	}
	if res.PostsProcessed != 3 || res.AnalyticsUpdated != 2 || len(res.Errors) != 1 {
		t.Fatalf("result = %d processed / %d updated / %d errors, want 3/2/1", res.PostsProcessed, res.AnalyticsUpdated, len(res.Errors))
	}
	if e := res.Errors[0]; e.ItemID != "m3" || e.AccountID != "acct-1" || e.Kind != string(apierror.KindAPI) {
		t.Errorf("error = %+v, want API_ERROR for m3", e)
	}
	if n := graph.Calls("/m3/insights"); n != len(platform.InstagramMediaSets) {
		t.Errorf("m3 insight requests = %d, want one per metric set", n)
	}

	if len(store.posts) != 3 {
		t.Errorf("posts = %d, want 3", len(store.posts))
	}
	for _, s := range store.snapshots {
		if s.AccountID != "acct-1" || !s.RecordedAt.Equal(models.StartOfDay(testNow)) {
			t.Errorf("snapshot = %+v", s)
		}
	}

	logs := store.syncLogs()
	if len(logs) != 1 || logs[0].Status != models.SyncCompleted || logs[0].SyncType != models.SyncInitial {
		t.Fatalf("sync log = %+v", logs)
	}
	if logs[0].PostsProcessed != 3 || logs[0].AnalyticsUpdated != 2 || len(logs[0].Errors) != 1 {
		t.Errorf("sync log counters = %+v", logs[0])
	}
	if invalidated != 1 {
		t.Errorf("cache invalidations = %d, want 1", invalidated)
	}
	if completed == nil || completed.ID != logs[0].ID {
		t.Errorf("completion hook state = %+v", completed)
	}
}

func TestInitialSyncLookbackStopsListing(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	graph.Handle("/1784", testinfra.JSON(map[string]interface{}{"id": "1784"}))
	graph.Handle("/1784/media", testinfra.JSON(map[string]interface{}{
		"data": []interface{}{mediaItem("new", time.Hour), mediaItem("old", 10*24*time.Hour)},
	}))
	graph.Handle("/new/insights", testinfra.JSON(insights(map[string]int64{"reach": 10, "likes": 1})))
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.InitialSync(context.Background(), InitialSyncJob{AccountID: "acct-1", LookbackDays: 7})
	if err != nil {
		t.Fatalf("InitialSync() error = %v", err)
	}
	if res.PostsProcessed != 1 || graph.Calls("/old/insights") != 0 {
		t.Errorf("processed = %d, old insight calls = %d; want only media inside the lookback", res.PostsProcessed, graph.Calls("/old/insights"))
	}
	if got := graph.Captures()[1].Query.Get("limit"); got != "50" {
		t.Errorf("limit = %q, want the initial page size 50", got)
	}
}

func TestSyncAuthFailsFast(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	graph.Handle("/1784", testinfra.GraphError(http.StatusBadRequest, 190, 463, "Session has expired"))
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: "acct-1", Since: testNow.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v, want result only", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != string(apierror.KindAuth) {
		t.Errorf("errors = %+v, want one AUTH_ERROR", res.Errors)
	}
	if graph.Calls("/1784/media") != 0 {
		t.Error("media listed after token validation failed")
	}
	if logs := store.syncLogs(); len(logs) != 1 || logs[0].Status != models.SyncFailed {
		t.Errorf("sync log = %+v, want one FAILED entry", logs)
	}
}

func TestSyncAuthFailureMasksToken(t *testing.T) {
	const token = "EAABsbCS1iHgBAKZxYz"
	graph := testinfra.NewGraphServer(t)
	graph.Handle("/1784", testinfra.GraphError(http.StatusBadRequest, 190, 463, "Session has expired"))
	store := newFakeStore()
	store.addAccount(
		&models.Account{ID: "acct-1", Platform: models.PlatformInstagram, ProfileID: "1784"},
		&models.Credentials{AccessToken: token, Platform: models.PlatformInstagram, ProfileID: "1784"},
	)
	var buf bytes.Buffer
	orch := newTestOrchestrator(t, graph, store, WithLogger(logging.NewTestLogger(&buf)))

	if _, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: "acct-1", Since: testNow.Add(-time.Hour)}); err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, token) {
		t.Errorf("log output contains the raw token: %s", out)
	}
	if !strings.Contains(out, "EAAB...ZxYz") {
		t.Errorf("log output missing masked token: %s", out)
	}
}

func TestSyncMissingCredentials(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	store := newFakeStore()
	store.addAccount(&models.Account{ID: "acct-1", Platform: models.PlatformInstagram, ProfileID: "1784"}, nil)
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.InitialSync(context.Background(), InitialSyncJob{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("InitialSync() error = %v", err)
	}
	if res.Success || len(res.Errors) != 1 || res.Errors[0].Kind != string(apierror.KindAuth) {
		t.Errorf("result = %+v, want AUTH_ERROR failure", res)
	}
	if len(graph.Captures()) != 0 {
		t.Errorf("requests = %d, want none", len(graph.Captures()))
	}
}

func TestSyncUnknownAccount(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	store := newFakeStore()
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.DailySync(context.Background(), DailySyncJob{AccountID: "missing"})
	if !errors.Is(err, errNotFound) {
		t.Fatalf("error = %v, want account resolution failure", err)
	}
	if res == nil || res.Success || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(store.syncLogs()) != 0 {
		t.Error("sync log written for an unknown account")
	}
}

func TestIncrementalSyncSameDayIdempotent(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptThreeItems(graph)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	orch := newTestOrchestrator(t, graph, store)

	job := IncrementalSyncJob{AccountID: "acct-1", Since: testNow.Add(-48 * time.Hour)}
	first, err := orch.IncrementalSync(context.Background(), job)
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	second, err := orch.IncrementalSync(context.Background(), job)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}

	if first.AnalyticsUpdated != 2 {
		t.Errorf("first run updated = %d, want 2", first.AnalyticsUpdated)
	}
	if second.AnalyticsUpdated != 0 || second.PostsProcessed != 3 {
		t.Errorf("second run = %d processed / %d updated, want 3/0", second.PostsProcessed, second.AnalyticsUpdated)
	}
	for _, id := range []string{"m1", "m2"} {
		if n := store.snapshotsFor(id); n != 1 {
			t.Errorf("%s snapshots = %d, want 1", id, n)
		}
		if n := graph.Calls("/" + id + "/insights"); n != 1 {
			t.Errorf("%s insight requests = %d, want 1", id, n)
		}
	}
}

func TestIncrementalSyncConcurrentInsertSkips(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptThreeItems(graph)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	orch := newTestOrchestrator(t, graph, store)

	job := IncrementalSyncJob{AccountID: "acct-1", Since: testNow.Add(-48 * time.Hour)}
	if _, err := orch.IncrementalSync(context.Background(), job); err != nil {
		t.Fatalf("first run error = %v", err)
	}

	// The existence check misses the first run's rows, so the insert loses the race.
	store.hideExisting = true
	res, err := orch.IncrementalSync(context.Background(), job)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if res.AnalyticsUpdated != 0 {
		t.Errorf("updated = %d, want 0", res.AnalyticsUpdated)
	}
	for _, e := range res.Errors {
		if e.ItemID == "m1" || e.ItemID == "m2" {
			t.Errorf("duplicate insert reported as item error: %+v", e)
		}
	}
	for _, id := range []string{"m1", "m2"} {
		if n := store.snapshotsFor(id); n != 1 {
			t.Errorf("%s snapshots = %d, want 1", id, n)
		}
	}
}

func TestIncrementalSyncResumesFromLastRun(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptThreeItems(graph)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	store.logs = append(store.logs,
		&models.SyncState{AccountID: "acct-1", SyncType: models.SyncInitial, Status: models.SyncCompleted, LastSyncAt: testNow.Add(-2 * time.Hour)},
		&models.SyncState{AccountID: "acct-1", SyncType: models.SyncDaily, Status: models.SyncCompleted, LastSyncAt: testNow.Add(-time.Minute)},
	)
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	// Only m1 is newer than the initial run; the daily entry is ignored.
	if res.PostsProcessed != 1 || res.AnalyticsUpdated != 1 {
		t.Errorf("result = %d processed / %d updated, want 1/1", res.PostsProcessed, res.AnalyticsUpdated)
	}
	if got := graph.Captures()[1].Query.Get("limit"); got != "25" {
		t.Errorf("limit = %q, want the incremental page size 25", got)
	}
}

// scriptManyItems serves n media items, newest first, in pages of 25.
func scriptManyItems(graph *testinfra.GraphServer, n int) {
	graph.Handle("/1784", testinfra.JSON(map[string]interface{}{"id": "1784"}))
	var pages []testinfra.GraphResponse
	for start := 0; start < n; start += 25 {
		var data []interface{}
		for i := start; i < n && i < start+25; i++ {
			id := fmt.Sprintf("m%02d", i)
			data = append(data, mediaItem(id, time.Duration(i+1)*time.Minute))
			graph.Handle("/"+id+"/insights", testinfra.JSON(insights(map[string]int64{"reach": 200, "views": 300, "likes": 10})))
		}
		body := map[string]interface{}{"data": data}
		if start+25 < n {
			cursor := fmt.Sprintf("after-%d", start+25)
			body["paging"] = map[string]interface{}{
				"cursors": map[string]string{"after": cursor},
				"next":    "https://graph.facebook.com/1784/media?after=" + cursor,
			}
		}
		pages = append(pages, testinfra.JSON(body))
	}
	graph.Handle("/1784/media", pages...)
}

func TestIncrementalSyncFetchesEveryPage(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptManyItems(graph, 30)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	orch := newTestOrchestrator(t, graph, store)

	since := testNow.Add(-2 * time.Hour)
	res, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: "acct-1", Since: since})
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if !res.Success || res.PostsProcessed != 30 || res.AnalyticsUpdated != 30 || len(res.Errors) != 0 {
		t.Fatalf("result = success %v, %d processed / %d updated / %d errors, want 30/30/0",
			res.Success, res.PostsProcessed, res.AnalyticsUpdated, len(res.Errors))
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
	if n := graph.Calls("/1784/media"); n != 2 {
		t.Errorf("media requests = %d, want 2 pages", n)
	}

	logs := store.syncLogs()
	if len(logs) != 1 || logs[0].ResumeFrom != nil || !logs[0].LastSyncAt.Equal(testNow) {
		t.Fatalf("sync log = %+v, want a completed run without a held cursor", logs)
	}
}

func TestIncrementalSyncTruncatedHoldsCursor(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptManyItems(graph, 30)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	orch := NewOrchestrator(store, store, newTestRegistry(t, graph), Config{MaxMediaPerRun: 10}, WithClock(fixedClock))

	since := testNow.Add(-2 * time.Hour)
	res, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: "acct-1", Since: since})
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if res.PostsProcessed != 10 || res.AnalyticsUpdated != 10 {
		t.Errorf("result = %d processed / %d updated, want 10/10", res.PostsProcessed, res.AnalyticsUpdated)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one truncation warning", res.Warnings)
	}

	logs := store.syncLogs()
	if len(logs) != 1 || logs[0].ResumeFrom == nil || !logs[0].ResumeFrom.Equal(since) {
		t.Fatalf("sync log = %+v, want resume_from %v", logs, since)
	}
	account, _ := store.GetAccount(context.Background(), "acct-1")
	resume, err := orch.resumePoint(context.Background(), &run{account: account, started: testNow})
	if err != nil {
		t.Fatal(err)
	}
	if !resume.Equal(since) {
		t.Errorf("resume point = %v, want %v", resume, since)
	}
}

func TestIncrementalSyncHotspots(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptThreeItems(graph)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")

	var called []string
	detector := hotspotFunc(func(_ context.Context, accountID string) error {
		called = append(called, accountID)
		return errors.New("broker unavailable")
	})
	orch := newTestOrchestrator(t, graph, store, WithHotspotDetector(detector))

	res, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: "acct-1", Since: testNow.Add(-48 * time.Hour)})
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if len(called) != 1 || called[0] != "acct-1" {
		t.Errorf("hotspot calls = %v", called)
	}
	if !res.Success {
		t.Error("hotspot failure must not fail the run")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want the hotspot failure", res.Warnings)
	}
}

func TestIncrementalSyncSystemNoAccounts(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	store := newFakeStore()
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: models.SystemAccountID})
	if err != nil {
		t.Fatalf("IncrementalSync(system) error = %v", err)
	}
	if !res.Success {
		t.Error("Success = false, want true with zero accounts")
	}
	if res.PostsProcessed != 0 || res.AnalyticsUpdated != 0 || res.AccountsSynced != 0 || len(res.Errors) != 0 {
		t.Errorf("result = %+v, want zero counters and no errors", res)
	}
	if res.Errors == nil {
		t.Error("Errors = nil, want empty slice")
	}
}

func TestIncrementalSyncSystemFanOut(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptThreeItems(graph)
	graph.Handle("/2000", testinfra.GraphError(http.StatusBadRequest, 190, 0, "Invalid OAuth access token"))

	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	seedInstagram(store, "acct-2", "2000")
	store.addAccount(&models.Account{ID: "acct-3", Platform: models.PlatformInstagram, ProfileID: "3000"}, nil)
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.IncrementalSync(context.Background(), IncrementalSyncJob{AccountID: models.SystemAccountID, Since: testNow.Add(-48 * time.Hour)})
	if err != nil {
		t.Fatalf("IncrementalSync(system) error = %v", err)
	}
	if res.AccountsSynced != 2 {
		t.Errorf("AccountsSynced = %d, want 2 (acct-3 has no credentials)", res.AccountsSynced)
	}
	if res.PostsProcessed != 3 || res.AnalyticsUpdated != 2 {
		t.Errorf("counters = %d/%d, want 3/2", res.PostsProcessed, res.AnalyticsUpdated)
	}
	if res.Success {
		t.Error("Success = true, want false when an account run failed")
	}
	// m3 item failure plus the acct-2 auth failure.
	if len(res.Errors) != 2 {
		t.Errorf("errors = %+v, want 2", res.Errors)
	}
	if logs := store.syncLogs(); len(logs) != 2 {
		t.Errorf("sync logs = %d, want one per eligible account", len(logs))
	}
}

func TestIncrementalSyncCancelled(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	scriptThreeItems(graph)
	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")

	ctx, cancel := context.WithCancel(context.Background())
	hook := 0
	orch := NewOrchestrator(store, store, newTestRegistry(t, graph), Config{}, WithClock(fixedClock),
		WithCompletionHook(func(context.Context, *models.SyncState, *models.SyncResult) { hook++ }))

	// Cancel as soon as the first snapshot lands.
	cancelling := &cancelOnCreate{fakeStore: store, cancel: cancel}
	orch.store = cancelling

	res, err := orch.IncrementalSync(ctx, IncrementalSyncJob{AccountID: "acct-1", Since: testNow.Add(-48 * time.Hour)})
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if res.Success {
		t.Error("Success = true, want false after cancellation")
	}
	if res.AnalyticsUpdated != 1 {
		t.Errorf("AnalyticsUpdated = %d, want the partial count 1", res.AnalyticsUpdated)
	}
	if logs := store.syncLogs(); len(logs) != 1 || logs[0].Status != models.SyncFailed {
		t.Errorf("sync log = %+v, want FAILED entry despite cancellation", logs)
	}
	if hook != 1 {
		t.Errorf("completion hook calls = %d, want 1", hook)
	}
}

func TestDailySync(t *testing.T) {
	graph := testinfra.NewGraphServer(t)
	graph.Handle("/1784", testinfra.JSON(map[string]interface{}{"id": "1784", "followers_count": 5100}))
	graph.Handle("/1784/insights", testinfra.JSON(map[string]interface{}{"data": []interface{}{
		map[string]interface{}{"name": "reach", "period": "day", "values": []interface{}{
			map[string]interface{}{"value": 400}, map[string]interface{}{"value": 600},
		}},
		map[string]interface{}{"name": "profile_views", "period": "day", "values": []interface{}{
			map[string]interface{}{"value": 30},
		}},
	}}))

	store := newFakeStore()
	seedInstagram(store, "acct-1", "1784")
	today := models.StartOfDay(testNow)
	post := func(id string, day time.Time, likes, comments int64) *models.AnalyticsSnapshot {
		return &models.AnalyticsSnapshot{SubjectID: id, AccountID: "acct-1", Platform: models.PlatformInstagram, Kind: models.KindPost,
			Likes: likes, Comments: comments, Reach: 100, RecordedAt: day, DataQuality: models.QualityExcellent, DataSource: models.SourceAPI}
	}
	store.snapshots = append(store.snapshots,
		post("p1", today.AddDate(0, 0, -2), 10, 0),
		post("p1", today.AddDate(0, 0, -1), 20, 0),
		post("p2", today.AddDate(0, 0, -1), 5, 5),
		post("p0", today.AddDate(0, 0, -40), 99, 99), // outside the rollup window
		&models.AnalyticsSnapshot{SubjectID: "1784", AccountID: "acct-1", Platform: models.PlatformInstagram, Kind: models.KindAccount,
			Followers: 5000, Reach: 800, RecordedAt: today.AddDate(0, 0, -1), DataQuality: models.QualityGood, DataSource: models.SourceAPI},
	)
	orch := newTestOrchestrator(t, graph, store)

	res, err := orch.DailySync(context.Background(), DailySyncJob{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("DailySync() error = %v", err)
	}
	if !res.Success || res.AnalyticsUpdated != 1 || res.PostsProcessed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Rollup == nil || res.Rollup.Posts != 2 || res.Rollup.Totals.Likes != 25 || res.Rollup.AvgLikes != 12.5 {
		t.Errorf("rollup = %+v", res.Rollup)
	}

	current, _ := store.FindLatestSnapshot(context.Background(), "acct-1", models.KindAccount, today.AddDate(0, 0, 1))
	if current == nil || !current.RecordedAt.Equal(today) {
		t.Fatalf("account snapshot = %+v", current)
	}
	if current.Followers != 5100 || current.Reach != 1000 || current.ProfileVisits != 30 || current.Likes != 25 || current.Comments != 5 {
		t.Errorf("account snapshot counters = %+v", current)
	}
	if math.Abs(current.EngagementRate-3) > 1e-9 {
		t.Errorf("EngagementRate = %v, want 3", current.EngagementRate)
	}

	deltas := map[string]models.GrowthDelta{}
	for _, d := range res.Deltas {
		deltas[d.Metric] = d
	}
	if d := deltas["followers"]; !d.HasPrior || d.Change != 100 || d.Percent != 2 {
		t.Errorf("followers delta = %+v, want +100 (2%%)", d)
	}
	if d := deltas["reach"]; d.Change != 200 || d.Percent != 25 {
		t.Errorf("reach delta = %+v, want +200 (25%%)", d)
	}

	// A second run on the same day reuses the recorded snapshot.
	again, err := orch.DailySync(context.Background(), DailySyncJob{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("second DailySync() error = %v", err)
	}
	if again.AnalyticsUpdated != 0 || len(again.Deltas) != len(res.Deltas) {
		t.Errorf("second run = %+v", again)
	}
	if n := store.snapshotsFor("1784"); n != 2 {
		t.Errorf("account snapshots = %d, want 2 (yesterday and today)", n)
	}
	if n := graph.Calls("/1784/insights"); n != 1 {
		t.Errorf("insight requests = %d, want 1", n)
	}
}

func TestGrowthDeltas(t *testing.T) {
	cur := &models.AnalyticsSnapshot{Followers: 150, Reach: 0}
	prev := &models.AnalyticsSnapshot{Followers: 0, Reach: 40}

	tests := []struct {
		name     string
		previous *models.AnalyticsSnapshot
		metric   string
		want     models.GrowthDelta
	}{
		{"growth from zero", prev, "followers", models.GrowthDelta{Metric: "followers", Previous: 0, Current: 150, Change: 150, Percent: 100, HasPrior: true}},
		{"full drop", prev, "reach", models.GrowthDelta{Metric: "reach", Previous: 40, Current: 0, Change: -40, Percent: -100, HasPrior: true}},
		{"no prior", nil, "followers", models.GrowthDelta{Metric: "followers", Current: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range GrowthDeltas(tt.previous, cur) {
				if d.Metric == tt.metric {
					if d != tt.want {
						t.Errorf("delta = %+v, want %+v", d, tt.want)
					}
					return
				}
			}
			t.Fatalf("metric %s missing", tt.metric)
		})
	}

	if GrowthDeltas(prev, nil) != nil {
		t.Error("GrowthDeltas(nil current) should be nil")
	}
}

type invalidatorFunc func(string) int

func (f invalidatorFunc) Invalidate(accountID string) int { return f(accountID) }

type hotspotFunc func(ctx context.Context, accountID string) error

func (f hotspotFunc) DetectHotspots(ctx context.Context, accountID string) error { return f(ctx, accountID) }

// cancelOnCreate cancels the run context after the first snapshot is stored.
type cancelOnCreate struct {
	*fakeStore
	cancel context.CancelFunc
}

func (c *cancelOnCreate) CreateAnalyticsSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error {
	err := c.fakeStore.CreateAnalyticsSnapshot(ctx, s)
	c.cancel()
	return err
}
