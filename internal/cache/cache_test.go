// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/resonance/internal/models"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(clock *fakeClock, maxEntries int) *Cache {
	return New(Config{TTL: 30 * time.Minute, MaxEntries: maxEntries, Now: clock.Now})
}

func TestCacheBasicOperations(t *testing.T) {
	c := newTestCache(newFakeClock(), 0)

	key := Key{AccountID: "acc-1", Name: "comparison", Params: map[string]int{"days": 7}}
	c.Set(key, "report", 0)

	value, ok := c.Get(key.String())
	if !ok || value != "report" {
		t.Errorf("Get() = %v, %v", value, ok)
	}
	if _, ok := c.Get("acc-2||comparison"); ok {
		t.Error("unknown key should miss")
	}

	c.Set(key, "report-2", 0)
	if value, _ := c.Get(key.String()); value != "report-2" {
		t.Errorf("overwrite: Get() = %v", value)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheDefaults(t *testing.T) {
	c := New(Config{})
	if c.TTL() != 30*time.Minute {
		t.Errorf("TTL() = %v, want 30m", c.TTL())
	}
}

func TestCacheLazyExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, 0)

	c.Set(Key{AccountID: "acc-1", Name: "default"}, 1, 0)
	c.Set(Key{AccountID: "acc-1", Name: "short"}, 2, time.Minute)

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get("acc-1||short"); ok {
		t.Error("short entry should have expired")
	}
	if _, ok := c.Get("acc-1||default"); !ok {
		t.Error("default entry should still be valid")
	}

	clock.Advance(29 * time.Minute)
	if _, ok := c.Get("acc-1||default"); ok {
		t.Error("default entry should expire after 30 minutes")
	}
	if c.Len() != 0 {
		t.Errorf("expired entries should be dropped on read, Len() = %d", c.Len())
	}
}

func TestCacheClearAccount(t *testing.T) {
	c := newTestCache(newFakeClock(), 0)

	for _, account := range []string{"acc-1", "acc-2"} {
		for _, days := range []int{7, 30} {
			c.Set(Key{AccountID: account, Platform: models.PlatformInstagram, Name: "comparison", Params: days}, days, 0)
		}
		c.Set(Key{AccountID: account, Name: "anomalies"}, "report", 0)
	}

	if removed := c.Clear("acc-1"); removed != 3 {
		t.Errorf("Clear(acc-1) removed %d, want 3", removed)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3 entries of acc-2", c.Len())
	}
	if _, ok := c.Get(Key{AccountID: "acc-2", Name: "anomalies"}.String()); !ok {
		t.Error("acc-2 entries must survive a selective clear")
	}

	if removed := c.Clear(""); removed != 3 {
		t.Errorf("Clear(\"\") removed %d, want 3", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after full clear", c.Len())
	}
}

func TestCacheCleanup(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, 0)

	c.Set(Key{AccountID: "a", Name: "1"}, 1, time.Minute)
	c.Set(Key{AccountID: "a", Name: "2"}, 2, time.Minute)
	c.Set(Key{AccountID: "b", Name: "3"}, 3, time.Hour)

	clock.Advance(5 * time.Minute)
	report := c.Cleanup()
	if report.Valid != 1 || report.Expired != 2 {
		t.Errorf("Cleanup() = %+v, want {Valid:1 Expired:2}", report)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if stats := c.Stats(); !stats.LastCleanup.Equal(clock.Now()) || stats.Evictions != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestCacheCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(newFakeClock(), 2)

	c.SetString("a|x|1", 1, 0)
	c.SetString("a|x|2", 2, 0)
	c.Get("a|x|1") // 2 is now least recently used
	c.SetString("a|x|3", 3, 0)

	if _, ok := c.Get("a|x|2"); ok {
		t.Error("least recently used entry should be evicted")
	}
	for _, k := range []string{"a|x|1", "a|x|3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be present", k)
		}
	}
}

func TestCacheStats(t *testing.T) {
	c := newTestCache(newFakeClock(), 0)
	c.SetString("a||k", 1, 0)
	c.Get("a||k")
	c.Get("a||k")
	c.Get("a||missing")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.HitRate < 66.6 || stats.HitRate > 66.7 {
		t.Errorf("HitRate = %v, want 66.67", stats.HitRate)
	}
	if stats.TTLSeconds != 1800 {
		t.Errorf("TTLSeconds = %v", stats.TTLSeconds)
	}
}

func TestKeyString(t *testing.T) {
	a := Key{AccountID: "acc-1", Platform: models.PlatformFacebook, Name: "comparison", Params: map[string]int{"days": 7}}
	b := Key{AccountID: "acc-1", Platform: models.PlatformFacebook, Name: "comparison", Params: map[string]int{"days": 7}}
	c := Key{AccountID: "acc-1", Platform: models.PlatformFacebook, Name: "comparison", Params: map[string]int{"days": 30}}

	if a.String() != b.String() {
		t.Error("equal keys must render identically")
	}
	if a.String() == c.String() {
		t.Error("different params must render differently")
	}
	if got := (Key{AccountID: "acc-1", Name: "anomalies"}).String(); got != "acc-1||anomalies" {
		t.Errorf("String() = %q", got)
	}
	if accountOf(a.String()) != "acc-1" {
		t.Errorf("accountOf(%q) = %q", a.String(), accountOf(a.String()))
	}
}

func TestCacheServeStopsOnCancel(t *testing.T) {
	c := New(Config{CleanupInterval: 5 * time.Millisecond, TTL: time.Millisecond})
	c.SetString("a||k", 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for c.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Error("Serve should clean up expired entries")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := newTestCache(newFakeClock(), 50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("acc-%d||k%d", id, j%20)
				c.SetString(key, j, 0)
				c.Get(key)
				if j%50 == 0 {
					c.Clear(fmt.Sprintf("acc-%d", id))
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}
