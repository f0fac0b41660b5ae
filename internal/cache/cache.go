// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
)

// Defaults.
const (
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Config configures a Cache.
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxEntries      int // 0 = unbounded
	Now             func() time.Time
}

// Key identifies one cached computation.
type Key struct {
	AccountID string
	Platform  models.Platform
	Name      string
	Params    interface{}
}

// String renders the key as account|platform|name[:paramhash].
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.AccountID)
	b.WriteByte('|')
	b.WriteString(string(k.Platform))
	b.WriteByte('|')
	b.WriteString(k.Name)
	if k.Params != nil {
		b.WriteByte(':')
		b.WriteString(hashParams(k.Params))
	}
	return b.String()
}

// hashParams hashes the JSON form of params into a compact suffix.
func hashParams(params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

// accountOf recovers the account id from a rendered key.
func accountOf(key string) string {
	account, _, _ := strings.Cut(key, "|")
	return account
}

// entry is a cached value linked into the recency list.
type entry struct {
	key       string
	account   string
	value     interface{}
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Evictions   int64     `json:"evictions"`
	Entries     int       `json:"entries"`
	HitRate     float64   `json:"hit_rate"` // percent
	TTLSeconds  float64   `json:"ttl_seconds"`
	LastCleanup time.Time `json:"last_cleanup"`
}

// CleanupReport is the outcome of one cleanup pass.
type CleanupReport struct {
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// Cache is a TTL cache with per-account invalidation.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	head     *entry // head.next is most recently used
	tail     *entry
	ttl      time.Duration
	interval time.Duration
	capacity int
	now      func() time.Time

	hits        int64
	misses      int64
	evictions   int64
	lastCleanup time.Time
}

// New creates a cache. Zero values in cfg take the defaults.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Cache{
		entries:  make(map[string]*entry),
		head:     &entry{},
		tail:     &entry{},
		ttl:      cfg.TTL,
		interval: cfg.CleanupInterval,
		capacity: cfg.MaxEntries,
		now:      cfg.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// TTL returns the default time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key. Expired entries are removed
// and reported as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.remove(e)
		c.evictions++
		c.misses++
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	c.moveToFront(e)
	c.hits++
	metrics.RecordCacheLookup(true)
	return e.value, true
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
func (c *Cache) Set(key Key, value interface{}, ttl time.Duration) {
	c.SetString(key.String(), value, ttl)
}

// SetString stores value under a pre-rendered key.
func (c *Cache) SetString(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	if c.capacity > 0 && len(c.entries) >= c.capacity {
		if oldest := c.tail.prev; oldest != c.head {
			c.remove(oldest)
			c.evictions++
		}
	}
	e := &entry{key: key, account: accountOf(key), value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)
}

// Delete removes one key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.remove(e)
		c.evictions++
	}
}

// Clear removes every entry of accountID and returns how many were removed.
// An empty accountID clears everything.
func (c *Cache) Clear(accountID string) int {
	if accountID == "" {
		return c.ClearAll()
	}

	c.mu.Lock()
	removed := 0
	for _, e := range c.entries {
		if e.account == accountID {
			c.remove(e)
			removed++
		}
	}
	c.evictions += int64(removed)
	remaining := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		metrics.RecordCacheEvictions(removed, remaining)
		logging.Debug().Str("account_id", accountID).Int("removed", removed).Msg("Cleared account cache")
	}
	return removed
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() int {
	c.mu.Lock()
	removed := len(c.entries)
	c.entries = make(map[string]*entry)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.evictions += int64(removed)
	c.mu.Unlock()

	metrics.RecordCacheEvictions(removed, 0)
	return removed
}

// Cleanup drops expired entries and reports the valid and expired counts.
func (c *Cache) Cleanup() CleanupReport {
	c.mu.Lock()
	now := c.now()
	var report CleanupReport
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if !now.Before(e.expiresAt) {
			c.remove(e)
			report.Expired++
		} else {
			report.Valid++
		}
		e = prev
	}
	c.evictions += int64(report.Expired)
	c.lastCleanup = now
	c.mu.Unlock()

	metrics.RecordCacheEvictions(report.Expired, report.Valid)
	return report
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Entries:     len(c.entries),
		TTLSeconds:  c.ttl.Seconds(),
		LastCleanup: c.lastCleanup,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total) * 100
	}
	return s
}

// Serve runs periodic cleanup until ctx is cancelled.
// It implements suture.Service.
func (c *Cache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logger := logging.WithComponent("cache")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report := c.Cleanup()
			if report.Expired > 0 {
				logger.Debug().Int("valid", report.Valid).Int("expired", report.Expired).Msg("Cache cleanup")
			}
		}
	}
}

func (c *Cache) String() string {
	return "cache-cleanup"
}

// Recency list helpers, called with mu held.

func (c *Cache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *Cache) remove(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.entries, e.key)
}
