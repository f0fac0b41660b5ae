// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript atomically resets an expired window and consumes one slot.
// KEYS[1] window hash; ARGV now_ms, limit, window_ms.
// Returns {granted, count, reset_ms, last_ms}.
var takeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset') or '0')
local last = tonumber(redis.call('HGET', KEYS[1], 'last') or '0')

if now >= reset then
  count = 0
  reset = now + window
end

local granted = 0
if count < limit then
  count = count + 1
  last = now
  granted = 1
end

redis.call('HSET', KEYS[1], 'count', count, 'reset', reset, 'last', last)
redis.call('PEXPIREAT', KEYS[1], reset + window)
return {granted, count, reset, last}
`)

// Connect opens a Redis client from a redis:// URL or a bare host:port.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStore shares fixed windows between instances through Redis hashes.
// Windows are computed from the caller's clock, so instances must keep
// their clocks roughly in sync.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store namespacing its keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Take implements WindowStore.
func (s *RedisStore) Take(ctx context.Context, key string, limit Limit, now time.Time) (bool, Window, error) {
	vals, err := takeScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), limit.Requests, limit.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, Window{}, fmt.Errorf("take %s: %w", key, err)
	}
	if len(vals) != 4 {
		return false, Window{}, fmt.Errorf("take %s: unexpected reply length %d", key, len(vals))
	}

	w := Window{
		Count:     int(vals[1]),
		ResetTime: time.UnixMilli(vals[2]),
	}
	if vals[3] > 0 {
		w.LastRequestAt = time.UnixMilli(vals[3])
	}
	return vals[0] == 1, w, nil
}

// Peek implements WindowStore.
func (s *RedisStore) Peek(ctx context.Context, key string) (Window, error) {
	data, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return Window{}, fmt.Errorf("peek %s: %w", key, err)
	}

	var w Window
	if raw, ok := data["count"]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			w.Count = n
		}
	}
	if raw, ok := data["reset"]; ok {
		if ms, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && ms > 0 {
			w.ResetTime = time.UnixMilli(ms)
		}
	}
	if raw, ok := data["last"]; ok {
		if ms, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && ms > 0 {
			w.LastRequestAt = time.UnixMilli(ms)
		}
	}
	return w, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
