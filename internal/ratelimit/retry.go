// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/metrics"
)

// Strategy is a retry policy for ExecuteWithRetry.
type Strategy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the delay, 0.25 = +-25%
	Priority   Priority
}

// DefaultStrategy retries three times starting at one second.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2,
		Jitter:     0.25,
		Priority:   PriorityNormal,
	}
}

// WithPriority returns a copy of s queued at p.
func (s Strategy) WithPriority(p Priority) Strategy {
	s.Priority = p
	return s
}

// Delay returns the backoff before retry number attempt (0-based).
func (s Strategy) Delay(attempt int) time.Duration {
	return s.delay(attempt, rand.Float64())
}

// delay computes the backoff for a uniform sample r in [0, 1).
func (s Strategy) delay(attempt int, r float64) time.Duration {
	mult := s.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(s.BaseDelay) * math.Pow(mult, float64(attempt))
	if s.MaxDelay > 0 && d > float64(s.MaxDelay) {
		d = float64(s.MaxDelay)
	}
	if s.Jitter > 0 {
		d += d * s.Jitter * (2*r - 1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// ExecuteWithRetry runs fn under key's rate limit, retrying classified
// failures. RATE_LIMIT errors wait for their retry-after hint when present,
// otherwise the exponential backoff. NETWORK_ERROR and transient API_ERROR
// back off exponentially. Any other error, or exhausting MaxRetries, returns
// the last error.
func ExecuteWithRetry[T any](ctx context.Context, l *Limiter, key Key, s Strategy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	name := key.String()

	for attempt := 0; ; attempt++ {
		if err := l.Acquire(ctx, key, s.Priority); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			l.recordSuccess(key.Platform)
			return result, nil
		}
		failures := l.recordFailure(key.Platform)

		if !apierror.IsRetryable(err) {
			return zero, err
		}
		if attempt >= s.MaxRetries {
			return zero, fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt+1, err)
		}

		delay := s.Delay(attempt)
		if apierror.IsRateLimit(err) {
			if hint := apierror.RetryAfterOf(err); hint > 0 {
				delay = hint
			}
		}

		kind := string(apierror.KindOf(err))
		metrics.RecordRetry(name, kind)
		l.logger.Warn().
			Err(err).
			Str("key", name).
			Str("kind", kind).
			Int("attempt", attempt+1).
			Int("max_retries", s.MaxRetries).
			Int("consecutive_errors", failures).
			Dur("delay", delay).
			Msg("Retrying request")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: retry interrupted: %w", name, ctx.Err())
		}
	}
}
