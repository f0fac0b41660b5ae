// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package ratelimit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
)

// ErrClosed is returned to waiters still queued when the limiter shuts down.
var ErrClosed = errors.New("rate limiter closed")

// storeTimeout bounds a single WindowStore call made by a drainer.
const storeTimeout = 2 * time.Second

// Config holds the window capacities and drainer poll bounds.
type Config struct {
	Default   Limit
	Platforms map[models.Platform]Limit
	Endpoints map[string]Limit // keyed by Key.String()

	// PollMin and PollMax bound how long a drainer sleeps between attempts
	// on a saturated window.
	PollMin time.Duration
	PollMax time.Duration
}

// DefaultConfig returns Meta's documented 200 calls per hour for every key.
func DefaultConfig() Config {
	return Config{
		Default: Limit{Requests: 200, Window: time.Hour},
		PollMin: 50 * time.Millisecond,
		PollMax: time.Second,
	}
}

// LimitFor resolves the capacity of key: endpoint override, then platform, then default.
func (c Config) LimitFor(key Key) Limit {
	if l, ok := c.Endpoints[key.String()]; ok && l.Requests > 0 {
		return l
	}
	if l, ok := c.Platforms[key.Platform]; ok && l.Requests > 0 {
		return l
	}
	return c.Default
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithStore replaces the in-process window store.
func WithStore(s WindowStore) Option {
	return func(l *Limiter) { l.store = s }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// keyState is the queue and drainer bookkeeping of one key.
// Its mutex is the single serialization point for the key's window.
type keyState struct {
	key   Key
	name  string
	limit Limit

	mu       sync.Mutex
	queue    waitQueue
	draining bool
	seq      uint64
}

// Limiter enforces per-key fixed windows with priority queueing.
type Limiter struct {
	cfg    Config
	store  WindowStore
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex
	keys   map[string]*keyState
	errs   map[models.Platform]int
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a limiter. Without WithStore the windows are kept in memory.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Default.Requests <= 0 || cfg.Default.Window <= 0 {
		cfg.Default = DefaultConfig().Default
	}
	if cfg.PollMin <= 0 {
		cfg.PollMin = DefaultConfig().PollMin
	}
	if cfg.PollMax < cfg.PollMin {
		cfg.PollMax = cfg.PollMin
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Limiter{
		cfg:    cfg,
		now:    time.Now,
		logger: logging.WithComponent("ratelimit"),
		keys:   make(map[string]*keyState),
		errs:   make(map[models.Platform]int),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = NewMemoryStore()
	}
	return l
}

func (l *Limiter) state(key Key) *keyState {
	name := key.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	ks, ok := l.keys[name]
	if !ok {
		ks = &keyState{key: key, name: name, limit: l.cfg.LimitFor(key)}
		l.keys[name] = ks
	}
	return ks
}

// take consumes a slot from the store. Store failures deny the slot.
// Must be called with ks.mu held.
func (l *Limiter) take(ctx context.Context, ks *keyState) (bool, Window, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	granted, w, err := l.store.Take(ctx, ks.name, ks.limit, l.now())
	if err != nil {
		l.logger.Warn().Err(err).Str("key", ks.name).Msg("Window store unavailable, denying request")
		return false, w, err
	}
	return granted, w, nil
}

// TryAcquire consumes a slot if the window has room and no queued request of
// equal or higher priority is waiting for the same key. It never blocks on
// the queue.
func (l *Limiter) TryAcquire(ctx context.Context, key Key, priority Priority) bool {
	if l.isClosed() {
		return false
	}
	ks := l.state(key)

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.queue.HasAtLeast(priority) {
		return false
	}
	granted, _, _ := l.take(ctx, ks)
	if granted {
		metrics.RecordRateLimitAcquire(ks.name, false, 0)
	}
	return granted
}

// AcquireOrWait returns a handle that is granted immediately when the window
// has room, or once the key's drainer releases it from the wait queue.
func (l *Limiter) AcquireOrWait(ctx context.Context, key Key, priority Priority) *WaitHandle {
	ks := l.state(key)
	if l.isClosed() {
		return failedHandle(ks, ErrClosed)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !ks.queue.HasAtLeast(priority) {
		if granted, _, _ := l.take(ctx, ks); granted {
			metrics.RecordRateLimitAcquire(ks.name, false, 0)
			return grantedHandle(ks)
		}
	}

	ks.seq++
	w := &waiter{
		priority: priority,
		seq:      ks.seq,
		enqueued: l.now(),
		ready:    make(chan struct{}),
	}
	ks.queue.Push(w)
	metrics.SetRateLimitQueueDepth(ks.name, ks.queue.Len())

	if !ks.draining {
		ks.draining = true
		l.wg.Add(1)
		go l.drain(ks)
	}

	l.logger.Debug().
		Str("key", ks.name).
		Int("priority", int(priority)).
		Int("queued", ks.queue.Len()).
		Msg("Request queued")

	return &WaitHandle{ks: ks, w: w, queued: true}
}

// Acquire blocks until a slot for key is granted or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, key Key, priority Priority) error {
	return l.AcquireOrWait(ctx, key, priority).Wait(ctx)
}

// drain releases queued waiters of ks as window capacity frees up.
// One drainer runs per key while its queue is non-empty.
func (l *Limiter) drain(ks *keyState) {
	defer l.wg.Done()

	for {
		ks.mu.Lock()
		if l.ctx.Err() != nil {
			for _, w := range ks.queue.Drain() {
				w.err = ErrClosed
				close(w.ready)
			}
			ks.draining = false
			ks.mu.Unlock()
			return
		}

		head := ks.queue.Peek()
		if head == nil {
			ks.draining = false
			ks.mu.Unlock()
			metrics.SetRateLimitQueueDepth(ks.name, 0)
			return
		}

		granted, window, err := l.take(l.ctx, ks)
		if granted {
			ks.queue.Pop()
			close(head.ready)
			depth := ks.queue.Len()
			ks.mu.Unlock()

			metrics.RecordRateLimitAcquire(ks.name, true, l.now().Sub(head.enqueued))
			metrics.SetRateLimitQueueDepth(ks.name, depth)
			continue
		}
		ks.mu.Unlock()

		timer := time.NewTimer(l.pollDelay(window, err))
		select {
		case <-timer.C:
		case <-l.ctx.Done():
			timer.Stop()
		}
	}
}

// pollDelay is the time until the window resets, clamped to the poll bounds.
// Store errors poll at the upper bound.
func (l *Limiter) pollDelay(w Window, err error) time.Duration {
	if err != nil {
		return l.cfg.PollMax
	}
	d := w.ResetTime.Sub(l.now())
	if d < l.cfg.PollMin {
		return l.cfg.PollMin
	}
	if d > l.cfg.PollMax {
		return l.cfg.PollMax
	}
	return d
}

func (l *Limiter) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops every drainer and fails the requests still queued.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}

// recordFailure counts consecutive request failures per platform.
func (l *Limiter) recordFailure(p models.Platform) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[p]++
	return l.errs[p]
}

func (l *Limiter) recordSuccess(p models.Platform) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.errs, p)
}

// ConsecutiveErrors returns the number of failed requests to p since its last success.
func (l *Limiter) ConsecutiveErrors(p models.Platform) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errs[p]
}

// Status describes one key for operators.
type Status struct {
	Key               string `json:"key"`
	Limit             int    `json:"limit"`
	WindowSeconds     int64  `json:"window_seconds"`
	Window            Window `json:"window"`
	Queued            int    `json:"queued"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
}

// Stats reports every key the limiter has seen, sorted by key.
func (l *Limiter) Stats(ctx context.Context) []Status {
	l.mu.Lock()
	states := make([]*keyState, 0, len(l.keys))
	for _, ks := range l.keys {
		states = append(states, ks)
	}
	l.mu.Unlock()

	sort.Slice(states, func(i, j int) bool { return states[i].name < states[j].name })

	out := make([]Status, 0, len(states))
	for _, ks := range states {
		w, err := l.store.Peek(ctx, ks.name)
		if err != nil {
			l.logger.Debug().Err(err).Str("key", ks.name).Msg("Window peek failed")
		}
		ks.mu.Lock()
		queued := ks.queue.Len()
		ks.mu.Unlock()

		out = append(out, Status{
			Key:               ks.name,
			Limit:             ks.limit.Requests,
			WindowSeconds:     int64(ks.limit.Window / time.Second),
			Window:            w,
			Queued:            queued,
			ConsecutiveErrors: l.ConsecutiveErrors(ks.key.Platform),
		})
	}
	return out
}

// closedCh is shared by handles that never queued.
var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// WaitHandle is the result of AcquireOrWait.
type WaitHandle struct {
	ks     *keyState
	w      *waiter
	queued bool
	err    error
}

func grantedHandle(ks *keyState) *WaitHandle {
	return &WaitHandle{ks: ks}
}

func failedHandle(ks *keyState, err error) *WaitHandle {
	return &WaitHandle{ks: ks, err: err}
}

// Queued reports whether the request had to wait in the queue.
func (h *WaitHandle) Queued() bool {
	return h.queued
}

// Done is closed once the handle is granted or failed.
func (h *WaitHandle) Done() <-chan struct{} {
	if h.w == nil {
		return closedCh
	}
	return h.w.ready
}

// Wait blocks until the handle is granted. If ctx ends first the request is
// withdrawn from the queue and ctx's error returned.
func (h *WaitHandle) Wait(ctx context.Context) error {
	if h.w == nil {
		return h.err
	}
	select {
	case <-h.w.ready:
		return h.w.err
	case <-ctx.Done():
		h.Cancel()
		return ctx.Err()
	}
}

// Cancel withdraws a queued request. It is a no-op once granted.
func (h *WaitHandle) Cancel() {
	if h.w == nil {
		return
	}
	h.ks.mu.Lock()
	defer h.ks.mu.Unlock()
	if h.ks.queue.Remove(h.w) {
		h.w.err = context.Canceled
		close(h.w.ready)
		metrics.SetRateLimitQueueDepth(h.ks.name, h.ks.queue.Len())
	}
}
