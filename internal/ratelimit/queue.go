// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package ratelimit

import "time"

// Priority orders queued requests; higher values are released first.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

// waiter is one parked AcquireOrWait call.
type waiter struct {
	priority Priority
	seq      uint64 // enqueue order, breaks priority ties FIFO
	enqueued time.Time
	ready    chan struct{}
	err      error // set before ready is closed when the grant failed
	index    int   // position in the heap, -1 once removed
}

// waitQueue is a binary heap of waiters: highest priority first, then lowest seq.
// It is not safe for concurrent use; the owning keyState serializes access.
type waitQueue struct {
	heap []*waiter
}

func (q *waitQueue) Len() int {
	return len(q.heap)
}

// Push adds w to the queue.
func (q *waitQueue) Push(w *waiter) {
	w.index = len(q.heap)
	q.heap = append(q.heap, w)
	q.bubbleUp(w.index)
}

// Peek returns the next waiter to release without removing it.
func (q *waitQueue) Peek() *waiter {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

// Pop removes and returns the next waiter to release.
func (q *waitQueue) Pop() *waiter {
	if len(q.heap) == 0 {
		return nil
	}
	return q.removeAt(0)
}

// Remove drops w from the queue. It reports false if w was already released.
func (q *waitQueue) Remove(w *waiter) bool {
	if w.index < 0 || w.index >= len(q.heap) || q.heap[w.index] != w {
		return false
	}
	q.removeAt(w.index)
	return true
}

// HasAtLeast reports whether any queued waiter has priority >= p.
func (q *waitQueue) HasAtLeast(p Priority) bool {
	// The head has the highest priority in the heap.
	head := q.Peek()
	return head != nil && head.priority >= p
}

// Drain removes every waiter.
func (q *waitQueue) Drain() []*waiter {
	out := q.heap
	for _, w := range out {
		w.index = -1
	}
	q.heap = nil
	return out
}

func (q *waitQueue) removeAt(i int) *waiter {
	n := len(q.heap) - 1
	w := q.heap[i]

	if i != n {
		q.heap[i] = q.heap[n]
		q.heap[i].index = i
	}
	q.heap = q.heap[:n]
	if i < n {
		q.fix(i)
	}

	w.index = -1
	return w
}

// before reports whether a must be released before b.
func before(a, b *waiter) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

func (q *waitQueue) fix(i int) {
	if q.bubbleUp(i) {
		return
	}
	q.bubbleDown(i)
}

func (q *waitQueue) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !before(q.heap[i], q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (q *waitQueue) bubbleDown(i int) {
	n := len(q.heap)
	for {
		first := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && before(q.heap[left], q.heap[first]) {
			first = left
		}
		if right < n && before(q.heap[right], q.heap[first]) {
			first = right
		}
		if first == i {
			return
		}

		q.swap(i, first)
		i = first
	}
}

func (q *waitQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}
