// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
)

// HandlerFunc handles one decoded message.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

type route struct {
	name    string
	topic   string
	handler HandlerFunc
}

// Router runs consumer handlers against the bus subscriber.
type Router struct {
	bus    *Bus
	routes []route

	mu    sync.Mutex
	ready chan struct{}
}

// NewRouter creates a router with no handlers.
func NewRouter(bus *Bus) *Router {
	return &Router{bus: bus, ready: make(chan struct{})}
}

// Handle registers fn for topic. Register before Serve.
func (r *Router) Handle(name, topic string, fn HandlerFunc) {
	r.routes = append(r.routes, route{name: name, topic: topic, handler: fn})
}

// Ready is closed once handlers are subscribed.
func (r *Router) Ready() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Serve implements suture.Service. Each call builds a fresh watermill
// router, so a restart after failure starts clean.
func (r *Router) Serve(ctx context.Context) error {
	wm, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, r.bus.Logger())
	if err != nil {
		return fmt.Errorf("create watermill router: %w", err)
	}

	wm.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          r.bus.Logger(),
		}.Middleware,
	)

	for _, rt := range r.routes {
		rt := rt
		wm.AddConsumerHandler(rt.name, rt.topic, r.bus.Subscriber(), func(msg *message.Message) error {
			ctx := msg.Context()
			if id := middleware.MessageCorrelationID(msg); id != "" {
				ctx = logging.ContextWithCorrelationID(ctx, id)
			}
			err := rt.handler(ctx, msg)
			metrics.RecordEventConsumed(rt.topic, err)
			return err
		})
	}

	r.mu.Lock()
	ready := r.ready
	r.mu.Unlock()
	done, exited := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-wm.Running():
			close(ready)
		case <-done:
		}
	}()

	err = wm.Run(ctx)
	close(done)
	<-exited

	r.mu.Lock()
	select {
	case <-ready:
		r.ready = make(chan struct{})
	default:
	}
	r.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return fmt.Errorf("event router stopped unexpectedly")
}

// String implements fmt.Stringer.
func (r *Router) String() string {
	return "event-router"
}

// decode unmarshals a message payload into v.
func decode(msg *message.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", msg.UUID, err)
	}
	return nil
}
