// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
)

// Transports.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Config selects the transport.
type Config struct {
	Transport      string
	NATSURL        string
	EmbeddedServer bool
	EmbeddedHost   string
	EmbeddedPort   int
}

// Bus owns the publisher and subscriber of one transport.
type Bus struct {
	pub      message.Publisher
	sub      message.Subscriber
	breaker  *gobreaker.CircuitBreaker[struct{}]
	logger   watermill.LoggerAdapter
	embedded *EmbeddedServer

	mu     sync.RWMutex
	closed bool
}

// NewBus connects the configured transport. An empty transport means
// gochannel.
func NewBus(cfg Config) (*Bus, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	b := &Bus{logger: logger, breaker: newPublishBreaker("event-bus")}

	switch cfg.Transport {
	case TransportGoChannel, "":
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		b.pub, b.sub = ch, ch

	case TransportNATS:
		url := cfg.NATSURL
		if cfg.EmbeddedServer {
			srv, err := StartEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
			if err != nil {
				return nil, err
			}
			b.embedded = srv
			url = srv.ClientURL()
			logging.Info().Str("url", url).Msg("Embedded NATS server started")
		}
		if err := b.connectNATS(url); err != nil {
			if b.embedded != nil {
				b.embedded.Shutdown()
			}
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}
	return b, nil
}

func (b *Bus) connectNATS(url string) error {
	natsOpts := []natsgo.Option{
		natsgo.Name("resonance"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				b.logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			b.logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
	noJetStream := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   noJetStream,
	}, b.logger)
	if err != nil {
		return fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: "resonance",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        noJetStream,
	}, b.logger)
	if err != nil {
		_ = pub.Close()
		return fmt.Errorf("create NATS subscriber: %w", err)
	}

	b.pub, b.sub = pub, sub
	return nil
}

// Publish serializes ev and sends it to its topic. The correlation id of
// ctx travels in the message metadata.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	topic := ev.Topic()
	data, err := json.Marshal(ev)
	if err != nil {
		metrics.RecordEventPublished(topic, err)
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetaAccountID, ev.Account())
	msg.Metadata.Set(MetaSchemaVersion, strconv.Itoa(SchemaVersion))
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	}

	_, err = b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.pub.Publish(topic, msg)
	})
	metrics.RecordEventPublished(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscriber exposes the transport subscriber for routers.
func (b *Bus) Subscriber() message.Subscriber {
	return b.sub
}

// Logger is the watermill adapter shared by the bus and its routers.
func (b *Bus) Logger() watermill.LoggerAdapter {
	return b.logger
}

// Check reports whether the bus can publish: it is open, its publish
// breaker is not open and the embedded broker, if any, is running.
func (b *Bus) Check(context.Context) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}
	if b.breaker.State() == gobreaker.StateOpen {
		return errors.New("event publish circuit open")
	}
	if b.embedded != nil && !b.embedded.Running() {
		return errors.New("embedded NATS server not running")
	}
	return nil
}

// Close shuts down the transport and the embedded broker, if any.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.pub.Close(); err != nil {
		errs = append(errs, err)
	}
	// gochannel uses one value for both sides
	if any(b.sub) != any(b.pub) {
		if err := b.sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
	return errors.Join(errs...)
}

func newPublishBreaker(name string) *gobreaker.CircuitBreaker[struct{}] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}
