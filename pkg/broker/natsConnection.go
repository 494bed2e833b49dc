package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/zoff-tech/go-worker/pkg/config"
	"github.com/zoff-tech/go-worker/pkg/logger"
)

const defaultDrainGrace = 5 * time.Second

// NatsConnectionCreator defines a function type for creating NATS connections.
type NatsConnectionCreator func(ctx context.Context, settings *config.BrokerSettings, log *logger.Logger) (Connection, error)

// NewNatsConnection is the default implementation of NatsConnectionCreator.
// Reconnection is disabled on purpose: retry policy belongs to the caller,
// not to this layer.
var NewNatsConnection NatsConnectionCreator = func(ctx context.Context, settings *config.BrokerSettings, log *logger.Logger) (Connection, error) {
	nc, err := nats.Connect(settings.URL, nats.NoReconnect())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &natsConnection{
		conn:       nc,
		log:        log,
		tracer:     otel.Tracer("go-worker"),
		drainGrace: drainGraceOrDefault(settings.DrainGrace),
	}, nil
}

type natsConnection struct {
	conn       *nats.Conn
	log        *logger.Logger
	tracer     trace.Tracer
	drainGrace time.Duration

	mu       sync.Mutex
	subs     []*natsSubscription
	closed   bool
	inflight sync.WaitGroup
}

func (c *natsConnection) Publish(ctx context.Context, subject string, payload []byte) error {
	_, span := c.tracer.Start(ctx, "Publish",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("nats"),
			semconv.MessagingDestinationKey.String(subject),
			attribute.Int("messaging.message_payload_size_bytes", len(payload)),
		),
	)
	defer span.End()

	if err := c.conn.Publish(subject, payload); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (c *natsConnection) Subscribe(ctx context.Context, subject, queue string, handler Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	cb := func(m *nats.Msg) {
		if !c.admit() {
			return
		}
		go func() {
			defer c.inflight.Done()
			handler(NewMessage(m.Subject, m.Reply, m.Data, m.Respond))
		}()
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = c.conn.Subscribe(subject, cb)
	} else {
		sub, err = c.conn.QueueSubscribe(subject, queue, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	ns := &natsSubscription{sub: sub, subject: subject, queue: queue}
	c.subs = append(c.subs, ns)
	return ns, nil
}

func (c *natsConnection) Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	_, span := c.tracer.Start(ctx, "Request",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("nats"),
			semconv.MessagingDestinationKey.String(subject),
		),
	)
	defer span.End()

	msg, err := c.conn.Request(subject, payload, timeout)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("no reply on %s within %s: %w", subject, timeout, ErrRequestTimeout)
		}
		return nil, fmt.Errorf("request on %s failed: %w", subject, err)
	}
	return msg.Data, nil
}

// Close unsubscribes everything, drains admitted handlers and releases the
// session. Subsequent calls are no-ops.
func (c *natsConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	var errs error
	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			c.log.Warn("unsubscribe failed",
				logger.String("subject", s.Subject()),
				logger.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	c.waitForHandlers()
	c.conn.Close()
	return errs
}

// admit registers one handler invocation unless the connection is closing.
func (c *natsConnection) admit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.inflight.Add(1)
	return true
}

func (c *natsConnection) waitForHandlers() {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.drainGrace):
		c.log.Warn("drain grace elapsed with handlers still running",
			logger.Duration("grace", c.drainGrace))
	}
}

type natsSubscription struct {
	sub     *nats.Subscription
	subject string
	queue   string
}

func (s *natsSubscription) Subject() string { return s.subject }

func (s *natsSubscription) Queue() string { return s.queue }

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

func drainGraceOrDefault(grace time.Duration) time.Duration {
	if grace <= 0 {
		return defaultDrainGrace
	}
	return grace
}
