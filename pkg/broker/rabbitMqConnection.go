package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/zoff-tech/go-worker/pkg/config"
	"github.com/zoff-tech/go-worker/pkg/logger"
)

const defaultExchange = "go-worker"

// RabbitMqConnectionCreator defines a function type for creating RabbitMQ
// connections.
type RabbitMqConnectionCreator func(ctx context.Context, settings *config.BrokerSettings, log *logger.Logger) (Connection, error)

// NewRabbitMqConnection is the default implementation of
// RabbitMqConnectionCreator. Subjects map onto routing keys of a single
// topic exchange; queue groups map onto shared named queues.
var NewRabbitMqConnection RabbitMqConnectionCreator = func(ctx context.Context, settings *config.BrokerSettings, log *logger.Logger) (Connection, error) {
	conn, err := amqp.Dial(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	exchange := settings.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &rabbitMqConnection{
		conn:       conn,
		pubCh:      ch,
		exchange:   exchange,
		log:        log,
		tracer:     otel.Tracer("go-worker"),
		drainGrace: drainGraceOrDefault(settings.DrainGrace),
	}, nil
}

type rabbitMqConnection struct {
	conn     *amqp.Connection
	exchange string

	pubMu sync.Mutex
	pubCh *amqp.Channel

	log        *logger.Logger
	tracer     trace.Tracer
	drainGrace time.Duration

	mu       sync.Mutex
	subs     []*rabbitMqSubscription
	closed   bool
	inflight sync.WaitGroup
}

func (c *rabbitMqConnection) Publish(ctx context.Context, subject string, payload []byte) error {
	_, span := c.tracer.Start(ctx, "Publish",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingDestinationKey.String(c.exchange),
			semconv.MessagingRabbitmqRoutingKeyKey.String(subject),
			attribute.Int("messaging.message_payload_size_bytes", len(payload)),
		),
	)
	defer span.End()

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	err := c.pubCh.Publish(c.exchange, subject, false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        payload,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (c *rabbitMqConnection) Subscribe(ctx context.Context, subject, queue string, handler Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrNotConnected
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// A named queue is shared by every subscriber that names it, which
	// gives queue-group semantics. An anonymous exclusive queue gets a
	// private copy of every message instead.
	var q amqp.Queue
	if queue == "" {
		q, err = ch.QueueDeclare("", false, true, true, false, nil)
	} else {
		q, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	}
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue for %s: %w", subject, err)
	}

	if err := ch.QueueBind(q.Name, subject, c.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind queue to %s: %w", subject, err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume from %s: %w", subject, err)
	}

	go func() {
		for d := range deliveries {
			if !c.admit() {
				return
			}
			d := d
			go func() {
				defer c.inflight.Done()
				handler(NewMessage(d.RoutingKey, d.ReplyTo, d.Body, func(payload []byte) error {
					return c.publishReply(d.ReplyTo, d.CorrelationId, payload)
				}))
			}()
		}
	}()

	rs := &rabbitMqSubscription{channel: ch, subject: subject, queue: queue}
	c.subs = append(c.subs, rs)
	return rs, nil
}

func (c *rabbitMqConnection) Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	_, span := c.tracer.Start(ctx, "Request",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingRabbitmqRoutingKeyKey.String(subject),
		),
	)
	defer span.End()

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}

	deliveries, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume reply queue: %w", err)
	}

	correlationID := uuid.NewString()
	err = ch.Publish(c.exchange, subject, false, false, amqp.Publishing{
		ContentType:   "application/octet-stream",
		Body:          payload,
		ReplyTo:       replyQueue.Name,
		CorrelationId: correlationID,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to publish request to %s: %w", subject, err)
	}

	deadline := time.After(timeout)
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return nil, ErrNotConnected
			}
			if d.CorrelationId != correlationID {
				continue
			}
			return d.Body, nil
		case <-deadline:
			span.RecordError(ErrRequestTimeout)
			return nil, fmt.Errorf("no reply on %s within %s: %w", subject, timeout, ErrRequestTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *rabbitMqConnection) Close() error {
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

	c.pubMu.Lock()
	c.pubCh.Close()
	c.pubMu.Unlock()

	if err := c.conn.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// publishReply sends a reply straight to the requester's private queue via
// the default exchange.
func (c *rabbitMqConnection) publishReply(replyTo, correlationID string, payload []byte) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	return c.pubCh.Publish("", replyTo, false, false, amqp.Publishing{
		ContentType:   "application/octet-stream",
		Body:          payload,
		CorrelationId: correlationID,
	})
}

func (c *rabbitMqConnection) admit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.inflight.Add(1)
	return true
}

func (c *rabbitMqConnection) waitForHandlers() {
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

type rabbitMqSubscription struct {
	channel *amqp.Channel
	subject string
	queue   string
}

func (s *rabbitMqSubscription) Subject() string { return s.subject }

func (s *rabbitMqSubscription) Queue() string { return s.queue }

func (s *rabbitMqSubscription) Unsubscribe() error {
	return s.channel.Close()
}
