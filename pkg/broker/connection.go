package broker

import (
	"context"
	"time"
)

// Handler is invoked once per inbound message on a subscription. Each
// invocation runs as its own goroutine; a handler must not assume ordering
// with respect to other invocations on the same subscription.
type Handler func(msg *Message)

// Connection defines the operations a worker needs from a live message bus
// session: fire-and-forget publish, subject subscription with optional
// queue-group load balancing, and synchronous request/reply.
type Connection interface {
	// Publish sends payload to the subject without waiting for delivery.
	Publish(ctx context.Context, subject string, payload []byte) error
	// Subscribe registers handler for subject. A non-empty queue joins the
	// (subject, queue) group: the bus delivers each message to exactly one
	// member of the group. Fails with ErrNotConnected once the connection
	// is closed.
	Subscribe(ctx context.Context, subject, queue string, handler Handler) (Subscription, error)
	// Request sends payload and waits for a single reply, or fails with
	// ErrRequestTimeout after timeout elapses. Safe for concurrent use.
	Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error)
	// Close unsubscribes all active subscriptions, waits up to the drain
	// grace period for handlers already admitted, then releases the
	// session. Calling Close on a closed connection is a no-op.
	Close() error
}

// Subscription is an active binding of a handler to a subject.
type Subscription interface {
	Subject() string
	Queue() string
	Unsubscribe() error
}
