package worker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-worker/pkg/broker"
	"github.com/zoff-tech/go-worker/pkg/logger"
)

// TaskFunc is a user-supplied task bound to a subject. It receives the raw
// message payload and may return a result; a non-nil result is published to
// the message's reply subject when one is present.
type TaskFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Registry maps the task names used in configuration to task functions.
type Registry map[string]TaskFunc

// Register binds fn under name, replacing any previous binding.
func (r Registry) Register(name string, fn TaskFunc) {
	r[name] = fn
}

// Lookup returns the task bound under name.
func (r Registry) Lookup(name string) (TaskFunc, error) {
	fn, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	return fn, nil
}

// adaptTask wraps fn into the handler shape the broker invokes on delivery.
// A failing or panicking task is logged and contained: it never takes down
// the subscription or the run loop.
func (a *Actor) adaptTask(name string, fn TaskFunc) broker.Handler {
	return func(msg *broker.Message) {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("task panicked",
					logger.String("task", name),
					logger.String("subject", msg.Subject),
					logger.Any("panic", r))
			}
		}()

		ctx, span := a.tracer.Start(context.Background(), "DispatchTask",
			trace.WithAttributes(
				semconv.MessagingDestinationKey.String(msg.Subject),
				attribute.String("task.name", name),
				attribute.Int("messaging.message_payload_size_bytes", len(msg.Data)),
			),
		)
		defer span.End()

		result, err := fn(ctx, msg.Data)
		if err != nil {
			span.RecordError(err)
			a.log.Error("task failed",
				logger.String("task", name),
				logger.String("subject", msg.Subject),
				logger.Error(err))
			return
		}

		if result != nil && msg.Reply != "" {
			if err := msg.Respond(result); err != nil {
				span.RecordError(err)
				a.log.Error("task reply failed",
					logger.String("task", name),
					logger.String("subject", msg.Subject),
					logger.Error(err))
			}
		}
	}
}
