package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-worker/pkg/broker"
	"github.com/zoff-tech/go-worker/pkg/config"
	"github.com/zoff-tech/go-worker/pkg/logger"
)

// controlBuffer bounds the control channel. Lifecycle signals are tiny and
// rare; the buffer only has to absorb bursts between loop reads so that
// producers never block.
const controlBuffer = 16

// dialBroker is swapped out in tests.
var dialBroker = broker.NewConnection

// Actor is a worker instance: one broker connection, one control channel,
// and the set of task subscriptions described by its configuration. An Actor
// runs at most once; after it stops it must be rebuilt, not restarted.
type Actor struct {
	cfg      *config.Settings
	log      *logger.Logger
	registry Registry
	tracer   trace.Tracer

	ctrl chan ControlSignal

	mu    sync.Mutex
	state State
	conn  broker.Connection
}

// NewActor builds an actor around the given configuration and task registry.
// The configuration is borrowed, not copied; it must not change afterwards.
func NewActor(cfg *config.Settings, log *logger.Logger, registry Registry) *Actor {
	return &Actor{
		cfg:      cfg,
		log:      log,
		registry: registry,
		tracer:   otel.Tracer("go-worker"),
		ctrl:     make(chan ControlSignal, controlBuffer),
		state:    StateInitialized,
	}
}

// State reports the actor's current lifecycle state.
func (a *Actor) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Signal enqueues sig without blocking, so it is safe to call from an OS
// signal goroutine. The value is not validated here; the run loop decides
// what to do with it.
func (a *Actor) Signal(sig ControlSignal) {
	select {
	case a.ctrl <- sig:
	default:
		a.log.Warn("control channel full, dropping signal",
			logger.String("signal", string(sig)))
	}
}

// Stop requests shutdown. Safe to call repeatedly and from any goroutine;
// every trigger source funnels through the same control channel, so there is
// a single serialized shutdown path.
func (a *Actor) Stop() {
	a.Signal(SignalStop)
}

// Run connects to the broker, subscribes the control subject first and then
// every configured task subject in order, and blocks until a STOP signal
// arrives or ctx is canceled. Startup failures abort before the actor
// reaches the running state and are returned to the caller.
func (a *Actor) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateInitialized {
		state := a.state
		a.mu.Unlock()
		return fmt.Errorf("actor cannot run from state %s", state)
	}
	a.mu.Unlock()

	conn, err := dialBroker(ctx, &a.cfg.Broker, a.log)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	// The control subject is bound before any task subject so a STOP sent
	// immediately after startup is never missed.
	if _, err := conn.Subscribe(ctx, a.cfg.Worker.Name, "", a.handleControl); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe control subject %s: %w", a.cfg.Worker.Name, err)
	}
	a.log.Debug("control subject bound", logger.String("subject", a.cfg.Worker.Name))

	for _, spec := range a.cfg.Worker.Tasks {
		fn, err := a.registry.Lookup(spec.Task)
		if err != nil {
			conn.Close()
			return err
		}
		sub, err := conn.Subscribe(ctx, spec.Subject, spec.Queue, a.adaptTask(spec.Task, fn))
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to subscribe task subject %s: %w", spec.Subject, err)
		}
		a.log.Debug("task registered",
			logger.String("subject", sub.Subject()),
			logger.String("queue", sub.Queue()),
			logger.String("task", spec.Task))
	}

	a.setState(StateRunning)
	a.log.Info("worker running",
		logger.String("name", a.cfg.Worker.Name),
		logger.Int("tasks", len(a.cfg.Worker.Tasks)))

	// START doubles as the loop's own seed value, so a START read while
	// running is a benign no-op.
	sig := SignalStart
	for sig != SignalStop {
		select {
		case sig = <-a.ctrl:
			a.log.Debug("got worker signal", logger.String("signal", string(sig)))
			if sig != SignalStart && sig != SignalStop {
				a.log.Warn("unrecognized control signal ignored",
					logger.String("signal", string(sig)))
			}
		case <-ctx.Done():
			sig = SignalStop
		}
	}

	a.setState(StateStopping)
	a.log.Info("stopping worker", logger.String("name", a.cfg.Worker.Name))

	// Close failures must not keep the actor from reaching its terminal
	// state; they are logged and dropped.
	if err := conn.Close(); err != nil {
		a.log.Error("broker close failed", logger.Error(err))
	}

	a.mu.Lock()
	a.conn = nil
	a.mu.Unlock()
	a.setState(StateStopped)
	a.log.Info("worker stopped", logger.String("name", a.cfg.Worker.Name))
	return nil
}

// Request performs one synchronous request/reply exchange. It rides the live
// connection when the actor is running and dials a short-lived one
// otherwise; either way it stays outside the run loop's subscription
// bookkeeping.
func (a *Actor) Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	start := time.Now()

	conn := a.liveConnection()
	if conn == nil {
		c, err := dialBroker(ctx, &a.cfg.Broker, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer c.Close()
		conn = c
	}

	reply, err := conn.Request(ctx, subject, payload, timeout)
	if err != nil {
		return nil, err
	}

	a.log.Debug("request finished",
		logger.String("subject", subject),
		logger.Duration("elapsed", time.Since(start)))
	return reply, nil
}

// handleControl is the control-subject subscription callback: it decodes the
// payload as UTF-8 text and forwards it verbatim onto the control channel.
// Validation happens in the run loop.
func (a *Actor) handleControl(msg *broker.Message) {
	a.Signal(ControlSignal(msg.Data))
}

func (a *Actor) liveConnection() broker.Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateRunning {
		return nil
	}
	return a.conn
}

func (a *Actor) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}
