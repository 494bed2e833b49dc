package worker

// ControlSignal is a lifecycle command carried over the worker's control
// subject or enqueued in process. The wire format is the exact UTF-8 text of
// the signal name.
type ControlSignal string

const (
	SignalStart ControlSignal = "START"
	SignalStop  ControlSignal = "STOP"
)

// State tracks the actor through its life. A stopped actor cannot be
// restarted; create a fresh one instead.
type State int32

const (
	StateInitialized State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
