package broker

import "errors"

var (
	// ErrNotConnected is returned when an operation requires a live session.
	ErrNotConnected = errors.New("broker: connection is not live")
	// ErrRequestTimeout is returned when no reply arrives within the
	// request timeout.
	ErrRequestTimeout = errors.New("broker: request timed out")
	// ErrNoReplySubject is returned by Message.Respond when the inbound
	// message carried no reply subject.
	ErrNoReplySubject = errors.New("broker: message has no reply subject")
)
