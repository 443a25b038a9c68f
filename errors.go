package ulink

import (
	"errors"
	"fmt"
)

// Code classifies transport failures. Every error surfaced by a
// Transport implementation carries exactly one code.
type Code uint8

const (
	CodeUnknown Code = iota
	// CodeInvalidArgument: a call parameter is missing or malformed.
	CodeInvalidArgument
	// CodeInvalidMessage: a required addressing field of a Message is
	// missing or malformed. Never retried.
	CodeInvalidMessage
	// CodeAlreadyExists: duplicate registration attempt.
	CodeAlreadyExists
	// CodeNotFound: no matching active registration.
	CodeNotFound
	// CodeUnavailable: the transport cannot currently accept the call.
	CodeUnavailable
	// CodeListenerFailure: a listener raised during dispatch. Contained
	// at the dispatch site; never surfaced through Send.
	CodeListenerFailure
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeInvalidMessage:
		return "invalid_message"
	case CodeAlreadyExists:
		return "already_exists"
	case CodeNotFound:
		return "not_found"
	case CodeUnavailable:
		return "unavailable"
	case CodeListenerFailure:
		return "listener_failure"
	default:
		return "unknown"
	}
}

// Status is the error value produced by transports: a taxonomy code plus
// a human-readable cause.
type Status struct {
	Code Code
	Msg  string
}

func (s *Status) Error() string { return fmt.Sprintf("%s: %s", s.Code, s.Msg) }

// Is matches any *Status with the same code, so
// errors.Is(err, ErrNotFound) works across wrapping.
func (s *Status) Is(target error) bool {
	var t *Status
	if errors.As(target, &t) {
		return s.Code == t.Code
	}
	return false
}

// Errorf builds a *Status with a formatted cause.
func Errorf(code Code, format string, args ...any) *Status {
	return &Status{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown when err
// carries no *Status.
func CodeOf(err error) Code {
	var s *Status
	if errors.As(err, &s) {
		return s.Code
	}
	return CodeUnknown
}

// Sentinels for errors.Is matching by code.
var (
	ErrInvalidArgument = &Status{Code: CodeInvalidArgument, Msg: "invalid argument"}
	ErrInvalidMessage  = &Status{Code: CodeInvalidMessage, Msg: "invalid message"}
	ErrAlreadyExists   = &Status{Code: CodeAlreadyExists, Msg: "already registered"}
	ErrNotFound        = &Status{Code: CodeNotFound, Msg: "not found"}
	ErrUnavailable     = &Status{Code: CodeUnavailable, Msg: "unavailable"}
)

// ErrUnknownTransport reports a transport name with no registered factory.
type ErrUnknownTransport struct{ name string }

func (e ErrUnknownTransport) Error() string { return fmt.Sprintf("unknown transport: %s", e.name) }

// PublishError wraps a transport failure surfaced through Publisher.
type PublishError struct {
	Resource uint16
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to resource %#x: %v", e.Resource, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// NotificationError wraps a transport failure surfaced through Notifier.
type NotificationError struct {
	Topic URI
	Err   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification on %s: %v", e.Topic, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
