package ulink

import "reflect"

// Listener is the callback capability invoked on matching message
// delivery. Invocations are fire-and-forget: a listener that panics is
// contained and logged at the dispatch site, it neither fails the send
// nor removes the registration.
type Listener interface {
	OnReceive(msg Message)
}

// ListenerFunc adapts a plain function to Listener.
//
// Function values have no usable identity; two ListenerFunc wraps of the
// same function are distinct registrations. Use NewListener when the
// duplicate-registration check should apply.
type ListenerFunc func(Message)

func (f ListenerFunc) OnReceive(msg Message) { f(msg) }

// NewListener wraps fn in a Listener with pointer identity: registering
// the returned value twice for the same (topic, sink filter) is rejected
// with CodeAlreadyExists.
func NewListener(fn func(Message)) Listener {
	return &funcListener{fn: fn}
}

type funcListener struct{ fn func(Message) }

func (l *funcListener) OnReceive(msg Message) { l.fn(msg) }

// listenersEqual compares two listeners by identity without panicking on
// incomparable dynamic types (bare funcs are never considered equal).
func listenersEqual(a, b Listener) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if !va.Comparable() {
		return false
	}
	return va.Equal(vb)
}
