package ulink

import (
	"context"
	"errors"
	"sync"
)

// Transport is the delivery contract every backend satisfies. Once
// RegisterListener returns success, every subsequent matching Send
// results in exactly one dispatch to that listener until the effects of
// a concurrent UnregisterListener become visible; a registration is
// never dispatched to after its unregister call returns.
type Transport interface {
	// Send delivers msg to all listeners currently registered for a
	// topic matching msg.Source (and, for notifications, whose sink
	// filter matches msg.Sink or is unset). It returns once dispatch has
	// been initiated, not once every listener has finished.
	Send(ctx context.Context, msg Message) error
	// RegisterListener adds l for (topic, sink). Re-registering the
	// identical listener for the identical key fails with
	// CodeAlreadyExists. The returned handle is required for removal.
	RegisterListener(ctx context.Context, topic URI, sink *URI, l Listener) (*Registration, error)
	// UnregisterListener removes a registration by handle. It fails with
	// CodeNotFound when no matching active registration exists.
	// Unregistering only affects future sends; there is no in-flight
	// cancellation of an already-dispatched message.
	UnregisterListener(ctx context.Context, reg *Registration) error
	// Close releases resources. Further calls fail with CodeUnavailable.
	Close(ctx context.Context) error
}

// TransportFactory constructs transports from a config blob.
type TransportFactory func(cfg map[string]any) (Transport, error)

var (
	transportRegistryMu sync.RWMutex
	transportRegistry   = map[string]TransportFactory{}
)

// RegisterTransport registers a backend adapter by name.
func RegisterTransport(name string, factory TransportFactory) error {
	if name == "" {
		return errors.New("transport name must not be empty")
	}
	if factory == nil {
		return errors.New("transport factory must not be nil")
	}
	transportRegistryMu.Lock()
	transportRegistry[name] = factory
	transportRegistryMu.Unlock()
	return nil
}

// NewTransport constructs a transport by name with config.
func NewTransport(name string, cfg map[string]any) (Transport, error) {
	transportRegistryMu.RLock()
	f, ok := transportRegistry[name]
	transportRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownTransport{name: name}
	}
	return f(cfg)
}
