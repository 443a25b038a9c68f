package ulink

import (
	"context"
	"sync"

	"github.com/trickstertwo/xclock"
)

// Notifier sends and receives one-to-one notification messages. It
// keeps its own bookkeeping of which topics it listens on, so a later
// StopListening call can find and remove the transport-level
// registration without the caller holding the handle.
//
// Policy: at most one listener per topic per Notifier. StartListening on
// a topic that is already registered is rejected with CodeAlreadyExists;
// replacing silently would leave the displaced registration unreachable.
type Notifier struct {
	transport Transport
	uris      URIProvider
	clock     xclock.Clock

	mu        sync.Mutex
	listening map[URI]*Registration
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// NotifierClock injects a custom clock for message timestamps.
func NotifierClock(c xclock.Clock) NotifierOption {
	return func(n *Notifier) {
		if c != nil {
			n.clock = c
		}
	}
}

// NewNotifier builds a Notifier from a Transport and the entity's URI
// provider.
func NewNotifier(t Transport, uris URIProvider, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		transport: t,
		uris:      uris,
		clock:     xclock.Default(),
		listening: make(map[URI]*Registration),
	}
	for _, o := range opts {
		if o != nil {
			o(n)
		}
	}
	return n
}

// StartListening registers l for notifications on topic.
func (n *Notifier) StartListening(ctx context.Context, topic URI, l Listener) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listening[topic]; ok {
		return &NotificationError{
			Topic: topic,
			Err:   Errorf(CodeAlreadyExists, "already listening on topic %s", topic),
		}
	}

	reg, err := n.transport.RegisterListener(ctx, topic, nil, l)
	if err != nil {
		return &NotificationError{Topic: topic, Err: err}
	}
	n.listening[topic] = reg
	return nil
}

// StopListening removes the listener previously registered for topic.
// It fails with CodeNotFound when no listener is registered; the
// bookkeeping entry is dropped only once the transport confirms removal.
func (n *Notifier) StopListening(ctx context.Context, topic URI) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	reg, ok := n.listening[topic]
	if !ok {
		return &NotificationError{
			Topic: topic,
			Err:   Errorf(CodeNotFound, "no listener registered for topic %s", topic),
		}
	}

	if err := n.transport.UnregisterListener(ctx, reg); err != nil {
		return &NotificationError{Topic: topic, Err: err}
	}
	delete(n.listening, topic)
	return nil
}

// Notify sends an optional payload as a targeted notification from the
// entity's resource to destination. Same no-retry policy as Publisher.
func (n *Notifier) Notify(ctx context.Context, resource uint16, destination URI, opts CallOptions, payload *Payload) error {
	source := n.uris.ResourceURI(resource)
	msg := NewNotificationMessage(source, destination, opts, payload, n.clock.Now())
	if err := n.transport.Send(ctx, msg); err != nil {
		return &NotificationError{Topic: destination, Err: err}
	}
	return nil
}
