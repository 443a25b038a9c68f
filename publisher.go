package ulink

import (
	"context"

	"github.com/trickstertwo/xclock"
)

// Publisher sends broadcast messages to topic URIs derived from its own
// identity. It is a pure message-construction convenience: delivery
// guarantees are the transport's responsibility and there is no retry at
// this layer.
type Publisher struct {
	transport Transport
	uris      URIProvider
	clock     xclock.Clock
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// PublisherClock injects a custom clock for message timestamps.
func PublisherClock(c xclock.Clock) PublisherOption {
	return func(p *Publisher) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewPublisher builds a Publisher from a Transport and the entity's URI
// provider.
func NewPublisher(t Transport, uris URIProvider, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		transport: t,
		uris:      uris,
		clock:     xclock.Default(),
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	return p
}

// Publish sends an optional payload to the entity's resource topic.
// Transport failures are wrapped in *PublishError; the underlying
// *Status remains reachable through errors.Is/As.
func (p *Publisher) Publish(ctx context.Context, resource uint16, opts CallOptions, payload *Payload) error {
	source := p.uris.ResourceURI(resource)
	msg := NewPublishMessage(source, opts, payload, p.clock.Now())
	if err := p.transport.Send(ctx, msg); err != nil {
		return &PublishError{Resource: resource, Err: err}
	}
	return nil
}
