package ulink

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the message envelope. The pub/sub core produces
// KindPublish and KindNotification; request/response kinds exist so a
// conforming transport can carry RPC traffic layered by callers.
type Kind uint8

const (
	KindUnspecified Kind = iota
	KindPublish
	KindNotification
	KindRequest
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindPublish:
		return "publish"
	case KindNotification:
		return "notification"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "unspecified"
	}
}

// Priority is the QoS class of a message, lowest to highest.
type Priority uint8

const (
	PriorityUnspecified Priority = iota
	PriorityLow
	PriorityStandard // default for publish and notification traffic
	PriorityOperations
	PriorityMultimedia
	PriorityRealtime
	PrioritySignaling
	PriorityEmergency
)

// CallOptions tune an outgoing message. The zero value gives standard
// priority and no TTL.
type CallOptions struct {
	Priority Priority
	// TTL bounds how long the message stays meaningful; zero means no
	// expiry. Transports carry it as metadata, they do not enforce it.
	TTL time.Duration
	// Token is an opaque per-message authorization token.
	Token string
}

// Message is the envelope handed to listeners. It is created by
// Publisher/Notifier at send time and read-only afterward; each dispatch
// receives its own value copy, so one listener can never mutate state
// visible to another.
type Message struct {
	// ID is the unique identifier generated per send.
	ID   string
	Kind Kind
	// Source is the topic URI the message was sent to.
	Source URI
	// Sink addresses the targeted recipient of a notification; nil for
	// broadcast publish traffic.
	Sink     *URI
	Priority Priority
	TTL      time.Duration
	// SentAt is the production timestamp from the sender's clock.
	SentAt time.Time
	// Payload is the optional message body.
	Payload *Payload
}

// NewPublishMessage builds a broadcast publish envelope with a fresh id.
func NewPublishMessage(source URI, opts CallOptions, payload *Payload, now time.Time) Message {
	return Message{
		ID:       NewMessageID(),
		Kind:     KindPublish,
		Source:   source,
		Priority: priorityOrDefault(opts.Priority),
		TTL:      opts.TTL,
		SentAt:   now,
		Payload:  payload,
	}
}

// NewNotificationMessage builds a targeted notification envelope with a
// fresh id.
func NewNotificationMessage(source, sink URI, opts CallOptions, payload *Payload, now time.Time) Message {
	return Message{
		ID:       NewMessageID(),
		Kind:     KindNotification,
		Source:   source,
		Sink:     &sink,
		Priority: priorityOrDefault(opts.Priority),
		TTL:      opts.TTL,
		SentAt:   now,
		Payload:  payload,
	}
}

// Validate checks the addressing invariants a transport relies on.
func (m *Message) Validate() error {
	if m.Source.IsZero() {
		return Errorf(CodeInvalidMessage, "message has no source URI")
	}
	switch m.Kind {
	case KindPublish:
		if m.Sink != nil {
			return Errorf(CodeInvalidMessage, "publish message must not carry a sink URI")
		}
	case KindNotification:
		if m.Sink == nil || m.Sink.IsZero() {
			return Errorf(CodeInvalidMessage, "notification message has no sink URI")
		}
	case KindRequest, KindResponse:
		if m.Sink == nil || m.Sink.IsZero() {
			return Errorf(CodeInvalidMessage, "%s message has no sink URI", m.Kind)
		}
	default:
		return Errorf(CodeInvalidMessage, "message kind is unspecified")
	}
	return nil
}

// ExtractText reads the payload as a string value. A message without a
// payload, or with a payload that does not carry a string, yields
// ok=false rather than an error.
func (m *Message) ExtractText() (string, bool) {
	if m.Payload == nil {
		return "", false
	}
	return m.Payload.ExtractText()
}

// NewMessageID mints a unique, time-ordered message identifier.
func NewMessageID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func priorityOrDefault(p Priority) Priority {
	if p == PriorityUnspecified {
		return PriorityStandard
	}
	return p
}
