package ulink

import (
	"time"

	"github.com/trickstertwo/xlog"
)

// EventType enumerates transport lifecycle events for the Observer
// pattern.
type EventType string

const (
	EventSend          EventType = "send"
	EventDeliver       EventType = "deliver"
	EventRegister      EventType = "register"
	EventUnregister    EventType = "unregister"
	EventListenerError EventType = "listener_error"
)

// Event carries telemetry for observers.
type Event struct {
	Type      EventType
	Topic     URI
	MessageID string
	Kind      Kind
	// Listeners is the size of the matched listener snapshot for send
	// events.
	Listeners int
	Duration  time.Duration
	Err       error
}

// Observer receives transport lifecycle events. Implementations should
// be non-blocking; a panicking observer is contained by the transport.
type Observer interface {
	OnEvent(e Event)
}

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver emits transport events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("topic", e.Topic.String()),
		xlog.Str("message_id", e.MessageID),
		xlog.Str("kind", e.Kind.String()),
	)
	switch e.Type {
	case EventListenerError:
		ev.Warn().Err(e.Err).Msg("ulink event")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		ev.Debug().Msg("ulink event")
	}
}
