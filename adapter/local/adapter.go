package local

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/ulinklabs/ulink"
)

const TransportName = "local"

func init() {
	if err := ulink.RegisterTransport(TransportName, func(cfg map[string]any) (ulink.Transport, error) {
		return NewTransport(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("ulink/local: failed to register transport: %w", err))
	}
}

// Config controls local transport behavior.
type Config struct {
	// Workers is the size of a private dispatch pool. Zero (the default)
	// shares the process-wide dispatcher across all transports.
	Workers int
	// QueueSize is the private pool's queue capacity; ignored when the
	// shared dispatcher is used.
	QueueSize int
}

// ConfigFromMap safely converts cfg into Config with defaults.
func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}

	return Config{
		Workers:   getInt("workers", 0),
		QueueSize: getInt("queue_size", 0),
	}
}

// Transport is the in-process implementation of the ulink Transport
// contract. It holds the listener registry behind a lock, snapshots the
// matching set per send, and dispatches each listener independently so a
// slow or failing listener never blocks or fails delivery to the others.
type Transport struct {
	cfg      Config
	registry *ulink.ListenerRegistry
	disp     *ulink.Dispatcher
	ownsDisp bool
	logger   *xlog.Logger
	clock    xclock.Clock

	observersMu sync.RWMutex
	observers   []ulink.Observer

	closed  atomic.Bool
	metrics *transportMetrics
}

type transportMetrics struct {
	sent             atomic.Uint64
	dispatched       atomic.Uint64
	listenerFailures atomic.Uint64
	registered       atomic.Uint64
	unregistered     atomic.Uint64
}

var _ ulink.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(t *Transport) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithDispatcher injects a custom dispatch pool. The transport does not
// close an injected dispatcher.
func WithDispatcher(d *ulink.Dispatcher) Option {
	return func(t *Transport) {
		if d != nil {
			t.disp = d
			t.ownsDisp = false
		}
	}
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...ulink.Observer) Option {
	return func(t *Transport) {
		for _, o := range obs {
			if o != nil {
				t.observers = append(t.observers, o)
			}
		}
	}
}

// NewTransport creates an in-process transport. With a zero Config it
// shares the process-wide dispatcher; Workers > 0 gives it a private
// pool that Close tears down.
func NewTransport(cfg Config, opts ...Option) *Transport {
	t := &Transport{
		cfg:      cfg,
		registry: ulink.NewListenerRegistry(),
		logger:   xlog.Default(),
		clock:    xclock.Default(),
		metrics:  &transportMetrics{},
	}
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}
	if t.disp == nil {
		if cfg.Workers > 0 {
			t.disp = ulink.NewDispatcher(cfg.Workers, cfg.QueueSize, t.logger)
			t.ownsDisp = true
		} else {
			t.disp = ulink.DefaultDispatcher()
		}
	}
	return t
}

// Send snapshots the matching listener set under the registry lock and
// hands each listener to the dispatcher. It returns once dispatch has
// been initiated for every listener in the snapshot.
func (t *Transport) Send(ctx context.Context, msg ulink.Message) error {
	if t.closed.Load() {
		return ulink.Errorf(ulink.CodeUnavailable, "local transport is closed")
	}
	if err := ctx.Err(); err != nil {
		return ulink.Errorf(ulink.CodeUnavailable, "send canceled: %v", err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = ulink.NewMessageID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = t.clock.Now()
	}

	listeners := t.registry.Match(&msg)

	start := t.clock.Now()
	for _, l := range listeners {
		l := l
		wrapped := ulink.NewListener(func(m ulink.Message) { t.invoke(l, m) })
		if err := t.disp.Dispatch(wrapped, msg); err != nil {
			return err
		}
	}

	t.metrics.sent.Add(1)
	t.metrics.dispatched.Add(uint64(len(listeners)))
	t.notify(ulink.Event{
		Type:      ulink.EventSend,
		Topic:     msg.Source,
		MessageID: msg.ID,
		Kind:      msg.Kind,
		Listeners: len(listeners),
		Duration:  t.clock.Since(start),
	})
	return nil
}

// invoke runs one listener with panic containment: the failure is
// counted, logged and reported to observers, and does not remove the
// listener or affect other deliveries.
func (t *Transport) invoke(l ulink.Listener, msg ulink.Message) {
	defer func() {
		if r := recover(); r != nil {
			t.metrics.listenerFailures.Add(1)
			err := ulink.Errorf(ulink.CodeListenerFailure, "listener panic (recovered): %v", r)
			t.logger.Warn().Err(err).Msg("ulink/local: listener invocation failed")
			t.notify(ulink.Event{
				Type:      ulink.EventListenerError,
				Topic:     msg.Source,
				MessageID: msg.ID,
				Kind:      msg.Kind,
				Err:       err,
			})
		}
	}()
	l.OnReceive(msg)
	t.notify(ulink.Event{
		Type:      ulink.EventDeliver,
		Topic:     msg.Source,
		MessageID: msg.ID,
		Kind:      msg.Kind,
	})
}

// RegisterListener adds a listener for (topic, sink filter).
func (t *Transport) RegisterListener(_ context.Context, topic ulink.URI, sink *ulink.URI, l ulink.Listener) (*ulink.Registration, error) {
	if t.closed.Load() {
		return nil, ulink.Errorf(ulink.CodeUnavailable, "local transport is closed")
	}
	reg, err := t.registry.Register(topic, sink, l)
	if err != nil {
		return nil, err
	}
	t.metrics.registered.Add(1)
	t.notify(ulink.Event{Type: ulink.EventRegister, Topic: topic})
	return reg, nil
}

// UnregisterListener removes a registration by handle.
func (t *Transport) UnregisterListener(_ context.Context, reg *ulink.Registration) error {
	if t.closed.Load() {
		return ulink.Errorf(ulink.CodeUnavailable, "local transport is closed")
	}
	if err := t.registry.Unregister(reg); err != nil {
		return err
	}
	t.metrics.unregistered.Add(1)
	t.notify(ulink.Event{Type: ulink.EventUnregister, Topic: reg.Topic()})
	return nil
}

// Close drops all registrations and, when the transport owns a private
// dispatch pool, drains it.
func (t *Transport) Close(_ context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	t.registry.Clear()
	if t.ownsDisp {
		if err := t.disp.Close(5 * time.Second); err != nil {
			t.logger.Warn().Err(err).Msg("ulink/local: dispatcher shutdown timeout")
			return err
		}
	}
	return nil
}

// AddObserver registers an observer (thread-safe).
func (t *Transport) AddObserver(obs ulink.Observer) {
	if obs == nil {
		return
	}
	t.observersMu.Lock()
	t.observers = append(t.observers, obs)
	t.observersMu.Unlock()
}

func (t *Transport) notify(e ulink.Event) {
	t.observersMu.RLock()
	if len(t.observers) == 0 {
		t.observersMu.RUnlock()
		return
	}
	obs := make([]ulink.Observer, len(t.observers))
	copy(obs, t.observers)
	t.observersMu.RUnlock()

	for _, o := range obs {
		func() {
			defer func() { _ = recover() }()
			o.OnEvent(e)
		}()
	}
}

// Stats is transport telemetry.
type Stats struct {
	Sent             uint64
	Dispatched       uint64
	ListenerFailures uint64
	Registered       uint64
	Unregistered     uint64
	ActiveListeners  int
}

// Stats returns current transport metrics.
func (t *Transport) Stats() Stats {
	return Stats{
		Sent:             t.metrics.sent.Load(),
		Dispatched:       t.metrics.dispatched.Load(),
		ListenerFailures: t.metrics.listenerFailures.Load(),
		Registered:       t.metrics.registered.Load(),
		Unregistered:     t.metrics.unregistered.Load(),
		ActiveListeners:  t.registry.Len(),
	}
}
