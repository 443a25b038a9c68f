package redispubsub

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/trickstertwo/xlog"

	"github.com/ulinklabs/ulink"
)

const TransportName = "redis-pubsub"

func init() {
	if err := ulink.RegisterTransport(TransportName, func(cfg map[string]any) (ulink.Transport, error) {
		return NewTransport(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("ulink: failed to register transport %q: %w", TransportName, err))
	}
}

type transport struct {
	cfg      Config
	client   *redis.Client
	registry *ulink.ListenerRegistry
	disp     *ulink.Dispatcher
	logger   *xlog.Logger

	mu   sync.Mutex
	subs map[ulink.URI]*topicSub

	closed    atomic.Bool
	closeOnce sync.Once
}

// topicSub is the single Redis subscription shared by every
// registration on one topic URI, reference counted.
type topicSub struct {
	pubsub *redis.PubSub
	done   chan struct{}
	refs   int
}

var _ ulink.Transport = (*transport)(nil)

// Option configures the transport.
type Option func(*transport)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(t *transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithDispatcher injects a custom dispatch pool.
func WithDispatcher(d *ulink.Dispatcher) Option {
	return func(t *transport) {
		if d != nil {
			t.disp = d
		}
	}
}

// NewTransport connects to Redis and returns a contract-conformant
// networked transport. It fails fast when the server is unreachable.
func NewTransport(cfg Config, opts ...Option) (ulink.Transport, error) {
	clientOpts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		clientOpts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}
	client := redis.NewClient(clientOpts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, ulink.Errorf(ulink.CodeUnavailable, "redis unreachable at %s: %v", cfg.Addr, err)
	}

	t := &transport{
		cfg:      cfg,
		client:   client,
		registry: ulink.NewListenerRegistry(),
		disp:     ulink.DefaultDispatcher(),
		logger:   xlog.Default(),
		subs:     make(map[ulink.URI]*topicSub),
	}
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}
	return t, nil
}

// Send publishes the wire envelope to the channel named by the source
// URI. Delivery to this process's own registrations loops back through
// the Redis subscription like any other subscriber's.
func (t *transport) Send(ctx context.Context, msg ulink.Message) error {
	if t.closed.Load() {
		return ulink.Errorf(ulink.CodeUnavailable, "redis transport is closed")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = ulink.NewMessageID()
	}

	data, err := encodeWire(&msg)
	if err != nil {
		return ulink.Errorf(ulink.CodeInvalidMessage, "encode wire envelope: %v", err)
	}
	if err := t.client.Publish(ctx, msg.Source.String(), data).Err(); err != nil {
		return ulink.Errorf(ulink.CodeUnavailable, "redis publish: %v", err)
	}
	return nil
}

// RegisterListener records the registration locally and ensures exactly
// one Redis subscription exists for the topic's channel. The
// subscription is confirmed before the call returns, so every
// subsequent matching Send dispatches to the listener.
func (t *transport) RegisterListener(ctx context.Context, topic ulink.URI, sink *ulink.URI, l ulink.Listener) (*ulink.Registration, error) {
	if t.closed.Load() {
		return nil, ulink.Errorf(ulink.CodeUnavailable, "redis transport is closed")
	}

	reg, err := t.registry.Register(topic, sink, l)
	if err != nil {
		return nil, err
	}

	if err := t.acquireSub(ctx, topic); err != nil {
		_ = t.registry.Unregister(reg)
		return nil, err
	}
	return reg, nil
}

func (t *transport) acquireSub(ctx context.Context, topic ulink.URI) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.subs[topic]; ok {
		s.refs++
		return nil
	}

	pubsub := t.client.Subscribe(ctx, topic.String())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return ulink.Errorf(ulink.CodeUnavailable, "redis subscribe %s: %v", topic, err)
	}

	s := &topicSub{
		pubsub: pubsub,
		done:   make(chan struct{}),
		refs:   1,
	}
	t.subs[topic] = s

	go t.reader(s)
	return nil
}

// reader drains one topic channel until its subscription closes,
// matching each decoded envelope against the local registry.
func (t *transport) reader(s *topicSub) {
	defer close(s.done)
	for rm := range s.pubsub.Channel() {
		msg, err := decodeWire([]byte(rm.Payload))
		if err != nil {
			t.logger.Warn().Err(err).Msg("ulink/redispubsub: dropping undecodable message")
			continue
		}
		for _, l := range t.registry.Match(&msg) {
			if err := t.disp.Dispatch(l, msg); err != nil {
				t.logger.Warn().Err(err).Msg("ulink/redispubsub: dispatch failed")
			}
		}
	}
}

// UnregisterListener removes the registration and releases the topic's
// Redis subscription once no registration needs it.
func (t *transport) UnregisterListener(_ context.Context, reg *ulink.Registration) error {
	if t.closed.Load() {
		return ulink.Errorf(ulink.CodeUnavailable, "redis transport is closed")
	}
	if reg == nil {
		return ulink.Errorf(ulink.CodeInvalidArgument, "registration handle must not be nil")
	}

	if err := t.registry.Unregister(reg); err != nil {
		return err
	}
	t.releaseSub(reg.Topic())
	return nil
}

func (t *transport) releaseSub(topic ulink.URI) {
	t.mu.Lock()
	s, ok := t.subs[topic]
	if ok {
		s.refs--
		if s.refs > 0 {
			t.mu.Unlock()
			return
		}
		delete(t.subs, topic)
	}
	t.mu.Unlock()

	if ok {
		_ = s.pubsub.Close()
		<-s.done
	}
}

// Close tears down every subscription and the client connection.
func (t *transport) Close(_ context.Context) error {
	var closeErr error
	t.closeOnce.Do(func() {
		t.closed.Store(true)

		t.mu.Lock()
		subs := make([]*topicSub, 0, len(t.subs))
		for _, s := range t.subs {
			subs = append(subs, s)
		}
		t.subs = make(map[ulink.URI]*topicSub)
		t.mu.Unlock()

		for _, s := range subs {
			_ = s.pubsub.Close()
			<-s.done
		}
		t.registry.Clear()

		if err := t.client.Close(); err != nil {
			closeErr = err
		}
	})
	return closeErr
}

// Use builds a Redis pub/sub transport through the registered factory,
// failing fast by panicking if construction fails (production-friendly
// when the transport must be available at startup).
func Use(cfg Config, opts ...Option) ulink.Transport {
	tr, err := ulink.NewTransport(TransportName, cfg.toMap())
	if err != nil {
		panic(fmt.Errorf("redispubsub.Use: %w", err))
	}
	t := tr.(*transport)
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}
	return t
}
