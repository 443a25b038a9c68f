package ulink

import (
	"sync"

	"github.com/google/uuid"
)

// Registration is the opaque handle returned by a successful
// RegisterListener call and required for removal. Listener callables are
// not reliably comparable across runtimes, so the registry removes by
// token, never by re-deriving identity from the callback.
type Registration struct {
	token    string
	topic    URI
	sink     *URI
	listener Listener
}

// Topic returns the topic URI the registration was made for.
func (r *Registration) Topic() URI { return r.topic }

// Sink returns the registration's sink filter, or nil when it matches
// any sink.
func (r *Registration) Sink() *URI {
	if r.sink == nil {
		return nil
	}
	s := *r.sink
	return &s
}

// Token returns the registration's opaque identity.
func (r *Registration) Token() string { return r.token }

type registryKey struct {
	topic   URI
	sink    URI
	hasSink bool
}

func keyFor(topic URI, sink *URI) registryKey {
	k := registryKey{topic: topic}
	if sink != nil {
		k.sink = *sink
		k.hasSink = true
	}
	return k
}

// ListenerRegistry is the concurrent registration table shared by
// transport implementations: (topic, optional sink filter) to the set of
// registered listeners. An entry exists iff a successful Register call
// occurred and no matching Unregister has occurred since.
type ListenerRegistry struct {
	mu      sync.RWMutex
	entries map[registryKey][]*Registration
}

// NewListenerRegistry returns an empty registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{entries: make(map[registryKey][]*Registration)}
}

// Register adds a listener for (topic, sink). Re-registering a listener
// with the same identity for the same key is rejected with
// CodeAlreadyExists.
func (r *ListenerRegistry) Register(topic URI, sink *URI, l Listener) (*Registration, error) {
	if l == nil {
		return nil, Errorf(CodeInvalidArgument, "listener must not be nil")
	}
	if topic.IsZero() {
		return nil, Errorf(CodeInvalidArgument, "topic URI must not be empty")
	}
	key := keyFor(topic, sink)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.entries[key] {
		if listenersEqual(reg.listener, l) {
			return nil, Errorf(CodeAlreadyExists, "listener already registered for topic %s", topic)
		}
	}

	reg := &Registration{
		token:    uuid.NewString(),
		topic:    topic,
		listener: l,
	}
	if sink != nil {
		s := *sink
		reg.sink = &s
	}
	r.entries[key] = append(r.entries[key], reg)
	return reg, nil
}

// Unregister removes a registration by handle. It fails with
// CodeNotFound when no matching active registration exists.
func (r *ListenerRegistry) Unregister(reg *Registration) error {
	if reg == nil {
		return Errorf(CodeInvalidArgument, "registration handle must not be nil")
	}
	key := keyFor(reg.topic, reg.sink)

	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.entries[key]
	for i, candidate := range regs {
		if candidate.token == reg.token {
			regs = append(regs[:i], regs[i+1:]...)
			if len(regs) == 0 {
				delete(r.entries, key)
			} else {
				r.entries[key] = regs
			}
			return nil
		}
	}
	return Errorf(CodeNotFound, "no registration for topic %s", reg.topic)
}

// Match snapshots the listeners a message must be delivered to: exact
// topic match on the source URI, and for registrations carrying a sink
// filter, an exact match on the message sink. A registration without a
// sink filter matches any sink, including none.
func (r *ListenerRegistry) Match(msg *Message) []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Listener
	for _, reg := range r.entries[registryKey{topic: msg.Source}] {
		out = append(out, reg.listener)
	}
	if msg.Sink != nil {
		for _, reg := range r.entries[registryKey{topic: msg.Source, sink: *msg.Sink, hasSink: true}] {
			out = append(out, reg.listener)
		}
	}
	return out
}

// TopicCount returns the number of active registrations for a topic,
// across all sink filters.
func (r *ListenerRegistry) TopicCount(topic URI) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for key, regs := range r.entries {
		if key.topic == topic {
			n += len(regs)
		}
	}
	return n
}

// Len returns the total number of active registrations.
func (r *ListenerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, regs := range r.entries {
		n += len(regs)
	}
	return n
}

// Clear drops every registration. Transports call it on Close.
func (r *ListenerRegistry) Clear() {
	r.mu.Lock()
	r.entries = make(map[registryKey][]*Registration)
	r.mu.Unlock()
}
