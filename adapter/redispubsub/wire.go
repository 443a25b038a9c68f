package redispubsub

import (
	"encoding/json"
	"time"

	"github.com/ulinklabs/ulink"
)

// Wire envelope. Payload bytes ride base64-encoded inside the JSON
// document; the format tag travels alongside so the receiving side
// reconstructs an identical Payload value.

type wireURI struct {
	Authority string `json:"authority"`
	Entity    uint32 `json:"entity"`
	Version   uint8  `json:"version"`
	Resource  uint16 `json:"resource"`
}

type wirePayload struct {
	Format uint8  `json:"format"`
	Data   []byte `json:"data,omitempty"`
}

type wireMessage struct {
	ID       string       `json:"id"`
	Kind     uint8        `json:"kind"`
	Source   wireURI      `json:"source"`
	Sink     *wireURI     `json:"sink,omitempty"`
	Priority uint8        `json:"priority,omitempty"`
	TTLNs    int64        `json:"ttl_ns,omitempty"`
	SentAtNs int64        `json:"sent_at_ns,omitempty"`
	Payload  *wirePayload `json:"payload,omitempty"`
}

func toWireURI(u ulink.URI) wireURI {
	return wireURI{
		Authority: u.Authority,
		Entity:    u.Entity,
		Version:   u.Version,
		Resource:  u.Resource,
	}
}

func fromWireURI(w wireURI) ulink.URI {
	return ulink.URI{
		Authority: w.Authority,
		Entity:    w.Entity,
		Version:   w.Version,
		Resource:  w.Resource,
	}
}

func encodeWire(m *ulink.Message) ([]byte, error) {
	w := wireMessage{
		ID:       m.ID,
		Kind:     uint8(m.Kind),
		Source:   toWireURI(m.Source),
		Priority: uint8(m.Priority),
		TTLNs:    int64(m.TTL),
	}
	if m.Sink != nil {
		sink := toWireURI(*m.Sink)
		w.Sink = &sink
	}
	if !m.SentAt.IsZero() {
		w.SentAtNs = m.SentAt.UnixNano()
	}
	if m.Payload != nil {
		w.Payload = &wirePayload{
			Format: uint8(m.Payload.Format()),
			Data:   m.Payload.Data(),
		}
	}
	return json.Marshal(&w)
}

func decodeWire(data []byte) (ulink.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return ulink.Message{}, ulink.Errorf(ulink.CodeInvalidMessage, "decode wire envelope: %v", err)
	}

	m := ulink.Message{
		ID:       w.ID,
		Kind:     ulink.Kind(w.Kind),
		Source:   fromWireURI(w.Source),
		Priority: ulink.Priority(w.Priority),
		TTL:      time.Duration(w.TTLNs),
	}
	if w.Sink != nil {
		sink := fromWireURI(*w.Sink)
		m.Sink = &sink
	}
	if w.SentAtNs > 0 {
		m.SentAt = time.Unix(0, w.SentAtNs)
	}
	if w.Payload != nil {
		p := ulink.NewPayload(w.Payload.Data, ulink.Format(w.Payload.Format))
		m.Payload = &p
	}
	if err := m.Validate(); err != nil {
		return ulink.Message{}, err
	}
	return m, nil
}
