package redispubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulinklabs/ulink"
)

var (
	wireSource = ulink.URI{Authority: "veh-1", Entity: 0x1001, Version: 1, Resource: 0xB4C1}
	wireSink   = ulink.URI{Authority: "veh-2", Entity: 0x2002, Version: 1, Resource: 0xD100}
)

func TestWire_PublishRoundTrip(t *testing.T) {
	payload, err := ulink.TextPayload("ping")
	require.NoError(t, err)

	in := ulink.NewPublishMessage(wireSource, ulink.CallOptions{Priority: ulink.PriorityRealtime, TTL: time.Second}, &payload, time.Now())

	data, err := encodeWire(&in)
	require.NoError(t, err)

	out, err := decodeWire(data)
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, ulink.KindPublish, out.Kind)
	assert.Equal(t, wireSource, out.Source)
	assert.Nil(t, out.Sink)
	assert.Equal(t, ulink.PriorityRealtime, out.Priority)
	assert.Equal(t, time.Second, out.TTL)
	assert.Equal(t, in.SentAt.UnixNano(), out.SentAt.UnixNano())

	text, ok := out.ExtractText()
	require.True(t, ok)
	assert.Equal(t, "ping", text)
}

func TestWire_NotificationRoundTrip(t *testing.T) {
	in := ulink.NewNotificationMessage(wireSource, wireSink, ulink.CallOptions{}, nil, time.Now())

	data, err := encodeWire(&in)
	require.NoError(t, err)

	out, err := decodeWire(data)
	require.NoError(t, err)

	assert.Equal(t, ulink.KindNotification, out.Kind)
	require.NotNil(t, out.Sink)
	assert.Equal(t, wireSink, *out.Sink)
	assert.Nil(t, out.Payload)
}

func TestWire_RawPayloadFormatPreserved(t *testing.T) {
	p := ulink.BytesPayload([]byte{0x00, 0x01, 0xFF})
	in := ulink.NewPublishMessage(wireSource, ulink.CallOptions{}, &p, time.Now())

	data, err := encodeWire(&in)
	require.NoError(t, err)

	out, err := decodeWire(data)
	require.NoError(t, err)

	require.NotNil(t, out.Payload)
	assert.Equal(t, ulink.FormatRaw, out.Payload.Format())
	assert.Equal(t, []byte{0x00, 0x01, 0xFF}, out.Payload.Data())

	_, ok := out.ExtractText()
	assert.False(t, ok)
}

func TestWire_DecodeRejectsGarbage(t *testing.T) {
	_, err := decodeWire([]byte("{not json"))
	require.Error(t, err)
	assert.Equal(t, ulink.CodeInvalidMessage, ulink.CodeOf(err))
}

func TestWire_DecodeValidates(t *testing.T) {
	// A structurally valid envelope with broken addressing is rejected.
	_, err := decodeWire([]byte(`{"id":"x","kind":1,"source":{"authority":"","entity":0,"version":0,"resource":0}}`))
	require.Error(t, err)
	assert.Equal(t, ulink.CodeInvalidMessage, ulink.CodeOf(err))
}
