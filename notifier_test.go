package ulink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Notify(t *testing.T) {
	tr := newRecordingTransport()
	uris := NewStaticURIProvider("veh-1", 0x1001, 1)
	n := NewNotifier(tr, uris)

	dest := URI{Authority: "veh-2", Entity: 0x2002, Version: 1, Resource: 0xD100}
	payload, err := TextPayload("alert")
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), 0xD100, dest, CallOptions{}, &payload))

	msg := tr.lastSent(t)
	assert.Equal(t, KindNotification, msg.Kind)
	assert.Equal(t, uris.ResourceURI(0xD100), msg.Source)
	require.NotNil(t, msg.Sink)
	assert.Equal(t, dest, *msg.Sink)
}

func TestNotifier_NotifyWithoutPayload(t *testing.T) {
	tr := newRecordingTransport()
	n := NewNotifier(tr, NewStaticURIProvider("veh-1", 0x1001, 1))

	dest := URI{Authority: "veh-2", Entity: 0x2002, Version: 1, Resource: 0xD100}
	require.NoError(t, n.Notify(context.Background(), 0xD100, dest, CallOptions{}, nil))

	msg := tr.lastSent(t)
	assert.Nil(t, msg.Payload)
	_, ok := msg.ExtractText()
	assert.False(t, ok)
}

func TestNotifier_StartStopListening(t *testing.T) {
	tr := newRecordingTransport()
	n := NewNotifier(tr, NewStaticURIProvider("veh-1", 0x1001, 1))
	topic := URI{Authority: "veh-1", Entity: 0x1001, Version: 1, Resource: 0xD100}

	require.NoError(t, n.StartListening(context.Background(), topic, NewListener(noop)))
	assert.Equal(t, 1, tr.registry.TopicCount(topic))

	require.NoError(t, n.StopListening(context.Background(), topic))
	assert.Zero(t, tr.registry.TopicCount(topic))
}

func TestNotifier_SecondStartRejected(t *testing.T) {
	tr := newRecordingTransport()
	n := NewNotifier(tr, NewStaticURIProvider("veh-1", 0x1001, 1))
	topic := URI{Authority: "veh-1", Entity: 0x1001, Version: 1, Resource: 0xD100}

	require.NoError(t, n.StartListening(context.Background(), topic, NewListener(noop)))

	// Listening twice on the same topic is rejected, even with a
	// different callback; the first registration stays intact.
	err := n.StartListening(context.Background(), topic, NewListener(noop))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.Equal(t, 1, tr.registry.TopicCount(topic))
}

func TestNotifier_StopWithoutStart(t *testing.T) {
	tr := newRecordingTransport()
	n := NewNotifier(tr, NewStaticURIProvider("veh-1", 0x1001, 1))
	topic := URI{Authority: "veh-1", Entity: 0x1001, Version: 1, Resource: 0xD100}

	err := n.StopListening(context.Background(), topic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var ne *NotificationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, topic, ne.Topic)
}

func TestNotifier_BookkeepingSurvivesTransportFailure(t *testing.T) {
	tr := newRecordingTransport()
	n := NewNotifier(tr, NewStaticURIProvider("veh-1", 0x1001, 1))
	topic := URI{Authority: "veh-1", Entity: 0x1001, Version: 1, Resource: 0xD100}

	require.NoError(t, n.StartListening(context.Background(), topic, NewListener(noop)))

	// Simulate the transport losing the registration out from under the
	// notifier: StopListening surfaces the failure and keeps its entry,
	// so a retry still finds it.
	reg := func() *Registration {
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.listening[topic]
	}()
	require.NoError(t, tr.registry.Unregister(reg))

	err := n.StopListening(context.Background(), topic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	n.mu.Lock()
	_, stillTracked := n.listening[topic]
	n.mu.Unlock()
	assert.True(t, stillTracked)
}

func TestNotifier_NotifyWrapsTransportError(t *testing.T) {
	tr := newRecordingTransport()
	tr.sendErr = Errorf(CodeUnavailable, "channel closed")
	n := NewNotifier(tr, NewStaticURIProvider("veh-1", 0x1001, 1))

	dest := URI{Authority: "veh-2", Entity: 0x2002, Version: 1, Resource: 0xD100}
	err := n.Notify(context.Background(), 0xD100, dest, CallOptions{}, nil)
	require.Error(t, err)

	var ne *NotificationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, dest, ne.Topic)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
