package redispubsub

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulinklabs/ulink"
)

const testAddr = "127.0.0.1:6379"

// testTransport returns a connected transport or skips when Redis is
// not available.
func testTransport(t *testing.T) ulink.Transport {
	t.Helper()

	probe := redis.NewClient(&redis.Options{Addr: testAddr})
	defer probe.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := probe.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	tr, err := NewTransport(Config{Addr: testAddr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close(context.Background()) })
	return tr
}

func TestRedis_PublishDelivers(t *testing.T) {
	ctx := context.Background()
	tr := testTransport(t)

	uris := ulink.NewStaticURIProvider("veh-redis-1", 0x1001, 1)
	pub := ulink.NewPublisher(tr, uris)

	var received atomic.Int64
	var lastText atomic.Value
	_, err := tr.RegisterListener(ctx, uris.ResourceURI(0xB4C1), nil, ulink.NewListener(func(msg ulink.Message) {
		if text, ok := msg.ExtractText(); ok {
			lastText.Store(text)
		}
		received.Add(1)
	}))
	require.NoError(t, err)

	payload, err := ulink.TextPayload("ping")
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, 0xB4C1, ulink.CallOptions{}, &payload))

	require.Eventually(t, func() bool { return received.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "ping", lastText.Load())
}

func TestRedis_UnregisterStopsDelivery(t *testing.T) {
	ctx := context.Background()
	tr := testTransport(t)

	uris := ulink.NewStaticURIProvider("veh-redis-2", 0x1001, 1)
	pub := ulink.NewPublisher(tr, uris)

	var received atomic.Int64
	reg, err := tr.RegisterListener(ctx, uris.ResourceURI(0xB4C1), nil, ulink.NewListener(func(ulink.Message) {
		received.Add(1)
	}))
	require.NoError(t, err)
	require.NoError(t, tr.UnregisterListener(ctx, reg))

	require.NoError(t, pub.Publish(ctx, 0xB4C1, ulink.CallOptions{}, nil))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, received.Load())
}

func TestRedis_DuplicateRegistrationRejected(t *testing.T) {
	ctx := context.Background()
	tr := testTransport(t)

	topic := ulink.URI{Authority: "veh-redis-3", Entity: 1, Version: 1, Resource: 1}
	l := ulink.NewListener(func(ulink.Message) {})

	_, err := tr.RegisterListener(ctx, topic, nil, l)
	require.NoError(t, err)

	_, err = tr.RegisterListener(ctx, topic, nil, l)
	assert.True(t, errors.Is(err, ulink.ErrAlreadyExists))
}

func TestRedis_NotificationSinkFiltering(t *testing.T) {
	ctx := context.Background()
	tr := testTransport(t)

	sender := ulink.NewStaticURIProvider("veh-redis-4", 0x2002, 1)
	n := ulink.NewNotifier(tr, sender)

	topic := sender.ResourceURI(0xD100)
	dest := ulink.URI{Authority: "veh-redis-5", Entity: 0x1001, Version: 1, Resource: 0xD100}
	elsewhere := ulink.URI{Authority: "veh-redis-6", Entity: 9, Version: 1, Resource: 0xD100}

	var matched, unmatched atomic.Int64
	_, err := tr.RegisterListener(ctx, topic, &dest, ulink.NewListener(func(ulink.Message) { matched.Add(1) }))
	require.NoError(t, err)
	_, err = tr.RegisterListener(ctx, topic, &elsewhere, ulink.NewListener(func(ulink.Message) { unmatched.Add(1) }))
	require.NoError(t, err)

	require.NoError(t, n.Notify(ctx, 0xD100, dest, ulink.CallOptions{}, nil))

	require.Eventually(t, func() bool { return matched.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, unmatched.Load())
}

func TestRedis_ClosedTransportRejects(t *testing.T) {
	ctx := context.Background()
	tr := testTransport(t)
	require.NoError(t, tr.Close(ctx))

	topic := ulink.URI{Authority: "veh-redis-7", Entity: 1, Version: 1, Resource: 1}
	err := tr.Send(ctx, ulink.NewPublishMessage(topic, ulink.CallOptions{}, nil, time.Now()))
	assert.True(t, errors.Is(err, ulink.ErrUnavailable))
}
