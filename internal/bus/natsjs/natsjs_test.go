package natsjs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fog-control/internal/bus/embeddednats"
	"fog-control/internal/events"
)

func startBus(t *testing.T) *Client {
	t.Helper()
	srv, err := embeddednats.Start(embeddednats.Config{
		Port:     14777,
		HTTPPort: 18777,
		StoreDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	c, err := Connect(Config{
		URL:     "nats://127.0.0.1:14777",
		Prefix:  "fogtest",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.EnsureStreams())
	return c
}

func TestPullConsumerDeliversPublished(t *testing.T) {
	c := startBus(t)
	ctx := context.Background()

	consumer, err := c.NewPullConsumer("test-sensor", events.DomainSensor+".*", 64)
	require.NoError(t, err)

	want := []byte(`{"device_id":"AQUA001"}`)
	require.NoError(t, c.Publish(ctx, events.SensorObserved, want))

	msgs, err := consumer.Fetch(ctx, 10, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, want, msgs[0].Data())
	require.NoError(t, msgs[0].Ack())
}

func TestFetchEmptyReturnsNoError(t *testing.T) {
	c := startBus(t)

	consumer, err := c.NewPullConsumer("test-empty", events.DomainDevice+".*", 64)
	require.NoError(t, err)

	msgs, err := consumer.Fetch(context.Background(), 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestFetchHonorsCancelledContext(t *testing.T) {
	c := startBus(t)

	consumer, err := c.NewPullConsumer("test-cancel", events.DomainAlert+".*", 64)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = consumer.Fetch(ctx, 10, time.Second)
	require.Error(t, err)
}
