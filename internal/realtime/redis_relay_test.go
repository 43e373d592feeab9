package realtime

import (
	"context"
	"load-tracking-service/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, client *redis.Client, hub *Hub) *RedisRelay {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	relay := NewRedisRelay(client, "loads-test", hub, nil)
	require.NoError(t, relay.Start(ctx, 2*time.Second))
	require.True(t, relay.Listening())
	return relay
}

func waitFrames(t *testing.T, s *Subscriber, n int) []Frame {
	t.Helper()
	var got []Frame
	require.Eventually(t, func() bool {
		got = append(got, drain(s)...)
		return len(got) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestRedisRelayDeliversThroughChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(nil)
	watcher := NewSubscriber("w", 8)
	other := NewSubscriber("o", 8)
	hub.Register(watcher)
	hub.Register(other)
	hub.Subscribe("load-1", watcher)
	relay := startRelay(t, client, hub)

	ctx := context.Background()
	require.NoError(t, relay.Publish(ctx, event(ports.EventLocationUpdate, "load-1", 3, `{"lat":11}`)))
	require.NoError(t, relay.BroadcastAll(ctx, event(ports.EventLoadsUpdated, "load-1", 3, `{"action":"updated"}`)))

	got := waitFrames(t, watcher, 2)
	assert.Equal(t, ports.EventLocationUpdate, got[0].Type)
	assert.JSONEq(t, `{"lat":11}`, string(got[0].Payload))
	assert.Equal(t, ports.EventLoadsUpdated, got[1].Type)

	others := waitFrames(t, other, 1)
	require.Len(t, others, 1)
	assert.Equal(t, ports.EventLoadsUpdated, others[0].Type)
}

func TestRedisRelaySkipsMalformedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(nil)
	sub := NewSubscriber("s", 8)
	hub.Register(sub)
	relay := startRelay(t, client, hub)

	ctx := context.Background()
	require.NoError(t, client.Publish(ctx, "loads-test", "not json").Err())
	require.NoError(t, client.Publish(ctx, "loads-test", `{"scope":"sideways","event":{"name":"x","loadId":"l","seq":1}}`).Err())

	require.NoError(t, relay.BroadcastAll(ctx, event(ports.EventLoadsUpdated, "load-9", 1, `{}`)))

	got := waitFrames(t, sub, 1)
	require.Len(t, got, 1)
	assert.Equal(t, ports.EventLoadsUpdated, got[0].Type)
}

func TestRedisRelayFallsBackToLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	hub := NewHub(nil)
	sub := NewSubscriber("s", 8)
	hub.Register(sub)
	hub.Subscribe("load-1", sub)

	relay := NewRedisRelay(client, "loads-test", hub, nil)
	require.NoError(t, relay.Publish(context.Background(), event(ports.EventLocationUpdate, "load-1", 2, `{}`)))

	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, ports.EventLocationUpdate, got[0].Type)
}

func TestRedisRelayStartFailsWithoutRedisAndDeliversLocally(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	hub := NewHub(nil)
	sub := NewSubscriber("s", 8)
	hub.Register(sub)
	hub.Subscribe("load-1", sub)

	relay := NewRedisRelay(client, "loads-test", hub, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.Error(t, relay.Start(ctx, 2*time.Second))
	assert.False(t, relay.Listening())

	require.NoError(t, relay.Publish(context.Background(), event(ports.EventLocationUpdate, "load-1", 2, `{}`)))
	require.NoError(t, relay.BroadcastAll(context.Background(), event(ports.EventLoadsUpdated, "load-1", 2, `{}`)))

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, ports.EventLocationUpdate, got[0].Type)
	assert.Equal(t, ports.EventLoadsUpdated, got[1].Type)
}
