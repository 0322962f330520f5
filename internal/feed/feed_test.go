package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinforge/internal/game"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return client, mr
}

func TestHub_PublishPricesReachesSubscribers(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	err := hub.PublishPrices(context.Background(), []game.PriceUpdate{{Symbol: "01", Price: 101.5, Prev: 100}})
	require.NoError(t, err)

	select {
	case payload := <-ch:
		var msg Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, "prices", msg.Type)
		require.Len(t, msg.Updates, 1)
		assert.Equal(t, "01", msg.Updates[0].Symbol)
	case <-time.After(time.Second):
		t.Fatal("no payload delivered")
	}
}

func TestHub_SlowSubscriberKeepsNewest(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for i := 0; i < 100; i++ {
		hub.Broadcast([]byte{byte(i)})
	}

	var last []byte
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, []byte{99}, last)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestRedisBridge_RelaysPublishedPrices(t *testing.T) {
	client, _ := setupTestRedis(t)
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge := NewRedisBridge(client, "", hub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = bridge.Run(ctx) }()

	pub := NewRedisPublisher(client, "")
	update := []game.PriceUpdate{{Symbol: "03", Price: 149.2, Prev: 150}}

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case payload := <-ch:
			var msg Message
			require.NoError(t, json.Unmarshal(payload, &msg))
			require.Len(t, msg.Updates, 1)
			assert.Equal(t, "03", msg.Updates[0].Symbol)
			return
		case <-tick.C:
			require.NoError(t, pub.PublishPrices(ctx, update))
		case <-deadline:
			t.Fatal("bridge never relayed a payload")
		}
	}
}

func TestNewRedisClient(t *testing.T) {
	_, mr := setupTestRedis(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
