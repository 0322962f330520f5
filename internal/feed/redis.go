package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"coinforge/internal/game"
)

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) PublishPrices(ctx context.Context, updates []game.PriceUpdate) error {
	payload, err := encode(updates)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	return nil
}

// RedisBridge relays a Redis channel into a Hub so every process serving
// streams sees ticks published by any other.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *slog.Logger
}

func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBridge{client: client, channel: channel, hub: hub, log: logger}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	for {
		pubsub := b.client.Subscribe(ctx, b.channel)
		ch := pubsub.Channel(redis.WithChannelSize(1024))

	relay:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return nil
			case msg, ok := <-ch:
				if !ok {
					break relay
				}
				b.hub.Broadcast([]byte(msg.Payload))
			}
		}

		_ = pubsub.Close()
		b.log.Warn("price feed subscription dropped, resubscribing", "channel", b.channel)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}
