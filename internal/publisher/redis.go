package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans events out over Redis Pub/Sub. Suitable when the
// subscribing edge is a fleet of websocket/SSE gateways on the same
// Redis, instead of a hosted push API.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a Redis-based publisher.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	e, err := NewEvent(event, channel, payload)
	if err != nil {
		return fmt.Errorf("failed to build event: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.client.Publish(ctx, channel, data).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
