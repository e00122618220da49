package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streampulse/viewership-service/internal/domain"
)

// RedisCountCache is the shared edge tier of the count cache, backed by
// the same Redis that holds presence data.
type RedisCountCache struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis connection configuration for the cache tier.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisCountCache creates a Redis-backed count cache.
func NewRedisCountCache(cfg RedisConfig, prefix string) (*RedisCountCache, error) {
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

	if prefix == "" {
		prefix = "viewcount"
	}

	return &RedisCountCache{client: client, prefix: prefix}, nil
}

func (c *RedisCountCache) buildKey(streamID string) string {
	return fmt.Sprintf("%s:stream:%s", c.prefix, streamID)
}

func (c *RedisCountCache) Get(ctx context.Context, streamID string) (domain.CountSnapshot, error) {
	data, err := c.client.Get(ctx, c.buildKey(streamID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CountSnapshot{}, ErrCacheMiss
		}
		return domain.CountSnapshot{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var snap domain.CountSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.CountSnapshot{}, fmt.Errorf("failed to unmarshal cached count: %w", err)
	}
	return snap, nil
}

func (c *RedisCountCache) Set(ctx context.Context, streamID string, snap domain.CountSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal count snapshot: %w", err)
	}

	if err := c.client.Set(ctx, c.buildKey(streamID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisCountCache) Close() error {
	return c.client.Close()
}
