package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schoolerp/backend/internal/domain/shared"
)

const idempotencyKeyPrefix = "payment:idempotency:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// client builds an unverified Redis client for this configuration.
func (cfg RedisConfig) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// dial builds a client and verifies the connection with a bounded ping.
func (cfg RedisConfig) dial() (*redis.Client, error) {
	client := cfg.client()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisIdempotencyStore implements shared.IdempotencyStore on Redis so
// that multiple instances share duplicate-payment state.
type RedisIdempotencyStore struct {
	client *redis.Client
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// NewRedisIdempotencyStore connects to Redis and returns a ready store.
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client, err := cfg.dial()
	if err != nil {
		return nil, err
	}
	return &RedisIdempotencyStore{client: client}, nil
}

// MarkProcessed atomically claims a key for the given TTL. It reports
// true when this call claimed the key and false when an earlier request
// already holds it.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark key as processed: %w", err)
	}
	return claimed, nil
}

// IsProcessed reports whether a key has already been claimed.
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, idempotencyKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if key is processed: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
