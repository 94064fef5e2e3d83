package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/config"
)

// IdempotencyStoreFactory builds the idempotency store backing duplicate
// payment detection, preferring Redis and degrading to process-local memory.
type IdempotencyStoreFactory struct {
	redisConfig config.RedisConfig
	logger      *zap.Logger
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{redisConfig: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore connects a Redis-backed store, falling back to an in-memory
// one when Redis cannot be reached. The in-memory store does not share
// state across instances, so a retried payment submission can slip through
// twice in distributed deployments; the fallback is logged at warn level
// for that reason.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return store, nil
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(fmt.Errorf("redis idempotency store: %w", err)),
	)
	return NewInMemoryIdempotencyStore(), nil
}
