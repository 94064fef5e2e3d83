package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
)

const (
	// receiptCounterKeyPrefix is completed with the calendar day, e.g.
	// "receipt_counter_20240115". One counter per day keeps numbers short.
	receiptCounterKeyPrefix = "receipt_counter_"
	receiptDayFormat        = "20060102"
	receiptPrefix           = "RCP"

	// suffixAlphabet omits characters that are easy to misread on a
	// printed receipt (0/O, 1/I/L).
	suffixAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	suffixLength   = 4

	// defaultCounterTTL keeps a daily counter alive long enough to cover
	// clock skew and late postings, then lets Redis reclaim it.
	defaultCounterTTL = 48 * time.Hour
)

// RedisReceiptCounter issues receipt numbers from an atomic per-day Redis
// counter. A receipt number looks like "RCP-20240115-0007-K7QZ": calendar
// day, zero-padded daily sequence, random suffix.
//
// When Redis is unreachable the counter degrades to a pseudo-sequence
// derived from the time of day. The random suffix keeps the number unique
// in that mode, so a counter outage slows nothing down and blocks no
// payment. Numbers allocated for payments that later fail to persist are
// simply burned; the sequence has gaps by design of the callers.
type RedisReceiptCounter struct {
	client     *redis.Client
	counterTTL time.Duration
	logger     *zap.Logger
	metrics    *telemetry.LedgerMetrics
	now        func() time.Time
	suffix     func() string
}

// NewRedisReceiptCounter connects to Redis and returns a ready counter.
// A zero counterTTL selects the 48h default.
func NewRedisReceiptCounter(cfg RedisConfig, counterTTL time.Duration, logger *zap.Logger) (*RedisReceiptCounter, error) {
	client, err := cfg.dial()
	if err != nil {
		return nil, err
	}
	return NewRedisReceiptCounterWithClient(client, counterTTL, logger), nil
}

// NewReceiptCounterWithFallback builds a Redis-backed counter and keeps
// going when Redis is unreachable at startup: the counter issues
// time-derived numbers until Redis recovers. A receipt counter outage
// must never stop the server from taking payments.
func NewReceiptCounterWithFallback(cfg RedisConfig, counterTTL time.Duration, logger *zap.Logger) *RedisReceiptCounter {
	counter, err := NewRedisReceiptCounter(cfg, counterTTL, logger)
	if err == nil {
		return counter
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("Receipt counter Redis unreachable at startup, issuing time-derived receipt numbers until it recovers",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Error(err))

	return NewRedisReceiptCounterWithClient(cfg.client(), counterTTL, logger)
}

// NewRedisReceiptCounterWithClient creates a counter on an existing Redis
// client. This is useful for testing or when sharing a client across
// components.
func NewRedisReceiptCounterWithClient(client *redis.Client, counterTTL time.Duration, logger *zap.Logger) *RedisReceiptCounter {
	if counterTTL <= 0 {
		counterTTL = defaultCounterTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisReceiptCounter{
		client:     client,
		counterTTL: counterTTL,
		logger:     logger,
		now:        time.Now,
		suffix:     randomSuffix,
	}
}

// SetMetrics sets the ledger metrics collector
func (c *RedisReceiptCounter) SetMetrics(lm *telemetry.LedgerMetrics) {
	c.metrics = lm
}

// SetClock overrides the wall clock, for deterministic tests
func (c *RedisReceiptCounter) SetClock(now func() time.Time) {
	c.now = now
}

// SetSuffixSource overrides the random suffix source, for deterministic tests
func (c *RedisReceiptCounter) SetSuffixSource(suffix func() string) {
	c.suffix = suffix
}

// Next allocates the next receipt number for the given day. It never
// returns an error: any counter failure falls through to the time-derived
// pseudo-sequence instead.
func (c *RedisReceiptCounter) Next(ctx context.Context, day time.Time) (string, error) {
	stamp := day.Format(receiptDayFormat)
	key := receiptCounterKeyPrefix + stamp

	seq, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		c.logger.Warn("Receipt counter unavailable, using time-derived fallback",
			zap.String("key", key),
			zap.Error(err),
		)
		if c.metrics != nil {
			c.metrics.RecordReceiptFallback(ctx)
		}
		return formatReceiptNo(stamp, c.pseudoSequence(), c.suffix()), nil
	}

	// First allocation of the day creates the key; bound its lifetime so
	// stale day counters don't accumulate.
	if seq == 1 {
		if err := c.client.Expire(ctx, key, c.counterTTL).Err(); err != nil {
			c.logger.Warn("Failed to set TTL on receipt counter key",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	return formatReceiptNo(stamp, seq, c.suffix()), nil
}

// Close closes the Redis client
func (c *RedisReceiptCounter) Close() error {
	return c.client.Close()
}

// pseudoSequence stands in for the counter when Redis is down: the number
// of seconds elapsed in the current day. Two payments in the same second
// still diverge through the random suffix.
func (c *RedisReceiptCounter) pseudoSequence() int64 {
	now := c.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int64(now.Sub(midnight) / time.Second)
}

// formatReceiptNo composes "RCP-<day>-<sequence>-<suffix>". Sequences
// below 10000 are zero-padded to four digits; busier days widen naturally.
func formatReceiptNo(dayStamp string, seq int64, suffix string) string {
	return fmt.Sprintf("%s-%s-%04d-%s", receiptPrefix, dayStamp, seq, suffix)
}

// randomSuffix draws suffixLength characters from suffixAlphabet using
// UUID entropy.
func randomSuffix() string {
	id := uuid.New()
	buf := make([]byte, suffixLength)
	for i := range buf {
		buf[i] = suffixAlphabet[int(id[i])%len(suffixAlphabet)]
	}
	return string(buf)
}

// Ensure RedisReceiptCounter implements ReceiptNumberGenerator
var _ tuition.ReceiptNumberGenerator = (*RedisReceiptCounter)(nil)
