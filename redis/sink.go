package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reugn/go-heartbeat"
)

// Client is the subset of the go-redis client used by the sink.
// *redis.Client and *redis.ClusterClient implement it.
type Client interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

var _ Client = (*redis.Client)(nil)

// HashSink represents a Redis hash heartbeat sink.
//
// Every metric is stored as a field of a single hash, so a write overwrites
// the previous value of the same key. If a TTL is set, the hash expires
// unless the device keeps reporting.
type HashSink struct {
	ctx    context.Context
	client Client
	hash   string
	ttl    time.Duration

	logger *slog.Logger
}

var _ heartbeat.Sink = (*HashSink)(nil)

// NewHashSink returns a new [HashSink] writing to the hash stored at the
// given key. A zero ttl disables expiration.
func NewHashSink(ctx context.Context, client Client, hash string, ttl time.Duration,
	logger *slog.Logger,
) (*HashSink, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if hash == "" {
		return nil, fmt.Errorf("hash key is empty")
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.Group("sink",
		slog.String("name", "redis.hash"),
		slog.String("hash", hash)))

	return &HashSink{
		ctx:    ctx,
		client: client,
		hash:   hash,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// SetUnsigned stores the value in the hash field named after the key.
func (s *HashSink) SetUnsigned(key heartbeat.Key, value uint32) error {
	if err := s.client.HSet(s.ctx, s.hash, key.Name, value).Err(); err != nil {
		s.logger.Error("Error in HSet", slog.String("key", key.Name),
			slog.Any("error", err))
		return fmt.Errorf("failed to set %s: %w", key.Name, err)
	}

	if s.ttl > 0 {
		if err := s.client.Expire(s.ctx, s.hash, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set expiration: %w", err)
		}
	}
	return nil
}

// Load returns all metric values currently stored in the hash.
func (s *HashSink) Load() (map[string]uint32, error) {
	fields, err := s.client.HGetAll(s.ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hash: %w", err)
	}

	values := make(map[string]uint32, len(fields))
	for name, field := range fields {
		value, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse value %q of %s: %w", field, name, err)
		}
		values[name] = uint32(value)
	}
	return values, nil
}
