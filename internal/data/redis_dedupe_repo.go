package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupeRepoConfig holds configuration options for the dedupe repository.
type RedisDedupeRepoConfig struct {
	Logger    *slog.Logger
	KeyPrefix string
}

// RedisDedupeRepo records processed message ids in Redis so redelivered
// messages can be dropped before they hit the worker pipeline. Keys expire on
// their own; the trace store remains the source of truth and this layer is
// strictly best-effort.
type RedisDedupeRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *slog.Logger
}

// NewRedisDedupeRepo creates a new RedisDedupeRepo backed by the given client.
func NewRedisDedupeRepo(client redis.UniversalClient, cfg RedisDedupeRepoConfig) *RedisDedupeRepo {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "mansionwatch:dedupe"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisDedupeRepo{
		client:    client,
		keyPrefix: prefix,
		logger:    logger,
	}
}

// MarkProcessed claims a message id for processing. Returns true when this
// call made the claim, false when another delivery already holds it.
func (r *RedisDedupeRepo) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%s", r.keyPrefix, messageID)
	claimed, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark message processed: %w", err)
	}
	return claimed, nil
}
