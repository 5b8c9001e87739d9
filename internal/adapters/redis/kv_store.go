// Package redis provides Redis-based adapters for the inventory console.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/inventory-console/internal/ports"
)

var _ ports.KeyValueStore = (*KVStore)(nil)

const (
	defaultPrefix    = "inventory-console:"
	defaultOpTimeout = 2 * time.Second
	scanBatchSize    = 100
)

// KVStore keeps session entries in Redis under a key prefix.
// Redis errors are logged and degrade to absent/no-op, as the store contract requires.
type KVStore struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
	logger    *slog.Logger
}

// KVStoreOptions groups KVStore dependencies.
type KVStoreOptions struct {
	Client    redis.UniversalClient
	Prefix    string
	OpTimeout time.Duration
	Logger    *slog.Logger
}

// NewKVStore creates a Redis-backed key-value store.
func NewKVStore(opts KVStoreOptions) *KVStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		client:    opts.Client,
		prefix:    prefix,
		opTimeout: timeout,
		logger:    logger.With("component", "kvstore_redis"),
	}
}

func (s *KVStore) Get(key string) (string, bool) {
	if s.client == nil || key == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "redis get failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (s *KVStore) Set(key, value string) {
	if s.client == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		s.logger.WarnContext(ctx, "redis set failed", "key", key, "error", err)
	}
}

func (s *KVStore) Remove(key string) {
	if s.client == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.logger.WarnContext(ctx, "redis del failed", "key", key, "error", err)
	}
}

// Clear deletes every key under the store prefix and nothing else.
func (s *KVStore) Clear() {
	if s.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatchSize).Result()
		if err != nil {
			s.logger.WarnContext(ctx, "redis scan failed", "error", err)
			return
		}
		if len(keys) > 0 {
			// One DEL per key keeps cluster deployments free of CROSSSLOT errors.
			pipe := s.client.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				s.logger.WarnContext(ctx, "redis del failed", "count", len(keys), "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
