// Package cache implements the Tier-2 (C3) shared key/value store on top
// of Redis, generalising the single-entity cache pattern into the shared
// primitive the rest of the core depends on: artifact cache, single-flight
// lock, job index, job queue list, and rate-limit buckets.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/transcriptapi/core/internal/domain/repository"
)

// RedisStore implements repository.SharedCache using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the value for key, or ("", false, nil) on miss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Del removes a key.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// SetNX sets key to value only if absent, with the given TTL. This backs
// the single-flight lock (spec §4.5): the leader is whoever wins the NX.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Incr atomically increments key and sets its TTL to ttl, refreshing the TTL
// on every call.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr pipeline: %w", err)
	}
	return incr.Val(), nil
}

// CompareAndSwap atomically replaces the value at key with newValue only
// if the current value equals oldValue, preserving the key's remaining
// TTL. Implemented via WATCH/MULTI since go-redis has no native CAS.
func (s *RedisStore) CompareAndSwap(ctx context.Context, key, oldValue, newValue string) (bool, error) {
	swapped := false

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if current != oldValue {
			return nil
		}

		ttl, err := tx.TTL(ctx, key).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl > 0 {
				pipe.Set(ctx, key, newValue, ttl)
			} else {
				pipe.Set(ctx, key, newValue, 0)
			}
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return false, nil
		}
		return false, fmt.Errorf("redis cas: %w", err)
	}
	return swapped, nil
}

// ScanPrefix performs a cursor-based SCAN over keys sharing prefix,
// invoking fn for each. Never takes a full keyspace snapshot (no KEYS).
func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string, fn func(key string) bool) error {
	var cursor uint64
	match := prefix + "*"

	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}

		for _, k := range keys {
			if !fn(k) {
				return nil
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// LPush pushes a value onto the left of a Redis list, used by the job
// queue (C7) for enqueue.
func (s *RedisStore) LPush(ctx context.Context, key, value string) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// BRPop performs a blocking pop from the right of a Redis list with a
// bounded timeout, used by the job queue (C7) for dequeue.
func (s *RedisStore) BRPop(ctx context.Context, key string, timeout time.Duration) (string, error) {
	result, err := s.client.BRPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrQueueEmpty
		}
		return "", fmt.Errorf("redis brpop: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) != 2 {
		return "", fmt.Errorf("redis brpop: unexpected result shape %v", result)
	}
	return result[1], nil
}

// LLen reports the current length of a Redis list.
func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return n, nil
}

// Compile-time verification that RedisStore implements repository.SharedCache.
var _ repository.SharedCache = (*RedisStore)(nil)
