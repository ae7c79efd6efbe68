package repository

import (
	"context"
	"time"
)

// SharedCache is the Tier-2 (C3) shared key/value primitive backing the
// artifact cache, the single-flight lock, the job-index pointer, the job
// queue list, and rate-limit buckets. All string values; callers encode
// their own payloads.
type SharedCache interface {
	// Get returns the value for key, or ("", false, nil) on miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL (0 = no expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes a key.
	Del(ctx context.Context, key string) error

	// SetNX sets key to value only if it does not already exist, with the
	// given TTL. Returns true if this call acquired it.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Incr atomically increments key (creating it at 0 first) and applies
	// ttl only on first creation. Returns the post-increment value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// CompareAndSwap atomically replaces the value at key with newValue
	// only if the current value equals oldValue, preserving the key's
	// remaining TTL. Returns true if the swap happened.
	CompareAndSwap(ctx context.Context, key, oldValue, newValue string) (bool, error)

	// ScanPrefix performs a cursor-based iteration over keys sharing a
	// prefix, invoking fn for each. It must never take a full keyspace
	// snapshot. fn returning false stops the scan early.
	ScanPrefix(ctx context.Context, prefix string, fn func(key string) bool) error
}

// LocalCache is the Tier-1 (C2) process-local accelerator. Correctness of
// the system never depends on it; it is purely opportunistic.
type LocalCache interface {
	Get(key string) (value []byte, ok bool)
	Put(key string, value []byte, ttl time.Duration)
	Invalidate(key string)
	Clear()
}
