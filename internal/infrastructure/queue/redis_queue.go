// Package queue implements the Job Queue (C7): a durable FIFO backed by
// the Tier-2 shared cache's list primitive.
package queue

import (
	"context"
	"time"

	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
)

const defaultQueueKey = "queue:extraction"

// RedisQueue implements repository.JobQueue on top of repository.SharedCache
// list primitives (LPush/BRPop), matching the key layout in spec §6:
// queue:<name> holds job ids pushed by enqueue and popped by workers.
type RedisQueue struct {
	store    listCache
	queueKey string
}

// listCache is the subset of repository.SharedCache this package needs,
// narrowed so tests can fake just the list operations.
type listCache interface {
	LPush(ctx context.Context, key, value string) error
	BRPop(ctx context.Context, key string, timeout time.Duration) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// NewRedisQueue creates a RedisQueue using the default queue key.
func NewRedisQueue(store listCache) *RedisQueue {
	return &RedisQueue{store: store, queueKey: defaultQueueKey}
}

// Enqueue pushes a job id onto the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.store.LPush(ctx, q.queueKey, jobID); err != nil {
		return err
	}
	metrics.QueueDepth.Inc()
	return nil
}

// Dequeue performs a blocking pop with a bounded timeout.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	jobID, err := q.store.BRPop(ctx, q.queueKey, timeout)
	if err != nil {
		return "", err
	}
	metrics.QueueDepth.Dec()
	return jobID, nil
}

// Depth reports the current queue length.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.store.LLen(ctx, q.queueKey)
}

// Compile-time verification that RedisQueue implements repository.JobQueue.
var _ repository.JobQueue = (*RedisQueue)(nil)
