package repository

import (
	"context"
	"time"
)

// JobQueue is the durable FIFO (C7) of extraction requests, backed by the
// Tier-2 store. Ordering is strict FIFO in aggregate across all workers;
// no per-fingerprint ordering is promised beyond the single-flight
// guarantee the Cache Coordinator provides.
type JobQueue interface {
	// Enqueue pushes a job id onto the queue. The job record itself is
	// written separately by the caller; these two writes may be
	// non-atomic, so consumers must tolerate an orphaned list entry.
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue performs a blocking pop with a bounded timeout. Returns
	// ErrQueueEmpty if timeout elapses with nothing ready.
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)

	// Depth reports the current queue length, for admin/queue_stats.
	Depth(ctx context.Context) (int64, error)
}
