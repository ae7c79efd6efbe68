package repository

import "context"

// WebhookTask is a hand-off message from the worker loop to the dispatch
// pool: "go attempt delivery for this terminal job". It carries the job id
// and an attempt counter (incremented each time the task is republished
// after a failed delivery); the dispatcher re-reads the authoritative job record before
// sending, so a stale or duplicate message is harmless.
type WebhookTask struct {
	JobID      string `json:"job_id"`
	Attempt    int    `json:"attempt"`
}

// WebhookQueue decouples the worker loop from webhook delivery latency:
// the worker hands off a WebhookTask and moves on to the next job; a small
// pool of dispatch goroutines drains the queue.
type WebhookQueue interface {
	// Publish enqueues a delivery attempt. Must not block the caller
	// beyond a bounded hand-off.
	Publish(ctx context.Context, task WebhookTask) error

	// Consume starts consuming webhook tasks. The handler is invoked for
	// each task; Consume returns when ctx is cancelled.
	Consume(ctx context.Context, handler func(task WebhookTask) error) error

	// Close releases the underlying connection.
	Close() error
}
