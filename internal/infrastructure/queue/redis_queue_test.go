package queue

import (
	"context"
	"testing"
	"time"

	"github.com/transcriptapi/core/internal/domain/repository"
)

type fakeListCache struct {
	lists map[string][]string
}

func newFakeListCache() *fakeListCache {
	return &fakeListCache{lists: make(map[string][]string)}
}

func (f *fakeListCache) LPush(ctx context.Context, key, value string) error {
	f.lists[key] = append([]string{value}, f.lists[key]...)
	return nil
}

func (f *fakeListCache) BRPop(ctx context.Context, key string, timeout time.Duration) (string, error) {
	items := f.lists[key]
	if len(items) == 0 {
		return "", repository.ErrQueueEmpty
	}
	last := items[len(items)-1]
	f.lists[key] = items[:len(items)-1]
	return last, nil
}

func (f *fakeListCache) LLen(ctx context.Context, key string) (int64, error) {
	return int64(len(f.lists[key])), nil
}

func TestRedisQueue_EnqueueDequeueFIFO(t *testing.T) {
	q := NewRedisQueue(newFakeListCache())
	ctx := context.Background()

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, "job-2"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	first, err := q.Dequeue(ctx, time.Second)
	if err != nil || first != "job-1" {
		t.Fatalf("got %q err=%v, want job-1", first, err)
	}

	second, err := q.Dequeue(ctx, time.Second)
	if err != nil || second != "job-2" {
		t.Fatalf("got %q err=%v, want job-2", second, err)
	}
}

func TestRedisQueue_DequeueEmpty(t *testing.T) {
	q := NewRedisQueue(newFakeListCache())

	_, err := q.Dequeue(context.Background(), time.Second)
	if err == nil {
		t.Fatalf("expected ErrQueueEmpty")
	}
}

func TestRedisQueue_Depth(t *testing.T) {
	q := NewRedisQueue(newFakeListCache())
	ctx := context.Background()

	_ = q.Enqueue(ctx, "job-1")
	_ = q.Enqueue(ctx, "job-2")

	depth, err := q.Depth(ctx)
	if err != nil || depth != 2 {
		t.Fatalf("got depth=%d err=%v, want 2", depth, err)
	}
}
