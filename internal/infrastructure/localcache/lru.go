// Package localcache implements the Tier-1 (C2) process-local cache: a
// bounded LRU with per-entry TTL. It is an opportunistic accelerator —
// correctness of the system never depends on it.
package localcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/transcriptapi/core/internal/domain/repository"
)

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// LRU is a bounded, TTL-aware, process-local cache. Safe for concurrent use.
type LRU struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits   int64
	misses int64
}

// New creates an LRU with the given capacity. capacity <= 0 disables
// eviction by count (TTL remains the only reclaim path).
func New(capacity int) *LRU {
	return &LRU{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value for key, or (nil, false) on miss or expiry.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Put stores value under key with the given TTL, evicting the least
// recently used entry if the cache is at capacity.
func (c *LRU) Put(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(el)
		return
	}

	e := &entry{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	el := c.order.PushFront(e)
	c.items[key] = el

	if c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Invalidate removes key from the cache.
func (c *LRU) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear empties the cache.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns cumulative hit/miss counters.
func (c *LRU) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the current number of live entries (including expired ones
// not yet reclaimed).
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

// Compile-time verification that LRU implements repository.LocalCache.
var _ repository.LocalCache = (*LRU)(nil)
