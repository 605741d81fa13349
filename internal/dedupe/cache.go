// ABOUTME: Thread-safe TTL window for idempotency keys on inbound messages
// ABOUTME: The room service drops re-sent posts whose key was seen recently

package dedupe

import (
	"sync"
	"time"
)

// Cache tracks recently seen idempotency keys. Keys expire after the TTL and
// the cache holds at most maxSize keys, evicting the oldest first. Entries
// are kept in an insertion-order queue so eviction is O(1) amortized.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	queue   []string
	ttl     time.Duration
	maxSize int
}

// New creates a cache with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Duplicate atomically checks whether key was seen within the TTL, marking
// it as seen if not. Returns true when the key is a duplicate. An empty key
// is never a duplicate; callers that don't supply idempotency keys bypass
// deduplication entirely.
func (c *Cache) Duplicate(key string) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if at, ok := c.seen[key]; ok && now.Sub(at) < c.ttl {
		return true
	}

	c.compact(now)
	if _, ok := c.seen[key]; ok {
		// Re-marking an expired key: move it to the queue tail so eviction
		// order tracks recency, not the original insertion.
		c.dequeue(key)
	}
	c.queue = append(c.queue, key)
	c.seen[key] = now
	return false
}

// Forget drops a key so its next sighting counts as the first again. Callers
// use it to release a key whose post never committed.
func (c *Cache) Forget(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
	c.dequeue(key)
}

// Len returns the number of tracked keys, expired entries included until the
// next compaction.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// dequeue removes key's queue entry, if any. Must be called with mu held.
func (c *Cache) dequeue(key string) {
	for i, k := range c.queue {
		if k == key {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// compact drops expired queue heads and, if still over capacity, the oldest
// live entries. Must be called with mu held.
func (c *Cache) compact(now time.Time) {
	for len(c.queue) > 0 {
		head := c.queue[0]
		at, ok := c.seen[head]
		if ok && now.Sub(at) < c.ttl && len(c.seen) < c.maxSize {
			break
		}
		c.queue = c.queue[1:]
		if ok {
			delete(c.seen, head)
		}
	}
}
