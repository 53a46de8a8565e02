// ABOUTME: Thread-safe TTL cache keyed by session ID with LRU eviction.
// ABOUTME: Used by the HTTP transport to keep per-client protocol state.

package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// cacheEntry stores a value with its last-use time and list element.
type cacheEntry[V any] struct {
	value    V
	lastUsed time.Time
	element  *list.Element
}

// Cache holds values keyed by session ID. Entries idle for longer than the TTL
// are treated as absent and removed by a background sweep.
// Uses a doubly-linked list ordered by last use for O(1) eviction.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	order   *list.List // keys, least recently used at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given idle TTL and maximum size.
// A background goroutine periodically removes expired entries.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Create stores the value under a new random session ID and returns the ID.
func (c *Cache[V]) Create(value V) string {
	id := uuid.New().String()
	c.Put(id, value)
	return id
}

// Put stores a value, evicting the least recently used entry if the cache is full.
func (c *Cache[V]) Put(id string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, exists := c.entries[id]; exists {
		entry.value = value
		entry.lastUsed = now
		c.order.MoveToBack(entry.element)
		return
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[id] = &cacheEntry[V]{
		value:    value,
		lastUsed: now,
		element:  c.order.PushBack(id),
	}
}

// Get returns the value for an ID and refreshes its idle timer.
// Expired entries are removed and reported as absent.
func (c *Cache[V]) Get(id string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[id]
	if !ok {
		return zero, false
	}
	now := c.now()
	if now.Sub(entry.lastUsed) >= c.ttl {
		c.removeLocked(id, entry)
		return zero, false
	}
	entry.lastUsed = now
	c.order.MoveToBack(entry.element)
	return entry.value, true
}

// Delete removes an entry. Returns false if it was not present.
func (c *Cache[V]) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return false
	}
	c.removeLocked(id, entry)
	return true
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) removeLocked(id string, entry *cacheEntry[V]) {
	c.order.Remove(entry.element)
	delete(c.entries, id)
}

// evictOldest removes the least recently used entry. Must be called with mu held.
func (c *Cache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, id)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache[V]) cleanup() {
	interval := time.Minute
	if c.ttl > 0 && c.ttl < interval {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes every expired entry.
func (c *Cache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.entries {
		if now.Sub(entry.lastUsed) >= c.ttl {
			c.removeLocked(id, entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
