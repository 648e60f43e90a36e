// Package cache provides a fixed-capacity LRU cache and a memoizing loader
// built on top of it.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docrag-mcp/internal/metrics"
)

// DefaultCapacity is used when a non-positive capacity is requested
const DefaultCapacity = 1000

// Cache is a thread-safe LRU cache keyed by string. Get and Set both refresh
// recency; inserting a new key at capacity evicts exactly the least recently
// used key.
type Cache[V any] struct {
	name string
	mu   sync.Mutex
	lru  *lru.Cache[string, V]
}

// New creates a cache holding at most capacity entries. name labels the
// cache in metrics.
func New[V any](name string, capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[string, V](capacity)
	if err != nil {
		// only reachable with a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Cache[V]{name: name, lru: l}
}

// Get returns the value for key and marks it most recently used
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	v, ok := c.lru.Get(key)
	c.mu.Unlock()

	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(c.name, result).Inc()
	return v, ok
}

// lookup is Get without touching metrics
func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

// Set stores value under key and marks it most recently used. It reports
// whether an entry was evicted to make room.
func (c *Cache[V]) Set(key string, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Add(key, value)
}

// Len returns the number of entries
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the keys ordered from least to most recently used
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Purge removes every entry
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
