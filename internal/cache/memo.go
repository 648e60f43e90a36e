package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// LoadFunc resolves the value for a key on a cache miss
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Memo memoizes an expensive per-key resolution. Concurrent misses for the
// same key share one load. Only successful loads are stored, so a miss is
// retried on the next call.
type Memo[V any] struct {
	cache *Cache[V]
	group singleflight.Group
}

// NewMemo creates a memo backed by an LRU cache of the given capacity
func NewMemo[V any](name string, capacity int) *Memo[V] {
	return &Memo[V]{cache: New[V](name, capacity)}
}

// Get returns the cached value for key or loads it. The shared load runs
// detached from any single caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (m *Memo[V]) Get(ctx context.Context, key string, load LoadFunc[V]) (V, error) {
	var zero V
	if v, ok := m.cache.Get(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		// another caller may have finished the load while we waited
		if v, ok := m.cache.lookup(key); ok {
			return v, nil
		}
		v, err := load(loadCtx, key)
		if err != nil {
			return nil, err
		}
		m.cache.Set(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Cache exposes the underlying LRU cache
func (m *Memo[V]) Cache() *Cache[V] {
	return m.cache
}
