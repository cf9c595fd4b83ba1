package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadingCache fills misses through a loader. Concurrent misses on the same
// key share one load.
type LoadingCache[T any] struct {
	*LRUCache[T]
	group singleflight.Group

	mu  sync.Mutex
	gen map[string]uint64
}

func NewLoadingCache[T any](lru *LRUCache[T]) *LoadingCache[T] {
	return &LoadingCache[T]{LRUCache: lru, gen: make(map[string]uint64)}
}

func (c *LoadingCache[T]) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

// GetOrLoad returns the cached value for key or stores what load returns.
// Failed loads are not cached, nor are loads overtaken by Invalidate.
func (c *LoadingCache[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		started := c.generation(key)
		data, err := load()
		if err != nil {
			return nil, err
		}
		if c.generation(key) == started {
			c.Set(key, data)
		}
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops key. Loads already in flight for it are not stored.
func (c *LoadingCache[T]) Invalidate(key string) {
	c.mu.Lock()
	c.gen[key]++
	c.mu.Unlock()
	c.group.Forget(key)
	c.Delete(key)
}
