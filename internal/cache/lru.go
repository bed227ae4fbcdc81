package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"healthchat/internal/metrics"
)

// lruCache is a strict least-recently-used partition with a fixed entry
// capacity. It is the default backend: the profile store's eviction
// semantics rely on exact LRU ordering.
type lruCache[V any] struct {
	name  string
	inner *lru.Cache[string, V]
}

// NewLRU creates an LRU cache partition holding at most capacity entries.
func NewLRU[V any](name string, capacity int) (Cache[V], error) {
	inner, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, err
	}
	return &lruCache[V]{name: name, inner: inner}, nil
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		metrics.CacheHit(c.name)
	} else {
		metrics.CacheMiss(c.name)
	}
	return v, ok
}

func (c *lruCache[V]) Peek(key string) (V, bool) {
	return c.inner.Peek(key)
}

func (c *lruCache[V]) Set(key string, value V) {
	c.inner.Add(key, value)
	metrics.SetCacheSize(c.name, c.inner.Len())
}

func (c *lruCache[V]) Delete(key string) {
	c.inner.Remove(key)
	metrics.SetCacheSize(c.name, c.inner.Len())
}

func (c *lruCache[V]) Len() int { return c.inner.Len() }

func (c *lruCache[V]) Purge() {
	c.inner.Purge()
	metrics.SetCacheSize(c.name, 0)
}
