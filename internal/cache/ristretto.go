package cache

import (
	"github.com/dgraph-io/ristretto"

	"healthchat/internal/metrics"
)

// ristrettoCache is the cost-based alternative backend. Admission is
// TinyLFU rather than strict LRU, so deployments selecting it trade exact
// eviction order for better hit ratios under scan-heavy load.
type ristrettoCache[V any] struct {
	name  string
	inner *ristretto.Cache
}

// NewRistretto creates a Ristretto-backed cache partition. Each entry costs
// 1, so Capacity bounds the entry count like the LRU backend.
func NewRistretto[V any](name string, cfg Config) (Cache[V], error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     int64(cfg.Capacity),
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoCache[V]{name: name, inner: inner}, nil
}

func (c *ristrettoCache[V]) Get(key string) (V, bool) {
	var zero V
	value, found := c.inner.Get(key)
	if !found {
		metrics.CacheMiss(c.name)
		return zero, false
	}
	v, ok := value.(V)
	if !ok {
		// Corrupted entry; drop it.
		c.inner.Del(key)
		metrics.CacheMiss(c.name)
		return zero, false
	}
	metrics.CacheHit(c.name)
	return v, true
}

func (c *ristrettoCache[V]) Peek(key string) (V, bool) {
	var zero V
	value, found := c.inner.Get(key)
	if !found {
		return zero, false
	}
	v, ok := value.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

func (c *ristrettoCache[V]) Set(key string, value V) {
	c.inner.Set(key, value, 1)
	// Ristretto sets are buffered; wait so callers observe their own writes.
	c.inner.Wait()
	metrics.SetCacheSize(c.name, c.Len())
}

func (c *ristrettoCache[V]) Delete(key string) {
	c.inner.Del(key)
	c.inner.Wait()
	metrics.SetCacheSize(c.name, c.Len())
}

// Len is approximate: Ristretto only exposes keys added and evicted, so
// explicit deletes are not reflected.
func (c *ristrettoCache[V]) Len() int {
	m := c.inner.Metrics
	return int(m.KeysAdded() - m.KeysEvicted())
}

func (c *ristrettoCache[V]) Purge() {
	c.inner.Clear()
	metrics.SetCacheSize(c.name, 0)
}
