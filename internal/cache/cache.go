package cache

import "fmt"

// Backend selects the cache implementation for the bounded profile caches.
const (
	BackendLRU       = "lru"
	BackendRistretto = "ristretto"
)

// Config holds cache configuration shared by every bounded partition.
type Config struct {
	Backend     string // "lru" (default) or "ristretto"
	Capacity    int    // maximum entries per partition
	NumCounters int64  // Ristretto: counters for TinyLFU admission
	BufferItems int64  // Ristretto: buffer size for async operations
}

// Validate checks the configuration, filling backend-specific defaults.
func (c *Config) Validate() error {
	switch c.Backend {
	case "":
		c.Backend = BackendLRU
	case BackendLRU, BackendRistretto:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Backend)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Capacity)
	}
	if c.NumCounters <= 0 {
		c.NumCounters = int64(c.Capacity) * 10
	}
	if c.BufferItems <= 0 {
		c.BufferItems = 64
	}
	return nil
}

// Cache is a bounded string-keyed cache partition. Implementations are safe
// for concurrent use and report hits, misses and sizes to the metrics
// registry under their partition name.
type Cache[V any] interface {
	Get(key string) (V, bool)
	// Peek reads without refreshing recency, so invalidation scans do not
	// perturb eviction order.
	Peek(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Len() int
	Purge()
}

// New builds a cache partition for the configured backend. Config must have
// been validated.
func New[V any](cfg Config, name string) (Cache[V], error) {
	switch cfg.Backend {
	case BackendRistretto:
		return NewRistretto[V](name, cfg)
	default:
		return NewLRU[V](name, cfg.Capacity)
	}
}
