package cache

import "testing"

func TestConfigValidateDefaults(t *testing.T) {
	cfg := Config{Capacity: 10}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendLRU {
		t.Errorf("expected default backend lru, got %q", cfg.Backend)
	}
	if cfg.NumCounters != 100 {
		t.Errorf("expected 10x counters, got %d", cfg.NumCounters)
	}
	if cfg.BufferItems != 64 {
		t.Errorf("expected default buffer items 64, got %d", cfg.BufferItems)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cfg := Config{Backend: "memcached", Capacity: 10}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}
	cfg = Config{Backend: BackendLRU}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero capacity")
	}
}

func TestLRUBasic(t *testing.T) {
	c, err := NewLRU[string]("test_basic", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", "1")
	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Errorf("expected hit with '1', got %q ok=%v", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected len 1, got %d", c.Len())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after delete")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewLRU[int]("test_evict", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Set("a", 1)
	c.Set("b", 2)
	// Touch "a" so "b" is the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestLRUPeekDoesNotPromote(t *testing.T) {
	c, err := NewLRU[int]("test_peek", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Peek("a"); !ok {
		t.Fatal("expected peek hit for a")
	}
	c.Set("c", 3)

	// Peek must not have refreshed a's recency, so a is the one evicted.
	if _, ok := c.Peek("a"); ok {
		t.Error("expected a to be evicted despite the peek")
	}
}

func TestLRUPurge(t *testing.T) {
	c, err := NewLRU[int]("test_purge", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got len %d", c.Len())
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := Config{Backend: BackendLRU, Capacity: 4}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := New[int](cfg, "test_select_lru")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*lruCache[int]); !ok {
		t.Errorf("expected lru backend, got %T", c)
	}

	cfg = Config{Backend: BackendRistretto, Capacity: 4}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err = New[int](cfg, "test_select_ristretto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*ristrettoCache[int]); !ok {
		t.Errorf("expected ristretto backend, got %T", c)
	}
}
