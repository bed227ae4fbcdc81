package cache

import "testing"

func newRistrettoForTest(t *testing.T, name string, capacity int) Cache[string] {
	t.Helper()
	cfg := Config{Backend: BackendRistretto, Capacity: capacity}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := NewRistretto[string](name, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestRistrettoSetAndGet(t *testing.T) {
	c := newRistrettoForTest(t, "test_ristretto_basic", 100)

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", "1")
	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Errorf("expected hit with '1', got %q ok=%v", v, ok)
	}
}

func TestRistrettoDelete(t *testing.T) {
	c := newRistrettoForTest(t, "test_ristretto_delete", 100)
	c.Set("a", "1")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after delete")
	}
}

func TestRistrettoPurge(t *testing.T) {
	c := newRistrettoForTest(t, "test_ristretto_purge", 100)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Purge()
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after purge")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected miss after purge")
	}
}
