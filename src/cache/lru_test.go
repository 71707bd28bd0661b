package cache

import (
	"testing"
	"time"
)

func BenchmarkLRU_Set(b *testing.B) {
	c := NewLRU[string](1000, 5*time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(HashKey(string(rune(i))), "value")
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](3, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if val, ok := c.Get("a"); !ok || val != 1 {
		t.Errorf("expected 1, got %v", val)
	}

	c.Set("d", 4)
	if _, ok := c.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
	if c.Len() != 3 {
		t.Errorf("expected cache length 3, got %d", c.Len())
	}
}

func TestLRU_TTL(t *testing.T) {
	c := NewLRU[string](10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("key", "value")
	if _, ok := c.Get("key"); !ok {
		t.Fatal("expected fresh entry")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped, len=%d", c.Len())
	}
}

func TestLRU_Clear(t *testing.T) {
	c := NewLRU[string](2, 0)
	c.Set("a", "x")
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected empty cache after Clear")
	}
}

func TestHashKeySeparatesParts(t *testing.T) {
	if HashKey("ab", "c") == HashKey("a", "bc") {
		t.Fatal("part boundaries must change the key")
	}
	if HashKey("same") != HashKey("same") {
		t.Fatal("HashKey must be deterministic")
	}
}
