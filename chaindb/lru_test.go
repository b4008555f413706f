package chaindb

import "testing"

func TestLRUEvictsOldest(t *testing.T) {
	c := newLRU[int, string](2)
	c.Add(1, "a")
	c.Add(2, "b")
	c.Add(3, "c") // evicts 1
	if _, ok := c.Get(1); ok {
		t.Fatal("expected key 1 evicted")
	}
	if v, ok := c.Get(2); !ok || v != "b" {
		t.Fatalf("expected key 2 present, got %q %v", v, ok)
	}
}

func TestLRUTouchOnGetProtectsFromEviction(t *testing.T) {
	c := newLRU[int, string](2)
	c.Add(1, "a")
	c.Add(2, "b")
	c.Get(1) // 1 now most-recent
	c.Add(3, "c")
	if _, ok := c.Get(2); ok {
		t.Fatal("expected key 2 evicted, not 1")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected key 1 retained")
	}
}

func TestLRUZeroCapacityDisabled(t *testing.T) {
	c := newLRU[int, string](0)
	c.Add(1, "a")
	if _, ok := c.Get(1); ok {
		t.Fatal("expected zero-capacity cache to never retain entries")
	}
}

func TestLRUClear(t *testing.T) {
	c := newLRU[int, string](2)
	c.Add(1, "a")
	c.Clear()
	if _, ok := c.Get(1); ok {
		t.Fatal("expected cache empty after Clear")
	}
}
