package cache

import "testing"

func TestLRUEvictsOldestOnCapacity(t *testing.T) {
	l := newLRU[string, int](2)
	l.put("a", 1)
	l.put("b", 2)
	evicted := l.put("c", 3)

	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("evicted = %v, want [a]", evicted)
	}
	if _, ok := l.get("a"); ok {
		t.Error("a should have been evicted")
	}
	if v, ok := l.get("c"); !ok || v != 3 {
		t.Error("c should be present")
	}
}

func TestLRUAccessPromotesEntry(t *testing.T) {
	l := newLRU[string, int](2)
	l.put("a", 1)
	l.put("b", 2)
	l.get("a") // promote a
	evicted := l.put("c", 3)

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
}

func TestLRUPeekDoesNotReorderOrRecordStats(t *testing.T) {
	l := newLRU[string, int](2)
	l.put("a", 1)
	l.put("b", 2)
	l.peek("a")
	evicted := l.put("c", 3)

	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("peek should not have promoted a, evicted = %v", evicted)
	}
	if l.stats().Hits != 0 || l.stats().Misses != 0 {
		t.Error("peek must not affect hit/miss stats")
	}
}

func TestLRUStats(t *testing.T) {
	l := newLRU[string, int](10)
	l.put("a", 1)
	l.get("a")
	l.get("missing")

	s := l.stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
	if s.HitRate != 50.0 {
		t.Errorf("hit rate = %v, want 50", s.HitRate)
	}
	if s.Utilisation != 10.0 {
		t.Errorf("utilisation = %v, want 10", s.Utilisation)
	}
}

func TestLRURemoveAndClear(t *testing.T) {
	l := newLRU[string, int](10)
	l.put("a", 1)
	l.put("b", 2)
	l.remove("a")
	if _, ok := l.get("a"); ok {
		t.Error("a should be removed")
	}
	l.clear()
	if l.len() != 0 {
		t.Error("clear should empty the cache")
	}
}
