package cache

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/model"
)

func TestTraversalCacheRoundTrip(t *testing.T) {
	c := NewTraversalCache(10, 100)
	neighbors := []model.Neighbor{{Etype: 1, Other: 2}, {Etype: 1, Other: 3}}
	c.Put(1, 1, false, model.Out, neighbors)

	got, truncated, found := c.Get(1, 1, false, model.Out)
	if !found || truncated {
		t.Fatalf("found=%v truncated=%v, want true/false", found, truncated)
	}
	if len(got) != 2 {
		t.Errorf("got %d neighbors, want 2", len(got))
	}
}

func TestTraversalCacheAllEtypesIsDistinctSlot(t *testing.T) {
	c := NewTraversalCache(10, 100)
	c.Put(1, 1, false, model.Out, []model.Neighbor{{Etype: 1, Other: 2}})
	c.Put(1, 0, true, model.Out, []model.Neighbor{{Etype: 1, Other: 2}, {Etype: 5, Other: 9}})

	specific, _, found := c.Get(1, 1, false, model.Out)
	if !found || len(specific) != 1 {
		t.Fatalf("specific-etype slot wrong: %v", specific)
	}
	all, _, found := c.Get(1, 0, true, model.Out)
	if !found || len(all) != 2 {
		t.Fatalf("all-etype slot wrong: %v", all)
	}
}

func TestTraversalCacheMarksTruncatedOverCap(t *testing.T) {
	c := NewTraversalCache(10, 2)
	c.Put(1, 1, false, model.Out, []model.Neighbor{{Etype: 1, Other: 2}, {Etype: 1, Other: 3}, {Etype: 1, Other: 4}})

	got, truncated, found := c.Get(1, 1, false, model.Out)
	if !found || !truncated {
		t.Fatalf("found=%v truncated=%v, want true/true", found, truncated)
	}
	if len(got) != 2 {
		t.Errorf("truncated entry should keep maxNeighbors entries, got %d", len(got))
	}
}

func TestTraversalCacheInvalidateNodeEvictsSourceAndDestAppearances(t *testing.T) {
	c := NewTraversalCache(10, 100)
	c.Put(1, 1, false, model.Out, []model.Neighbor{{Etype: 1, Other: 2}})
	c.Put(3, 1, false, model.Out, []model.Neighbor{{Etype: 1, Other: 2}})
	c.Put(2, 1, false, model.Out, []model.Neighbor{{Etype: 1, Other: 4}})

	c.InvalidateNode(2)

	if _, _, found := c.Get(2, 1, false, model.Out); found {
		t.Error("entry with node 2 as source should be evicted")
	}
	if _, _, found := c.Get(1, 1, false, model.Out); found {
		t.Error("entry referencing node 2 as destination should be evicted")
	}
	if _, _, found := c.Get(3, 1, false, model.Out); found {
		t.Error("entry referencing node 2 as destination should be evicted")
	}
}

func TestTraversalCacheInvalidateEdgeTargetsDirectionAndAllVariant(t *testing.T) {
	c := NewTraversalCache(10, 100)
	c.Put(1, 5, false, model.Out, []model.Neighbor{{Etype: 5, Other: 2}})
	c.Put(1, 0, true, model.Out, []model.Neighbor{{Etype: 5, Other: 2}})
	c.Put(2, 5, false, model.In, []model.Neighbor{{Etype: 5, Other: 1}})
	c.Put(9, 5, false, model.Out, []model.Neighbor{{Etype: 5, Other: 7}}) // unrelated, must survive

	c.InvalidateEdge(1, 5, 2)

	if _, _, found := c.Get(1, 5, false, model.Out); found {
		t.Error("out entry for src should be evicted")
	}
	if _, _, found := c.Get(1, 0, true, model.Out); found {
		t.Error("all-etype out entry for src should be evicted")
	}
	if _, _, found := c.Get(2, 5, false, model.In); found {
		t.Error("in entry for dst should be evicted")
	}
	if _, _, found := c.Get(9, 5, false, model.Out); !found {
		t.Error("unrelated entry should survive")
	}
}

func TestTraversalCacheClear(t *testing.T) {
	c := NewTraversalCache(10, 100)
	c.Put(1, 1, false, model.Out, []model.Neighbor{{Etype: 1, Other: 2}})
	c.Clear()
	if c.Stats().Size != 0 {
		t.Error("clear should empty the cache")
	}
}
