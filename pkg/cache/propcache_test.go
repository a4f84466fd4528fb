package cache

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/model"
)

func TestPropCacheNodeRoundTrip(t *testing.T) {
	c := NewPropCache(10, 10)
	c.PutNodeProp(1, 2, model.Int64(42))

	v, absent, found := c.GetNodeProp(1, 2)
	if !found || absent {
		t.Fatalf("found=%v absent=%v, want true/false", found, absent)
	}
	if !v.Equal(model.Int64(42)) {
		t.Errorf("value = %v, want 42", v)
	}
}

func TestPropCacheVerifiedAbsentDistinctFromUncached(t *testing.T) {
	c := NewPropCache(10, 10)

	_, _, found := c.GetNodeProp(1, 2)
	if found {
		t.Fatal("nothing cached yet, found should be false")
	}

	c.PutNodeAbsent(1, 2)
	_, absent, found := c.GetNodeProp(1, 2)
	if !found || !absent {
		t.Fatalf("found=%v absent=%v, want true/true", found, absent)
	}
}

func TestPropCacheInvalidateNodeEvictsOnlyThatNode(t *testing.T) {
	c := NewPropCache(10, 10)
	c.PutNodeProp(1, 2, model.Int64(1))
	c.PutNodeProp(1, 3, model.Int64(2))
	c.PutNodeProp(5, 2, model.Int64(3))

	c.InvalidateNode(1)

	if _, _, found := c.GetNodeProp(1, 2); found {
		t.Error("node 1 key 2 should be evicted")
	}
	if _, _, found := c.GetNodeProp(1, 3); found {
		t.Error("node 1 key 3 should be evicted")
	}
	if _, _, found := c.GetNodeProp(5, 2); !found {
		t.Error("node 5 should be untouched")
	}
}

func TestPropCacheEdgeRoundTripAndInvalidate(t *testing.T) {
	c := NewPropCache(10, 10)
	e := model.Edge{Src: 1, Etype: 2, Dst: 3}
	c.PutEdgeProp(e, 9, model.String("hi"))

	v, absent, found := c.GetEdgeProp(e, 9)
	if !found || absent || !v.Equal(model.String("hi")) {
		t.Fatalf("unexpected edge prop read: v=%v absent=%v found=%v", v, absent, found)
	}

	c.InvalidateEdge(e)
	if _, _, found := c.GetEdgeProp(e, 9); found {
		t.Error("edge prop should be evicted")
	}
}

func TestPropCacheReverseIndexClearedOnEviction(t *testing.T) {
	c := NewPropCache(1, 10)
	c.PutNodeProp(1, 1, model.Int64(1))
	c.PutNodeProp(2, 1, model.Int64(2)) // evicts (1,1) via LRU capacity

	// Invalidating node 1 now should be a no-op, not a panic or stale hit.
	c.InvalidateNode(1)
	if _, _, found := c.GetNodeProp(2, 1); !found {
		t.Error("node 2 entry should remain cached")
	}
}

func TestPropCacheClear(t *testing.T) {
	c := NewPropCache(10, 10)
	c.PutNodeProp(1, 1, model.Int64(1))
	c.PutEdgeProp(model.Edge{Src: 1, Etype: 1, Dst: 2}, 1, model.Int64(1))

	c.Clear()

	if c.NodeStats().Size != 0 || c.EdgeStats().Size != 0 {
		t.Error("clear should empty both sub-caches")
	}
}
