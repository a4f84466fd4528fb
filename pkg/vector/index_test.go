package vector

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/nerr"
)

func TestIndexInsertRejectsWrongDimension(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 3, Metric: Cosine})
	err := ix.Insert(1, []float32{1, 2})
	if nerr.KindOf(err) != nerr.KindInvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestIndexInsertGetRoundTrip(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 3, Metric: Cosine})
	if err := ix.Insert(1, []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	v, ok := ix.Get(1)
	if !ok || v[0] != 1 || v[1] != 2 || v[2] != 3 {
		t.Fatalf("Get = %v, %v; want [1 2 3], true", v, ok)
	}
}

func TestIndexInsertTwiceReplacesOldRow(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 2, Metric: Cosine, FragmentTargetSize: 100})
	ix.Insert(1, []float32{1, 0})
	ix.Insert(1, []float32{0, 1})
	if ix.Len() != 1 {
		t.Fatalf("Len = %d, want 1", ix.Len())
	}
	v, _ := ix.Get(1)
	if v[0] != 0 || v[1] != 1 {
		t.Errorf("Get = %v, want the second insert's value [0 1]", v)
	}
}

func TestIndexDeleteThenNotFound(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 2, Metric: Cosine})
	ix.Insert(1, []float32{1, 1})
	if err := ix.Delete(1); err != nil {
		t.Fatal(err)
	}
	if err := ix.Delete(1); nerr.KindOf(err) != nerr.KindNotFound {
		t.Fatalf("second delete err = %v, want NotFound", err)
	}
	if ix.Len() != 0 {
		t.Errorf("Len = %d, want 0", ix.Len())
	}
}

func TestIndexSealsFragmentAtCapacity(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 1, Metric: Cosine, FragmentTargetSize: 2})
	ix.Insert(1, []float32{1})
	if events := ix.DrainSealed(); len(events) != 0 {
		t.Fatalf("fragment should not seal before reaching capacity, got %v", events)
	}
	ix.Insert(2, []float32{2})
	events := ix.DrainSealed()
	if len(events) != 1 || events[0] != 0 {
		t.Fatalf("events = %v, want [0] (fragment 0 sealed)", events)
	}
	// a third insert must open a fresh fragment rather than reuse the sealed one.
	ix.Insert(3, []float32{3})
	if len(ix.fragments) != 2 {
		t.Fatalf("fragments = %d, want 2", len(ix.fragments))
	}
}

func TestIndexBruteForceSearchPrefersClosestByCosine(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 2, Metric: Cosine})
	ix.Insert(1, []float32{1, 0})
	ix.Insert(2, []float32{0, 1})
	ix.Insert(3, []float32{1, 1})

	results, err := ix.Search([]float32{1, 0.1}, 1, SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Node != 1 {
		t.Fatalf("results = %+v, want node 1 closest to query", results)
	}
}

func TestIndexSearchReturnsTopKInDescendingScore(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 2, Metric: Cosine})
	ix.Insert(1, []float32{1, 0})
	ix.Insert(2, []float32{0.9, 0.1})
	ix.Insert(3, []float32{0, 1})

	results, err := ix.Search([]float32{1, 0}, 2, SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted descending: %+v", results)
	}
	if results[0].Node != 1 {
		t.Errorf("closest match should be node 1, got %d", results[0].Node)
	}
}

func TestIndexDeletedVectorExcludedFromSearch(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 1, Metric: Cosine})
	ix.Insert(1, []float32{1})
	ix.Insert(2, []float32{1})
	ix.Delete(1)

	results, err := ix.Search([]float32{1}, 5, SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Node == 1 {
			t.Error("deleted node should not appear in search results")
		}
	}
}

func TestIndexCompactDropsDeletedRowsKeepsLive(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 1, Metric: Cosine, FragmentTargetSize: 2})
	ix.Insert(1, []float32{1})
	ix.Insert(2, []float32{2}) // seals fragment 0
	ix.Insert(3, []float32{3})
	ix.Delete(2)

	before, after := ix.Compact()
	if before != 2 {
		t.Fatalf("before = %d, want 2 fragments pre-compact", before)
	}
	if after < 1 {
		t.Fatalf("after = %d, want at least 1", after)
	}
	if ix.Len() != 2 {
		t.Fatalf("Len = %d, want 2 live vectors after compact", ix.Len())
	}
	if _, ok := ix.Get(2); ok {
		t.Error("deleted node should not survive compaction")
	}
	v, ok := ix.Get(1)
	if !ok || v[0] != 1 {
		t.Errorf("node 1 should survive compaction with its value intact, got %v, %v", v, ok)
	}
}

func TestIndexNormalizedInsertStoresUnitVector(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 2, Metric: Cosine, Normalized: true})
	ix.Insert(1, []float32{3, 4})
	v, _ := ix.Get(1)
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("stored vector = %v, want normalized [0.6 0.8]", v)
	}
}

func TestIndexEuclideanMetricPrefersNearestByDistance(t *testing.T) {
	ix := NewIndex(IndexConfig{Dim: 1, Metric: Euclidean})
	ix.Insert(1, []float32{0})
	ix.Insert(2, []float32{10})

	results, err := ix.Search([]float32{1}, 1, SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Node != 1 {
		t.Fatalf("results = %+v, want node 1 (closer by euclidean distance)", results)
	}
}
