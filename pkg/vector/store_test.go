package vector

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

func TestStoreCreateIndexRejectsDuplicate(t *testing.T) {
	s := NewStore()
	cfg := IndexConfig{Dim: 2, Metric: Cosine}
	if err := s.CreateIndex(1, cfg); err != nil {
		t.Fatal(err)
	}
	err := s.CreateIndex(1, cfg)
	if nerr.KindOf(err) != nerr.KindInvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestStoreSetNodeVectorRequiresExistingIndex(t *testing.T) {
	s := NewStore()
	err := s.SetNodeVector(1, 99, []float32{1, 2})
	if nerr.KindOf(err) != nerr.KindInvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument for an undeclared propkey", err)
	}
}

func TestStoreImplementsVectorIntentSink(t *testing.T) {
	s := NewStore()
	s.CreateIndex(1, IndexConfig{Dim: 2, Metric: Cosine})

	var sink interface {
		SetNodeVector(node model.NodeID, propKey model.PropKeyID, v []float32) error
		DeleteNodeVector(node model.NodeID, propKey model.PropKeyID) error
	} = s

	if err := sink.SetNodeVector(1, 1, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetNodeVector(1, 1)
	if err != nil || v[0] != 1 {
		t.Fatalf("GetNodeVector = %v, %v", v, err)
	}
	if err := sink.DeleteNodeVector(1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetNodeVector(1, 1); nerr.KindOf(err) != nerr.KindNotFound {
		t.Fatalf("err = %v, want NotFound after delete", err)
	}
}

func TestStoreSearchAndStats(t *testing.T) {
	s := NewStore()
	s.CreateIndex(1, IndexConfig{Dim: 2, Metric: Cosine})
	s.SetNodeVector(1, 1, []float32{1, 0})
	s.SetNodeVector(2, 1, []float32{0, 1})

	results, err := s.Search(1, []float32{1, 0.01}, 1, SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Node != 1 {
		t.Fatalf("results = %+v, want node 1", results)
	}

	stats := s.Stats()
	if len(stats) != 1 {
		t.Fatalf("stats entries = %d, want 1", len(stats))
	}
	if stats[0].LiveVectors != 2 {
		t.Errorf("LiveVectors = %d, want 2", stats[0].LiveVectors)
	}
}

func TestStoreCompactAndDrainSealed(t *testing.T) {
	s := NewStore()
	s.CreateIndex(1, IndexConfig{Dim: 1, Metric: Cosine, FragmentTargetSize: 1})
	s.SetNodeVector(1, 1, []float32{1})

	events, err := s.DrainSealed(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v, want one sealed fragment (capacity 1)", events)
	}

	s.SetNodeVector(2, 1, []float32{2})
	before, after, err := s.Compact(1)
	if err != nil {
		t.Fatal(err)
	}
	if before != 2 {
		t.Errorf("before = %d, want 2", before)
	}
	if after < 1 {
		t.Errorf("after = %d, want at least 1", after)
	}
}
