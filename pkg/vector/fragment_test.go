package vector

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/model"
)

func TestFragmentInsertAssignsSequentialRows(t *testing.T) {
	f := newFragment(3, 4)
	r0 := f.insert(1, []float32{1, 2, 3})
	r1 := f.insert(2, []float32{4, 5, 6})
	if r0 != 0 || r1 != 1 {
		t.Fatalf("rows = %d, %d; want 0, 1", r0, r1)
	}
	if f.liveN != 2 {
		t.Errorf("liveN = %d, want 2", f.liveN)
	}
	got := f.vectorAt(1)
	if got[0] != 4 || got[1] != 5 || got[2] != 6 {
		t.Errorf("vectorAt(1) = %v, want [4 5 6]", got)
	}
}

func TestFragmentDeleteFlipsLivenessOnly(t *testing.T) {
	f := newFragment(2, 4)
	f.insert(1, []float32{1, 1})
	if !f.delete(1) {
		t.Fatal("expected delete to succeed")
	}
	if f.liveN != 0 {
		t.Errorf("liveN = %d, want 0", f.liveN)
	}
	if f.rows != 1 {
		t.Errorf("rows = %d, want 1 (data is not rewritten on delete)", f.rows)
	}
	if f.delete(1) {
		t.Error("deleting again should report false")
	}
	if f.delete(99) {
		t.Error("deleting an absent node should report false")
	}
}

func TestFragmentFullAtCapacity(t *testing.T) {
	f := newFragment(1, 2)
	if f.full() {
		t.Fatal("empty fragment should not be full")
	}
	f.insert(1, []float32{1})
	if f.full() {
		t.Fatal("fragment with one free row should not be full")
	}
	f.insert(2, []float32{2})
	if !f.full() {
		t.Error("fragment at capacity should report full")
	}
}

func TestFragmentForEachLiveSkipsDeleted(t *testing.T) {
	f := newFragment(1, 4)
	f.insert(1, []float32{1})
	f.insert(2, []float32{2})
	f.insert(3, []float32{3})
	f.delete(2)

	var seen []model.NodeID
	f.forEachLive(func(node model.NodeID, vec []float32) {
		seen = append(seen, node)
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Errorf("seen = %v, want [1 3]", seen)
	}
}
