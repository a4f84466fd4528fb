package vector

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/nerr"
)

func twoClusterIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex(IndexConfig{
		Dim:    2,
		Metric: Euclidean,
		IVF:    &IVFConfig{NumClusters: 2, NProbe: 2, TrainingThreshold: 4},
	})
	ix.Insert(1, []float32{0, 0})
	ix.Insert(2, []float32{1, 1})
	ix.Insert(3, []float32{100, 100})
	ix.Insert(4, []float32{101, 101})
	return ix
}

func TestBuildIndexFailsBelowTrainingThreshold(t *testing.T) {
	ix := NewIndex(IndexConfig{
		Dim:    2,
		Metric: Euclidean,
		IVF:    &IVFConfig{NumClusters: 2, NProbe: 1, TrainingThreshold: 10},
	})
	ix.Insert(1, []float32{0, 0})
	err := ix.BuildIndex()
	if nerr.KindOf(err) != nerr.KindInvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestBuildIndexTrainsIVFAndPartitionsClusters(t *testing.T) {
	ix := twoClusterIndex(t)
	if err := ix.BuildIndex(); err != nil {
		t.Fatal(err)
	}
	if !ix.ivf.trained {
		t.Fatal("expected ivf to be trained")
	}
	total := 0
	for _, list := range ix.ivf.lists {
		total += len(list)
	}
	if total != 4 {
		t.Fatalf("ivf lists contain %d nodes total, want 4", total)
	}
}

func TestIVFSearchWithFullNProbeMatchesBruteForce(t *testing.T) {
	ix := twoClusterIndex(t)
	if err := ix.BuildIndex(); err != nil {
		t.Fatal(err)
	}

	query := []float32{0.5, 0.5}
	ivfResults, err := ix.Search(query, 1, SearchOptions{Mode: ModeIVF})
	if err != nil {
		t.Fatal(err)
	}
	bfResults, err := ix.Search(query, 1, SearchOptions{Mode: ModeBruteForce})
	if err != nil {
		t.Fatal(err)
	}
	if len(ivfResults) != 1 || len(bfResults) != 1 {
		t.Fatalf("ivf = %+v, bf = %+v; want 1 result each", ivfResults, bfResults)
	}
	if ivfResults[0].Node != bfResults[0].Node {
		t.Errorf("ivf top result = %+v, brute force top result = %+v; with nProbe covering every cluster they should agree", ivfResults[0], bfResults[0])
	}
	if ivfResults[0].Node != 1 {
		t.Errorf("closest node to %v should be node 1, got %d", query, ivfResults[0].Node)
	}
}

func TestSearchAutoModeUsesIVFOnceTrained(t *testing.T) {
	ix := twoClusterIndex(t)
	if err := ix.BuildIndex(); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search([]float32{100.5, 100.5}, 1, SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Node != 4 {
		t.Fatalf("results = %+v, want node 4", results)
	}
}
