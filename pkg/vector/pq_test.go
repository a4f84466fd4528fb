package vector

import "testing"

func pqIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex(IndexConfig{
		Dim:    2,
		Metric: Euclidean,
		IVF:    &IVFConfig{NumClusters: 2, NProbe: 2, TrainingThreshold: 4},
		PQ:     &PQConfig{SubspaceCount: 1, CentroidsPerSubspace: 2, TrainingThreshold: 4},
	})
	ix.Insert(1, []float32{0, 0})
	ix.Insert(2, []float32{1, 1})
	ix.Insert(3, []float32{100, 100})
	ix.Insert(4, []float32{101, 101})
	return ix
}

func TestBuildIndexTrainsPQAfterIVF(t *testing.T) {
	ix := pqIndex(t)
	if err := ix.BuildIndex(); err != nil {
		t.Fatal(err)
	}
	if !ix.pq.trained {
		t.Fatal("expected pq to be trained")
	}
	if len(ix.pq.codes) != 4 {
		t.Fatalf("codes cover %d nodes, want 4", len(ix.pq.codes))
	}
}

func TestPQTrainingRequiresTrainedIVF(t *testing.T) {
	ix := NewIndex(IndexConfig{
		Dim: 2, Metric: Euclidean,
		PQ: &PQConfig{SubspaceCount: 1, CentroidsPerSubspace: 2, TrainingThreshold: 1},
	})
	ix.Insert(1, []float32{0, 0})
	if err := ix.trainPQLocked(); err == nil {
		t.Fatal("expected an error training pq without a trained ivf")
	}
}

func TestIVFPQSearchReturnsRequestedCount(t *testing.T) {
	ix := pqIndex(t)
	if err := ix.BuildIndex(); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search([]float32{0.5, 0.5}, 2, SearchOptions{Mode: ModeIVFPQ})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestIVFPQSearchFindsCorrectNeighborhood(t *testing.T) {
	ix := pqIndex(t)
	if err := ix.BuildIndex(); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search([]float32{100.2, 100.2}, 1, SearchOptions{Mode: ModeIVFPQ})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Node != 3 && results[0].Node != 4 {
		t.Errorf("result = %+v, want a node from the (100,100) cluster", results[0])
	}
}
