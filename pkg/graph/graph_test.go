package graph

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/model"
)

// fakeView is a tiny in-memory adjacency used to exercise the algorithms
// without an engine or snapshot. Edges are undirected-ready: callers add
// both directions explicitly via addEdge when needed.
type fakeView struct {
	out   map[model.NodeID][]model.Neighbor
	props map[model.Edge]map[model.PropKeyID]model.PropValue
}

func newFakeView() *fakeView {
	return &fakeView{
		out:   make(map[model.NodeID][]model.Neighbor),
		props: make(map[model.Edge]map[model.PropKeyID]model.PropValue),
	}
}

func (f *fakeView) addEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID) {
	f.out[src] = append(f.out[src], model.Neighbor{Etype: etype, Other: dst})
}

func (f *fakeView) setWeight(src model.NodeID, etype model.ETypeID, dst model.NodeID, key model.PropKeyID, w float64) {
	e := model.Edge{Src: src, Etype: etype, Dst: dst}
	if f.props[e] == nil {
		f.props[e] = make(map[model.PropKeyID]model.PropValue)
	}
	f.props[e][key] = model.Float64(w)
}

func (f *fakeView) Neighbors(node model.NodeID, dir model.Direction, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	var result []model.Neighbor
	switch dir {
	case model.Out:
		for _, n := range f.out[node] {
			if !hasEtype || n.Etype == etype {
				result = append(result, n)
			}
		}
	case model.In:
		for src, neighbors := range f.out {
			for _, n := range neighbors {
				if n.Other == node && (!hasEtype || n.Etype == etype) {
					result = append(result, model.Neighbor{Etype: n.Etype, Other: src})
				}
			}
		}
	case model.Both:
		result = append(result, f.Neighbors(node, model.Out, etype, hasEtype)...)
		result = append(result, f.Neighbors(node, model.In, etype, hasEtype)...)
	}
	return result
}

func (f *fakeView) EdgeProp(src model.NodeID, etype model.ETypeID, dst model.NodeID, key model.PropKeyID) (model.PropValue, bool) {
	props, ok := f.props[model.Edge{Src: src, Etype: etype, Dst: dst}]
	if !ok {
		return model.PropValue{}, false
	}
	v, ok := props[key]
	return v, ok
}

func linearGraph() *fakeView {
	v := newFakeView()
	v.addEdge(1, 1, 2)
	v.addEdge(2, 1, 3)
	v.addEdge(3, 1, 4)
	return v
}

func TestBFSFindsShortestPathByHops(t *testing.T) {
	v := newFakeView()
	v.addEdge(1, 1, 2)
	v.addEdge(1, 1, 3)
	v.addEdge(2, 1, 4)
	v.addEdge(3, 1, 4)

	result := BFS(v, 1, 4, nil, 0)
	if !result.Found {
		t.Fatal("expected a path")
	}
	if len(result.Nodes) != 3 {
		t.Fatalf("path = %v, want 3 nodes", result.Nodes)
	}
	// neighbors of 1 are appended in insertion order [2,3]; BFS explores 2 first.
	if result.Nodes[1] != 2 {
		t.Errorf("tie-break should prefer node 2 (insertion order), got %v", result.Nodes[1])
	}
}

func TestBFSNoPath(t *testing.T) {
	v := newFakeView()
	v.addEdge(1, 1, 2)
	result := BFS(v, 1, 99, nil, 0)
	if result.Found {
		t.Error("expected no path")
	}
}

func TestBFSRespectsMaxDepth(t *testing.T) {
	v := linearGraph()
	result := BFS(v, 1, 4, nil, 2)
	if result.Found {
		t.Error("target is 3 hops away, maxDepth 2 should fail")
	}
}

func TestBFSSourceEqualsTarget(t *testing.T) {
	v := newFakeView()
	result := BFS(v, 1, 1, nil, 0)
	if !result.Found || len(result.Nodes) != 1 {
		t.Fatalf("expected trivial single-node path, got %+v", result)
	}
}

func TestBFSSelfLoopIsExplored(t *testing.T) {
	v := newFakeView()
	v.addEdge(1, 1, 1)
	v.addEdge(1, 1, 2)
	result := BFS(v, 1, 2, nil, 0)
	if !result.Found {
		t.Fatal("expected a path despite the self-loop")
	}
}

func TestTraverseDepthEmitsWithinWindow(t *testing.T) {
	v := linearGraph()
	hits := TraverseDepth(v, []model.NodeID{1}, 0, false, 2, 3, model.Out, true)

	var nodes []model.NodeID
	for _, h := range hits {
		nodes = append(nodes, h.Node)
	}
	if len(nodes) != 2 || nodes[0] != 3 || nodes[1] != 4 {
		t.Fatalf("hits = %v, want [3 4]", nodes)
	}
}

func TestTraverseMultiStep(t *testing.T) {
	v := newFakeView()
	v.addEdge(1, 1, 2)
	v.addEdge(2, 2, 3)

	hits := Traverse(v, []model.NodeID{1}, []Step{
		{Dir: model.Out, Etype: 1, HasEtype: true},
		{Dir: model.Out, Etype: 2, HasEtype: true},
	}, true)

	if len(hits) != 3 {
		t.Fatalf("hits = %+v, want 3 entries (source + 2 hops)", hits)
	}
	if hits[2].Node != 3 || hits[2].Depth != 2 {
		t.Errorf("final hit = %+v, want node 3 at depth 2", hits[2])
	}
}

func TestReachableNodesRespectsMaxDepth(t *testing.T) {
	v := linearGraph()
	reached := ReachableNodes(v, 1, 2, 0, false, model.Out)
	if len(reached) != 2 {
		t.Fatalf("reached = %v, want 2 nodes within depth 2", reached)
	}
}

func TestHasPath(t *testing.T) {
	v := linearGraph()
	if !HasPath(v, 1, 4, nil, 0) {
		t.Error("expected a path")
	}
	if HasPath(v, 4, 1, nil, 0) {
		t.Error("graph is directed; reverse path should not exist")
	}
}

func TestDijkstraPrefersCheaperPath(t *testing.T) {
	v := newFakeView()
	const weightKey model.PropKeyID = 5
	v.addEdge(1, 1, 2)
	v.setWeight(1, 1, 2, weightKey, 10)
	v.addEdge(1, 1, 3)
	v.setWeight(1, 1, 3, weightKey, 1)
	v.addEdge(3, 1, 2)
	v.setWeight(3, 1, 2, weightKey, 1)

	result := Dijkstra(v, DijkstraConfig{Source: 1, Target: 2, WeightKeyID: weightKey, Direction: model.Out})
	if !result.Found {
		t.Fatal("expected a path")
	}
	if result.TotalWeight != 2 {
		t.Errorf("total weight = %v, want 2 (via node 3)", result.TotalWeight)
	}
	if len(result.Nodes) != 3 || result.Nodes[1] != 3 {
		t.Errorf("path = %v, want [1 3 2]", result.Nodes)
	}
}

func TestDijkstraMissingWeightDefaultsToOne(t *testing.T) {
	v := newFakeView()
	const weightKey model.PropKeyID = 5
	v.addEdge(1, 1, 2) // no weight set -> defaults to 1

	result := Dijkstra(v, DijkstraConfig{Source: 1, Target: 2, WeightKeyID: weightKey, Direction: model.Out})
	if !result.Found || result.TotalWeight != 1 {
		t.Fatalf("result = %+v, want weight 1", result)
	}
}

func TestDijkstraNoPath(t *testing.T) {
	v := newFakeView()
	result := Dijkstra(v, DijkstraConfig{Source: 1, Target: 2, Direction: model.Out})
	if result.Found {
		t.Error("expected no path")
	}
}

func TestKShortestReturnsDistinctPathsOrderedByWeight(t *testing.T) {
	v := newFakeView()
	const weightKey model.PropKeyID = 5
	// Two node-disjoint paths from 1 to 4: via 2 (cheap) and via 3 (pricier).
	v.addEdge(1, 1, 2)
	v.setWeight(1, 1, 2, weightKey, 1)
	v.addEdge(2, 1, 4)
	v.setWeight(2, 1, 4, weightKey, 1)
	v.addEdge(1, 1, 3)
	v.setWeight(1, 1, 3, weightKey, 5)
	v.addEdge(3, 1, 4)
	v.setWeight(3, 1, 4, weightKey, 5)

	results := KShortest(v, DijkstraConfig{Source: 1, Target: 4, WeightKeyID: weightKey, Direction: model.Out}, 2)
	if len(results) != 2 {
		t.Fatalf("got %d paths, want 2", len(results))
	}
	if results[0].TotalWeight > results[1].TotalWeight {
		t.Error("paths should be returned in non-decreasing weight order")
	}
	if results[0].TotalWeight != 2 || results[1].TotalWeight != 10 {
		t.Errorf("weights = %v, %v; want 2, 10", results[0].TotalWeight, results[1].TotalWeight)
	}
}

func TestKShortestStopsWhenExhausted(t *testing.T) {
	v := linearGraph()
	results := KShortest(v, DijkstraConfig{Source: 1, Target: 4, Direction: model.Out}, 5)
	if len(results) != 1 {
		t.Fatalf("got %d paths, want 1 (only one simple path exists)", len(results))
	}
}
