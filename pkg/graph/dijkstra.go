package graph

import (
	"container/heap"

	"github.com/nodalgraph/nodal/pkg/model"
)

// DijkstraConfig parameterizes a single-source shortest-weighted-path query.
type DijkstraConfig struct {
	Source      model.NodeID
	Target      model.NodeID
	WeightKeyID model.PropKeyID
	Direction   model.Direction
	Etype       model.ETypeID
	HasEtype    bool
}

// dijkstraItem is one entry of the priority queue, grounded on the teacher's
// apoc/algo/algo.go Item/PriorityQueue shape but carrying the edge that
// reached this node so ties can be broken deterministically by (src, etype,
// dst) instead of push order, which container/heap does not guarantee.
type dijkstraItem struct {
	node     model.NodeID
	priority float64
	edge     model.Edge
	hasEdge  bool
	index    int
}

type dijkstraQueue []*dijkstraItem

func (q dijkstraQueue) Len() int { return len(q) }

func (q dijkstraQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return edgeLess(q[i].edge, q[j].edge)
}

func edgeLess(a, b model.Edge) bool {
	if a.Src != b.Src {
		return a.Src < b.Src
	}
	if a.Etype != b.Etype {
		return a.Etype < b.Etype
	}
	return a.Dst < b.Dst
}

func (q dijkstraQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *dijkstraQueue) Push(x any) {
	item := x.(*dijkstraItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *dijkstraQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// edgeWeight resolves the weight of edge src-etype->dst from the
// WeightKeyID property: numeric values coerce to f64, missing or
// non-numeric values default to 1 (spec §4.9).
func edgeWeight(view View, src model.NodeID, etype model.ETypeID, dst model.NodeID, weightKey model.PropKeyID) float64 {
	v, ok := view.EdgeProp(src, etype, dst, weightKey)
	if !ok {
		return 1
	}
	f, ok := v.AsFloat64()
	if !ok {
		return 1
	}
	return f
}

// Dijkstra finds the minimum-total-weight path from cfg.Source to
// cfg.Target using a min-heap keyed on accumulated weight, with ties broken
// by the sorted (src, etype, dst) of the edge that reached each candidate —
// a deliberate determinism choice since spec only specifies the weight
// function, not a tie-break.
func Dijkstra(view View, cfg DijkstraConfig) PathResult {
	if cfg.Source == cfg.Target {
		return PathResult{Nodes: []model.NodeID{cfg.Source}, Found: true}
	}

	dist := map[model.NodeID]float64{cfg.Source: 0}
	prev := map[model.NodeID]bfsStep{}
	visited := map[model.NodeID]struct{}{}

	pq := make(dijkstraQueue, 0)
	heap.Init(&pq)
	heap.Push(&pq, &dijkstraItem{node: cfg.Source, priority: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(*dijkstraItem)
		if _, done := visited[cur.node]; done {
			continue
		}
		visited[cur.node] = struct{}{}
		if cur.hasEdge {
			prev[cur.node] = bfsStep{node: edgeOrigin(cur.edge, cfg), edge: cur.edge}
		}
		if cur.node == cfg.Target {
			return reconstructDijkstra(prev, dist, cfg.Source, cfg.Target)
		}

		for _, n := range view.Neighbors(cur.node, cfg.Direction, cfg.Etype, cfg.HasEtype) {
			if _, done := visited[n.Other]; done {
				continue
			}
			e := edgeFromNeighbor(cur.node, cfg.Direction, n)
			w := edgeWeight(view, e.Src, e.Etype, e.Dst, cfg.WeightKeyID)
			alt := dist[cur.node] + w
			if prevDist, ok := dist[n.Other]; !ok || alt < prevDist {
				dist[n.Other] = alt
				heap.Push(&pq, &dijkstraItem{node: n.Other, priority: alt, edge: e, hasEdge: true})
			}
		}
	}
	return PathResult{}
}

// edgeOrigin recovers the node on the "from" side of e relative to the
// traversal direction, i.e. the node prev[] should point back to.
func edgeOrigin(e model.Edge, cfg DijkstraConfig) model.NodeID {
	if cfg.Direction == model.In {
		return e.Dst
	}
	return e.Src
}

func reconstructDijkstra(prev map[model.NodeID]bfsStep, dist map[model.NodeID]float64, source, target model.NodeID) PathResult {
	var nodes []model.NodeID
	var edges []model.Edge
	cur := target
	for cur != source {
		step, ok := prev[cur]
		if !ok {
			return PathResult{}
		}
		nodes = append([]model.NodeID{cur}, nodes...)
		edges = append([]model.Edge{step.edge}, edges...)
		cur = step.node
	}
	nodes = append([]model.NodeID{source}, nodes...)
	return PathResult{Nodes: nodes, Edges: edges, TotalWeight: dist[target], Found: true}
}

// KShortest returns up to k loopless shortest paths from cfg.Source to
// cfg.Target via Yen's algorithm layered on Dijkstra, enumerating deviation
// paths until k are found or the candidate set is exhausted (spec §4.9).
func KShortest(view View, cfg DijkstraConfig, k int) []PathResult {
	if k <= 0 {
		return nil
	}
	first := Dijkstra(view, cfg)
	if !first.Found {
		return nil
	}
	paths := []PathResult{first}

	var candidates []PathResult
	seen := map[string]struct{}{pathKey(first): {}}

	for len(paths) < k {
		prevPath := paths[len(paths)-1]
		for i := 0; i < len(prevPath.Nodes)-1; i++ {
			spurNode := prevPath.Nodes[i]
			rootNodes := append([]model.NodeID(nil), prevPath.Nodes[:i+1]...)
			rootEdges := append([]model.Edge(nil), prevPath.Edges[:i]...)

			excludedEdges := map[model.Edge]struct{}{}
			for _, p := range paths {
				if len(p.Nodes) > i && pathSharesRoot(p.Nodes[:i+1], rootNodes) {
					excludedEdges[p.Edges[i]] = struct{}{}
				}
			}
			excludedNodes := map[model.NodeID]struct{}{}
			for _, n := range rootNodes[:len(rootNodes)-1] {
				excludedNodes[n] = struct{}{}
			}

			masked := &maskedView{View: view, excludedEdges: excludedEdges, excludedNodes: excludedNodes}
			spurCfg := cfg
			spurCfg.Source = spurNode
			spurResult := Dijkstra(masked, spurCfg)
			if !spurResult.Found {
				continue
			}

			total := PathResult{
				Nodes:       append(append([]model.NodeID(nil), rootNodes[:len(rootNodes)-1]...), spurResult.Nodes...),
				Edges:       append(append([]model.Edge(nil), rootEdges...), spurResult.Edges...),
				TotalWeight: sumWeight(rootEdges, view, cfg) + spurResult.TotalWeight,
				Found:       true,
			}
			key := pathKey(total)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			candidates = append(candidates, total)
		}

		if len(candidates) == 0 {
			break
		}
		best := 0
		for i := 1; i < len(candidates); i++ {
			if candidates[i].TotalWeight < candidates[best].TotalWeight {
				best = i
			}
		}
		paths = append(paths, candidates[best])
		candidates = append(candidates[:best], candidates[best+1:]...)
	}
	return paths
}

func sumWeight(edges []model.Edge, view View, cfg DijkstraConfig) float64 {
	var total float64
	for _, e := range edges {
		total += edgeWeight(view, e.Src, e.Etype, e.Dst, cfg.WeightKeyID)
	}
	return total
}

func pathKey(p PathResult) string {
	key := make([]byte, 0, len(p.Nodes)*8)
	for _, n := range p.Nodes {
		key = append(key, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	}
	return string(key)
}

func pathSharesRoot(a, b []model.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// maskedView wraps a View, hiding excluded nodes and edges so Yen's
// algorithm can search for deviation paths without mutating the underlying
// graph.
type maskedView struct {
	View
	excludedEdges map[model.Edge]struct{}
	excludedNodes map[model.NodeID]struct{}
}

func (m *maskedView) Neighbors(node model.NodeID, dir model.Direction, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	if _, excluded := m.excludedNodes[node]; excluded {
		return nil
	}
	raw := m.View.Neighbors(node, dir, etype, hasEtype)
	out := make([]model.Neighbor, 0, len(raw))
	for _, n := range raw {
		if _, excluded := m.excludedNodes[n.Other]; excluded {
			continue
		}
		e := edgeFromNeighbor(node, dir, n)
		if _, excluded := m.excludedEdges[e]; excluded {
			continue
		}
		out = append(out, n)
	}
	return out
}
