// Package graph implements the traversal and reachability algorithms of
// spec §4.9, grounded on the shape of the teacher's
// nornicdb/apoc/algo/algo.go (BFS layering, container/heap priority queues)
// and nornicdb/pkg/cypher/traversal.go (multi-hop step traversal), adapted
// to operate purely against a View the engine provides rather than against
// in-memory *Node/*Relationship graphs the teacher's apoc package assumed.
package graph

import "github.com/nodalgraph/nodal/pkg/model"

// View is the merged snapshot+delta adjacency and edge-property surface
// every algorithm in this package reads through. Implementations must
// return neighbors already reflecting the delta merge discipline (spec
// §4.5): snapshot minus deletions, plus additions, with deleted nodes
// reporting an empty neighborhood.
type View interface {
	// Neighbors returns node's neighbors in direction dir. If hasEtype is
	// false, neighbors of every edge type are returned; otherwise only
	// those with the given etype. Self-loops are included.
	Neighbors(node model.NodeID, dir model.Direction, etype model.ETypeID, hasEtype bool) []model.Neighbor
	// EdgeProp returns the value of key on the (src, etype, dst) edge.
	EdgeProp(src model.NodeID, etype model.ETypeID, dst model.NodeID, key model.PropKeyID) (model.PropValue, bool)
}

// edgeFromNeighbor builds the model.Edge a Neighbor represents when walked
// from node in direction dir.
func edgeFromNeighbor(node model.NodeID, dir model.Direction, n model.Neighbor) model.Edge {
	if dir == model.In {
		return model.Edge{Src: n.Other, Etype: n.Etype, Dst: node}
	}
	return model.Edge{Src: node, Etype: n.Etype, Dst: n.Other}
}

// Step is one hop of a Traverse call: a direction and an optional etype
// filter.
type Step struct {
	Dir      model.Direction
	Etype    model.ETypeID
	HasEtype bool
}

// TraverseHit is one node reached by Traverse or TraverseDepth, carrying the
// edge it was reached through (absent for the seed nodes at depth 0).
type TraverseHit struct {
	Node     model.NodeID
	Depth    int
	HasEdge  bool
	EdgeSrc  model.NodeID
	EdgeDst  model.NodeID
	EdgeType model.ETypeID
}

// Traverse performs breadth-wise multi-hop traversal: sources start at depth
// 0, and each entry of steps expands the current frontier by one hop using
// that step's direction/etype filter. When unique is true, a node already
// emitted at an earlier depth is never re-emitted or re-expanded; when
// false, every walk is reported even if it revisits a node (self-loops are
// always explored either way).
func Traverse(view View, sources []model.NodeID, steps []Step, unique bool) []TraverseHit {
	var hits []TraverseHit
	visited := make(map[model.NodeID]struct{}, len(sources))
	frontier := make([]model.NodeID, 0, len(sources))
	for _, s := range sources {
		hits = append(hits, TraverseHit{Node: s, Depth: 0})
		frontier = append(frontier, s)
		visited[s] = struct{}{}
	}

	for depth, step := range steps {
		var next []model.NodeID
		for _, node := range frontier {
			for _, n := range view.Neighbors(node, step.Dir, step.Etype, step.HasEtype) {
				if unique {
					if _, seen := visited[n.Other]; seen {
						continue
					}
					visited[n.Other] = struct{}{}
				}
				e := edgeFromNeighbor(node, step.Dir, n)
				hits = append(hits, TraverseHit{
					Node: n.Other, Depth: depth + 1, HasEdge: true,
					EdgeSrc: e.Src, EdgeDst: e.Dst, EdgeType: e.Etype,
				})
				next = append(next, n.Other)
			}
		}
		frontier = next
	}
	return hits
}

// TraverseDepth runs a fixed-direction BFS from sources, emitting every node
// whose depth falls within [minDepth, maxDepth]. Layers are expanded one hop
// at a time regardless of the emission window, so callers requesting depths
// 3..5 still pay for layers 1 and 2.
func TraverseDepth(view View, sources []model.NodeID, etype model.ETypeID, hasEtype bool, minDepth, maxDepth int, dir model.Direction, unique bool) []TraverseHit {
	var hits []TraverseHit
	visited := make(map[model.NodeID]struct{}, len(sources))
	frontier := make([]model.NodeID, 0, len(sources))
	for _, s := range sources {
		if 0 >= minDepth && 0 <= maxDepth {
			hits = append(hits, TraverseHit{Node: s, Depth: 0})
		}
		frontier = append(frontier, s)
		visited[s] = struct{}{}
	}

	for depth := 1; depth <= maxDepth; depth++ {
		var next []model.NodeID
		for _, node := range frontier {
			for _, n := range view.Neighbors(node, dir, etype, hasEtype) {
				if unique {
					if _, seen := visited[n.Other]; seen {
						continue
					}
					visited[n.Other] = struct{}{}
				}
				if depth >= minDepth {
					e := edgeFromNeighbor(node, dir, n)
					hits = append(hits, TraverseHit{
						Node: n.Other, Depth: depth, HasEdge: true,
						EdgeSrc: e.Src, EdgeDst: e.Dst, EdgeType: e.Etype,
					})
				}
				next = append(next, n.Other)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return hits
}

// PathResult is the outcome of a path-search algorithm.
type PathResult struct {
	Nodes       []model.NodeID
	Edges       []model.Edge
	TotalWeight float64
	Found       bool
}

// BFS returns the first path from source to target by hop count, exploring
// neighbors in the order View.Neighbors reports them (the engine's view
// merges snapshot and delta additions sorted by (etype, other)) and allowing only
// the given etypes if allowedEtypes is non-empty. maxDepth <= 0 means
// unlimited.
func BFS(view View, source, target model.NodeID, allowedEtypes []model.ETypeID, maxDepth int) PathResult {
	if source == target {
		return PathResult{Nodes: []model.NodeID{source}, Found: true}
	}

	prev := map[model.NodeID]bfsStep{source: {}}
	queue := []model.NodeID{source}
	depth := map[model.NodeID]int{source: 0}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		d := depth[node]
		if maxDepth > 0 && d >= maxDepth {
			continue
		}
		for _, etype := range expandEtypes(allowedEtypes) {
			for _, n := range view.Neighbors(node, model.Out, etype.id, etype.has) {
				if _, seen := prev[n.Other]; seen {
					continue
				}
				e := edgeFromNeighbor(node, model.Out, n)
				prev[n.Other] = bfsStep{node: node, edge: e}
				depth[n.Other] = d + 1
				if n.Other == target {
					return reconstructBFS(prev, source, target)
				}
				queue = append(queue, n.Other)
			}
		}
	}
	return PathResult{}
}

type bfsStep struct {
	node model.NodeID
	edge model.Edge
}

type etypeFilter struct {
	id  model.ETypeID
	has bool
}

func expandEtypes(allowed []model.ETypeID) []etypeFilter {
	if len(allowed) == 0 {
		return []etypeFilter{{has: false}}
	}
	out := make([]etypeFilter, len(allowed))
	for i, e := range allowed {
		out[i] = etypeFilter{id: e, has: true}
	}
	return out
}

func reconstructBFS(prev map[model.NodeID]bfsStep, source, target model.NodeID) PathResult {
	var nodes []model.NodeID
	var edges []model.Edge
	cur := target
	for cur != source {
		step := prev[cur]
		nodes = append([]model.NodeID{cur}, nodes...)
		edges = append([]model.Edge{step.edge}, edges...)
		cur = step.node
	}
	nodes = append([]model.NodeID{source}, nodes...)
	return PathResult{Nodes: nodes, Edges: edges, Found: true}
}

// ReachableNodes returns every node reachable from source within maxDepth
// hops (not including source itself unless a cycle leads back to it).
// maxDepth <= 0 means unlimited.
func ReachableNodes(view View, source model.NodeID, maxDepth int, etype model.ETypeID, hasEtype bool, dir model.Direction) []model.NodeID {
	visited := map[model.NodeID]struct{}{source: {}}
	frontier := []model.NodeID{source}
	var result []model.NodeID

	for depth := 0; maxDepth <= 0 || depth < maxDepth; depth++ {
		var next []model.NodeID
		for _, node := range frontier {
			for _, n := range view.Neighbors(node, dir, etype, hasEtype) {
				if _, seen := visited[n.Other]; seen {
					continue
				}
				visited[n.Other] = struct{}{}
				result = append(result, n.Other)
				next = append(next, n.Other)
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return result
}

// HasPath reports whether a path exists from source to target, following
// the same semantics as BFS.
func HasPath(view View, source, target model.NodeID, allowedEtypes []model.ETypeID, maxDepth int) bool {
	return BFS(view, source, target, allowedEtypes, maxDepth).Found
}
