package engine

import (
	"github.com/nodalgraph/nodal/pkg/graph"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/vector"
)

// Traverse runs a multi-hop pattern walk from sources through steps, against
// the DB's current merged view.
func (db *DB) Traverse(sources []model.NodeID, steps []graph.Step, unique bool) []graph.TraverseHit {
	return graph.Traverse(db.View(), sources, steps, unique)
}

// TraverseDepth runs a fixed-direction BFS emitting every node within
// [minDepth, maxDepth] hops of sources.
func (db *DB) TraverseDepth(sources []model.NodeID, etype model.ETypeID, hasEtype bool, minDepth, maxDepth int, dir model.Direction, unique bool) []graph.TraverseHit {
	return graph.TraverseDepth(db.View(), sources, etype, hasEtype, minDepth, maxDepth, dir, unique)
}

// BFS finds an unweighted shortest path from source to target, optionally
// restricted to allowedEtypes, within maxDepth hops.
func (db *DB) BFS(source, target model.NodeID, allowedEtypes []model.ETypeID, maxDepth int) graph.PathResult {
	return graph.BFS(db.View(), source, target, allowedEtypes, maxDepth)
}

// ReachableNodes returns every node reachable from source within maxDepth
// hops in direction dir, optionally filtered to a single edge type.
func (db *DB) ReachableNodes(source model.NodeID, maxDepth int, etype model.ETypeID, hasEtype bool, dir model.Direction) []model.NodeID {
	return graph.ReachableNodes(db.View(), source, maxDepth, etype, hasEtype, dir)
}

// HasPath reports whether target is reachable from source within maxDepth
// hops, optionally restricted to allowedEtypes.
func (db *DB) HasPath(source, target model.NodeID, allowedEtypes []model.ETypeID, maxDepth int) bool {
	return graph.HasPath(db.View(), source, target, allowedEtypes, maxDepth)
}

// ShortestPath finds the lowest-weight path per cfg using edge properties as
// weights (Dijkstra's algorithm).
func (db *DB) ShortestPath(cfg graph.DijkstraConfig) graph.PathResult {
	return graph.Dijkstra(db.View(), cfg)
}

// KShortestPaths returns up to k loopless shortest paths per cfg, ranked by
// ascending total weight (Yen's algorithm over repeated Dijkstra calls).
func (db *DB) KShortestPaths(cfg graph.DijkstraConfig, k int) []graph.PathResult {
	return graph.KShortest(db.View(), cfg, k)
}

// Traverse, TraverseDepth, BFS, ReachableNodes, HasPath, ShortestPath, and
// KShortestPaths below mirror the DB-level graph algorithms above, but read
// through t's pinned view (t.View()) instead of the DB's live merged view —
// see txView's doc comment in mvccread.go for what pinning does and does not
// cover for enumeration-shaped reads.

func (t *Txn) Traverse(sources []model.NodeID, steps []graph.Step, unique bool) []graph.TraverseHit {
	return graph.Traverse(t.View(), sources, steps, unique)
}

func (t *Txn) TraverseDepth(sources []model.NodeID, etype model.ETypeID, hasEtype bool, minDepth, maxDepth int, dir model.Direction, unique bool) []graph.TraverseHit {
	return graph.TraverseDepth(t.View(), sources, etype, hasEtype, minDepth, maxDepth, dir, unique)
}

func (t *Txn) BFS(source, target model.NodeID, allowedEtypes []model.ETypeID, maxDepth int) graph.PathResult {
	return graph.BFS(t.View(), source, target, allowedEtypes, maxDepth)
}

func (t *Txn) ReachableNodes(source model.NodeID, maxDepth int, etype model.ETypeID, hasEtype bool, dir model.Direction) []model.NodeID {
	return graph.ReachableNodes(t.View(), source, maxDepth, etype, hasEtype, dir)
}

func (t *Txn) HasPath(source, target model.NodeID, allowedEtypes []model.ETypeID, maxDepth int) bool {
	return graph.HasPath(t.View(), source, target, allowedEtypes, maxDepth)
}

func (t *Txn) ShortestPath(cfg graph.DijkstraConfig) graph.PathResult {
	return graph.Dijkstra(t.View(), cfg)
}

func (t *Txn) KShortestPaths(cfg graph.DijkstraConfig, k int) []graph.PathResult {
	return graph.KShortest(t.View(), cfg, k)
}

// CreateVectorIndex declares a new vector index for propKey; it must not
// already exist.
func (db *DB) CreateVectorIndex(propKey model.PropKeyID, cfg vector.IndexConfig) error {
	return db.vectors.CreateIndex(propKey, cfg)
}

// GetNodeVector returns node's current vector under propKey.
func (db *DB) GetNodeVector(propKey model.PropKeyID, node model.NodeID) ([]float32, error) {
	return db.vectors.GetNodeVector(propKey, node)
}

// SearchVectors runs an approximate (or exact, depending on opts) k-NN query
// against propKey's index.
func (db *DB) SearchVectors(propKey model.PropKeyID, query []float32, k int, opts vector.SearchOptions) ([]vector.Result, error) {
	return db.vectors.Search(propKey, query, k, opts)
}

// BuildVectorIndex (re)trains propKey's IVF/PQ side structures from its
// current live vectors.
func (db *DB) BuildVectorIndex(propKey model.PropKeyID) error {
	return db.vectors.BuildIndex(propKey)
}

// CompactVectorIndex fuses propKey's fragments, discarding tombstoned rows.
func (db *DB) CompactVectorIndex(propKey model.PropKeyID) (before, after int, err error) {
	return db.vectors.Compact(propKey)
}

// VectorStats reports every vector index's live counters.
func (db *DB) VectorStats() []vector.Stats {
	return db.vectors.Stats()
}
