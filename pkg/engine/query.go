package engine

import (
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
	"github.com/nodalgraph/nodal/pkg/pool"
)

// Node is a materialized node read result: the merged view of a snapshot
// entry (if any) and whatever the delta has patched on top of it.
type Node struct {
	ID     model.NodeID
	Key    string
	Labels []model.LabelID
	Props  map[model.PropKeyID]model.PropValue
}

// GetNode resolves id to its current merged state.
func (db *DB) GetNode(id model.NodeID) (Node, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	key, labels, props, ok := db.resolveNode(id)
	if !ok {
		return Node{}, nerr.Wrapf(nerr.ErrNotFound, "engine: node %d not found", id)
	}
	return Node{ID: id, Key: key, Labels: labels, Props: props}, nil
}

// GetNodeProp resolves a single property on id, consulting the prop cache
// first.
func (db *DB) GetNodeProp(id model.NodeID, key model.PropKeyID) (model.PropValue, bool) {
	if db.propCache != nil {
		if v, absent, found := db.propCache.GetNodeProp(id, key); found {
			if absent {
				return model.PropValue{}, false
			}
			return v, true
		}
	}
	db.mu.RLock()
	_, _, props, ok := db.resolveNode(id)
	db.mu.RUnlock()
	if !ok {
		return model.PropValue{}, false
	}
	v, has := props[key]
	if db.propCache != nil {
		if has {
			db.propCache.PutNodeProp(id, key, v)
		} else {
			db.propCache.PutNodeAbsent(id, key)
		}
	}
	return v, has
}

// NodeExists reports whether id is live in the current merged view.
func (db *DB) NodeExists(id model.NodeID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.nodeExistsLocked(id)
}

// GetNodeByKey resolves a unique node key to its ID, consulting the key
// lookup cache before the merged key index.
func (db *DB) GetNodeByKey(key string) (model.NodeID, bool) {
	if db.keyCache != nil {
		if id, ok := db.keyCache.Get(key); ok {
			return model.NodeID(id), true
		}
	}
	db.mu.RLock()
	id, ok := db.delta.Keys().Lookup(key)
	db.mu.RUnlock()
	if ok && db.keyCache != nil {
		db.keyCache.Put(key, uint64(id))
	}
	return id, ok
}

// NeighborsOut and NeighborsIn return id's outgoing/incoming neighbors,
// optionally filtered to a single edge type.
func (db *DB) NeighborsOut(id model.NodeID, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.neighborsLocked(id, model.Out, etype, hasEtype)
}

func (db *DB) NeighborsIn(id model.NodeID, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.neighborsLocked(id, model.In, etype, hasEtype)
}

// EdgeExists reports whether (src, etype, dst) is present in the merged
// view.
func (db *DB) EdgeExists(src model.NodeID, etype model.ETypeID, dst model.NodeID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.edgeExistsLocked(src, etype, dst)
}

// GetEdgeProp resolves a single property on edge (src, etype, dst).
func (db *DB) GetEdgeProp(src model.NodeID, etype model.ETypeID, dst model.NodeID, key model.PropKeyID) (model.PropValue, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.edgePropLocked(src, etype, dst, key)
}

// GetEdgeProps resolves every property on edge (src, etype, dst).
func (db *DB) GetEdgeProps(src model.NodeID, etype model.ETypeID, dst model.NodeID) (map[model.PropKeyID]model.PropValue, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if !db.edgeExistsLocked(src, etype, dst) {
		return nil, false
	}
	return db.edgePropsLocked(src, etype, dst), true
}

// ListNodes returns every live NodeID in ascending order, merging the
// snapshot's physical scan with the delta's pending creates/deletes.
func (db *DB) ListNodes() []model.NodeID {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.listNodesLocked()
}

// listNodesLocked is ListNodes for a caller already holding db.mu. The
// scratch slice it accumulates into never escapes this function — sorted
// NodeIDs returns a fresh copy — so it is drawn from and returned to the
// shared NodeID pool.
func (db *DB) listNodesLocked() []model.NodeID {
	seen := make(map[model.NodeID]struct{})
	out := pool.GetNodeIDSlice()
	defer func() { pool.PutNodeIDSlice(out) }()
	if db.snap != nil {
		for _, id := range db.snap.AllNodeIDs() {
			if db.delta.IsNodeDeleted(id) {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range db.delta.CreatedNodeIDs() {
		if _, dup := seen[id]; dup {
			continue
		}
		if db.delta.IsNodeDeleted(id) {
			continue
		}
		out = append(out, id)
	}
	return sortedNodeIDs(out)
}

// ListEdges returns every live edge in the merged view, computed from
// listNodesLocked's outgoing adjacency so it reuses the same snapshot/delta
// merge path as point reads.
func (db *DB) ListEdges() []model.Edge {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []model.Edge
	for _, id := range db.listNodesLocked() {
		for _, nb := range db.neighborsLocked(id, model.Out, 0, false) {
			out = append(out, model.Edge{Src: id, Etype: nb.Etype, Dst: nb.Other})
		}
	}
	return out
}

// CountNodes and CountEdges report live counts by building the full
// ListNodes/ListEdges result and returning its length.
func (db *DB) CountNodes() int {
	return len(db.ListNodes())
}

func (db *DB) CountEdges() int {
	return len(db.ListEdges())
}

// edgePropsLocked resolves every property on edge (src, etype, dst). Caller
// must hold db.mu.
func (db *DB) edgePropsLocked(src model.NodeID, etype model.ETypeID, dst model.NodeID) map[model.PropKeyID]model.PropValue {
	e := model.Edge{Src: src, Etype: etype, Dst: dst}
	var base map[model.PropKeyID]model.PropValue
	if db.snap != nil {
		base, _ = db.snap.EdgeProps(src, etype, dst)
	}
	if patch, hasPatch := db.delta.EdgePropPatch(e); hasPatch {
		return applyPropPatch(base, patch)
	}
	return copyPropMap(base)
}
