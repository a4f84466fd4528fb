package engine

import (
	"sort"

	"github.com/nodalgraph/nodal/pkg/delta"
	"github.com/nodalgraph/nodal/pkg/model"
)

// view implements graph.View by merging the active snapshot with the
// current delta overlay (spec §4.5's merge discipline), fronted by the
// traversal cache when enabled. Each method takes db.mu.RLock itself for the
// duration of its call; callers of view hold no lock.
type view struct {
	db *DB
}

// View returns a graph.View reading the DB's current merged state. The
// returned value is only valid for the duration of the calling operation —
// a checkpoint can swap db.snap/db.delta between calls.
func (db *DB) View() *view { return &view{db: db} }

func filterNeighbors(list []model.Neighbor, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	if !hasEtype {
		return list
	}
	out := make([]model.Neighbor, 0, len(list))
	for _, n := range list {
		if n.Etype == etype {
			out = append(out, n)
		}
	}
	return out
}

// Neighbors implements graph.View.
func (v *view) Neighbors(node model.NodeID, dir model.Direction, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	db := v.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.neighborsLocked(node, dir, etype, hasEtype)
}

func (db *DB) neighborsLocked(node model.NodeID, dir model.Direction, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	if db.delta.IsNodeDeleted(node) {
		return nil
	}
	if db.travCache != nil {
		if nb, truncated, found := db.travCache.Get(node, etype, !hasEtype, dir); found && !truncated {
			return nb
		}
	}

	var out []model.Neighbor
	if dir == model.Out || dir == model.Both {
		var disk []model.Neighbor
		if db.snap != nil && db.snap.NodeExists(node) {
			disk = db.snap.Neighbors(node, model.Out, etype, hasEtype)
		}
		add := filterNeighbors(db.delta.OutAdd(node), etype, hasEtype)
		del := filterNeighbors(db.delta.OutDel(node), etype, hasEtype)
		out = append(out, delta.MergeNeighbors(disk, add, del)...)
	}
	if dir == model.In || dir == model.Both {
		var disk []model.Neighbor
		if db.snap != nil && db.snap.NodeExists(node) {
			disk = db.snap.Neighbors(node, model.In, etype, hasEtype)
		}
		add := filterNeighbors(db.delta.InAdd(node), etype, hasEtype)
		del := filterNeighbors(db.delta.InDel(node), etype, hasEtype)
		out = append(out, delta.MergeNeighbors(disk, add, del)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	if db.travCache != nil {
		db.travCache.Put(node, etype, !hasEtype, dir, out)
	}
	return out
}

// EdgeProp implements graph.View.
func (v *view) EdgeProp(src model.NodeID, etype model.ETypeID, dst model.NodeID, key model.PropKeyID) (model.PropValue, bool) {
	db := v.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.edgePropLocked(src, etype, dst, key)
}

func (db *DB) edgePropLocked(src model.NodeID, etype model.ETypeID, dst model.NodeID, key model.PropKeyID) (model.PropValue, bool) {
	e := model.Edge{Src: src, Etype: etype, Dst: dst}
	if patch, ok := db.delta.EdgePropPatch(e); ok {
		if pv, has := patch[key]; has {
			if pv == nil {
				return model.PropValue{}, false
			}
			return *pv, true
		}
	}
	if db.snap != nil {
		if props, ok := db.snap.EdgeProps(src, etype, dst); ok {
			if pv, has := props[key]; has {
				return pv, true
			}
		}
	}
	return model.PropValue{}, false
}

// resolveNode returns id's merged key/labels/props, or ok=false if id does
// not exist or was deleted. Caller must hold db.mu (read or write lock).
func (db *DB) resolveNode(id model.NodeID) (key string, labels []model.LabelID, props map[model.PropKeyID]model.PropValue, ok bool) {
	if db.delta.IsNodeDeleted(id) {
		return "", nil, nil, false
	}
	if c, found := db.delta.CreatedNode(id); found {
		return c.Key, append([]model.LabelID(nil), c.Labels...), copyPropMap(c.Props), true
	}
	if db.snap == nil {
		return "", nil, nil, false
	}
	baseKey, baseLabels, baseProps, found := db.snap.NodeByID(id)
	if !found {
		return "", nil, nil, false
	}
	if m, has := db.delta.ModifiedNode(id); has {
		labels = applyLabelPatch(baseLabels, m.LabelAdds, m.LabelRemoves)
		props = applyPropPatch(baseProps, m.PropPatches)
	} else {
		labels = baseLabels
		props = copyPropMap(baseProps)
	}
	return baseKey, labels, props, true
}

// nodeExistsLocked reports whether id is live in the merged view. Caller
// must hold db.mu.
func (db *DB) nodeExistsLocked(id model.NodeID) bool {
	if db.delta.IsNodeDeleted(id) {
		return false
	}
	if _, found := db.delta.CreatedNode(id); found {
		return true
	}
	return db.snap != nil && db.snap.NodeExists(id)
}

func (db *DB) edgeExistsLocked(src model.NodeID, etype model.ETypeID, dst model.NodeID) bool {
	nbs := db.neighborsLocked(src, model.Out, etype, true)
	for _, n := range nbs {
		if n.Other == dst {
			return true
		}
	}
	return false
}

func copyPropMap(m map[model.PropKeyID]model.PropValue) map[model.PropKeyID]model.PropValue {
	out := make(map[model.PropKeyID]model.PropValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func applyPropPatch(base map[model.PropKeyID]model.PropValue, patch map[model.PropKeyID]*model.PropValue) map[model.PropKeyID]model.PropValue {
	out := copyPropMap(base)
	for k, v := range patch {
		if v == nil {
			delete(out, k)
		} else {
			out[k] = *v
		}
	}
	return out
}

func applyLabelPatch(base []model.LabelID, adds, removes []model.LabelID) []model.LabelID {
	removed := make(map[model.LabelID]struct{}, len(removes))
	for _, l := range removes {
		removed[l] = struct{}{}
	}
	out := make([]model.LabelID, 0, len(base)+len(adds))
	present := make(map[model.LabelID]struct{}, len(base)+len(adds))
	for _, l := range base {
		if _, gone := removed[l]; gone {
			continue
		}
		if _, dup := present[l]; dup {
			continue
		}
		present[l] = struct{}{}
		out = append(out, l)
	}
	for _, l := range adds {
		if _, dup := present[l]; dup {
			continue
		}
		present[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
