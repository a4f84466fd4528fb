package snapshot

import "github.com/nodalgraph/nodal/pkg/model"

// NodeByID reports whether id exists in the snapshot and, if so, its
// resolved key, labels, and properties.
func (r *Reader) NodeByID(id model.NodeID) (key string, labels []model.LabelID, props map[model.PropKeyID]model.PropValue, ok bool) {
	phys, found := r.findNodePhys(id)
	if !found {
		return "", nil, nil, false
	}
	labels, props, ok = r.nodeProps(phys)
	if !ok {
		return "", nil, nil, false
	}
	return r.NodeKey(phys), labels, props, true
}

// NodeExists reports whether id is present in the snapshot.
func (r *Reader) NodeExists(id model.NodeID) bool {
	_, ok := r.findNodePhys(id)
	return ok
}

// Neighbors returns id's neighbors in direction dir, filtered to etype when
// hasEtype is true. Both adjacencies are pre-sorted by (etype, other) per
// spec invariant 2.
func (r *Reader) Neighbors(id model.NodeID, dir model.Direction, etype model.ETypeID, hasEtype bool) []model.Neighbor {
	phys, ok := r.findNodePhys(id)
	if !ok {
		return nil
	}
	var out []model.Neighbor
	if dir == model.Out || dir == model.Both {
		dst, et := r.outAdjacencySlice(phys)
		for i := range dst {
			if hasEtype && et[i] != etype {
				continue
			}
			out = append(out, model.Neighbor{Etype: et[i], Other: dst[i]})
		}
	}
	if dir == model.In || dir == model.Both {
		src, et := r.inAdjacencySlice(phys)
		for i := range src {
			if hasEtype && et[i] != etype {
				continue
			}
			out = append(out, model.Neighbor{Etype: et[i], Other: src[i]})
		}
	}
	return out
}

// EdgeProps returns the property map of edge (src, etype, dst), if it
// exists.
func (r *Reader) EdgeProps(src model.NodeID, etype model.ETypeID, dst model.NodeID) (map[model.PropKeyID]model.PropValue, bool) {
	phys, ok := r.findNodePhys(src)
	if !ok {
		return nil, false
	}
	slot, ok := r.findEdgeIndex(phys, etype, dst)
	if !ok {
		return nil, false
	}
	return r.edgePropsAt(slot)
}

// EdgeExists reports whether (src, etype, dst) is present in the snapshot.
func (r *Reader) EdgeExists(src model.NodeID, etype model.ETypeID, dst model.NodeID) bool {
	phys, ok := r.findNodePhys(src)
	if !ok {
		return false
	}
	_, ok = r.findEdgeIndex(phys, etype, dst)
	return ok
}

// AllNodeIDs returns every NodeID in physical (sorted) order, for full scans
// such as listNodes and checkpoint merges.
func (r *Reader) AllNodeIDs() []model.NodeID {
	out := make([]model.NodeID, r.nodeCount)
	for i := range out {
		out[i] = r.getNodeIdByPhys(uint32(i))
	}
	return out
}

// AllEdges returns every edge in the snapshot as (src, etype, dst) triples,
// for full scans such as listEdges and checkpoint merges.
func (r *Reader) AllEdges() []model.Edge {
	out := make([]model.Edge, 0, r.edgeCount)
	for phys := uint32(0); phys < uint32(r.nodeCount); phys++ {
		src := r.getNodeIdByPhys(phys)
		dst, et := r.outAdjacencySlice(phys)
		for i := range dst {
			out = append(out, model.Edge{Src: src, Etype: et[i], Dst: dst[i]})
		}
	}
	return out
}
