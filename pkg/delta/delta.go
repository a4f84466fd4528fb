// Package delta implements the in-memory overlay of uncheckpointed
// mutations that sits in front of the immutable snapshot (spec §4.5): created
// and deleted nodes, patched properties and labels, adjacency add/delete
// lists, edge property patches, the key-index overlay, and pending schema
// name registrations. A read always consults the delta first and falls back
// to the snapshot.
package delta

import (
	"sync"

	"github.com/nodalgraph/nodal/pkg/keyindex"
	"github.com/nodalgraph/nodal/pkg/model"
)

// CreatedNode is the full state of a node created since the last checkpoint;
// it has no counterpart in the snapshot yet.
type CreatedNode struct {
	Key    string
	Labels []model.LabelID
	Props  map[model.PropKeyID]model.PropValue
}

// ModifiedNode patches a node that already exists in the snapshot.
// PropPatches maps a PropKeyID to its new value, or to nil to mark the
// property deleted.
type ModifiedNode struct {
	PropPatches  map[model.PropKeyID]*model.PropValue
	LabelAdds    []model.LabelID
	LabelRemoves []model.LabelID
}

// VectorIntentSink receives vector mutation intents forwarded by the delta
// rather than stored in it directly (spec §4.5): pkg/vector owns the
// columnar fragment store and its own insert/delete bookkeeping.
type VectorIntentSink interface {
	SetNodeVector(node model.NodeID, propKey model.PropKeyID, v []float32) error
	DeleteNodeVector(node model.NodeID, propKey model.PropKeyID) error
}

// Delta collects every uncheckpointed mutation. All exported methods are
// safe for concurrent use.
type Delta struct {
	mu sync.RWMutex

	created  map[model.NodeID]*CreatedNode
	deleted  map[model.NodeID]struct{}
	modified map[model.NodeID]*ModifiedNode

	outAdd map[model.NodeID][]model.Neighbor
	outDel map[model.NodeID][]model.Neighbor
	inAdd  map[model.NodeID][]model.Neighbor
	inDel  map[model.NodeID][]model.Neighbor

	edgeProps map[model.Edge]map[model.PropKeyID]*model.PropValue

	keys *keyindex.Index

	newLabels   map[model.LabelID]string
	newEtypes   map[model.ETypeID]string
	newPropKeys map[model.PropKeyID]string

	vectors VectorIntentSink
}

// New returns an empty delta bound to disk (the active snapshot's key
// index, or nil before the first checkpoint) and vectors (the vector store
// receiving forwarded intents).
func New(disk keyindex.DiskLookup, vectors VectorIntentSink) *Delta {
	return &Delta{
		created:     make(map[model.NodeID]*CreatedNode),
		deleted:     make(map[model.NodeID]struct{}),
		modified:    make(map[model.NodeID]*ModifiedNode),
		outAdd:      make(map[model.NodeID][]model.Neighbor),
		outDel:      make(map[model.NodeID][]model.Neighbor),
		inAdd:       make(map[model.NodeID][]model.Neighbor),
		inDel:       make(map[model.NodeID][]model.Neighbor),
		edgeProps:   make(map[model.Edge]map[model.PropKeyID]*model.PropValue),
		keys:        keyindex.New(disk),
		newLabels:   make(map[model.LabelID]string),
		newEtypes:   make(map[model.ETypeID]string),
		newPropKeys: make(map[model.PropKeyID]string),
		vectors:     vectors,
	}
}

// Keys exposes the key-index overlay so callers (pkg/engine) can resolve
// string keys and the checkpointer can read back its Additions/Deletions.
func (d *Delta) Keys() *keyindex.Index { return d.keys }

// CreateNode records a new node. If key is non-empty it is registered in the
// key-index overlay, clearing any tombstone left by a prior delete of the
// same key within this delta epoch.
func (d *Delta) CreateNode(id model.NodeID, key string, labels []model.LabelID, props map[model.PropKeyID]model.PropValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created[id] = &CreatedNode{Key: key, Labels: append([]model.LabelID(nil), labels...), Props: copyProps(props)}
	delete(d.deleted, id)
	delete(d.modified, id)
	if key != "" {
		d.keys.Put(key, id)
	}
}

// DeleteNode tombstones id. A node created and deleted within the same
// delta epoch is simply discarded rather than tombstoned, since the
// snapshot never saw it.
func (d *Delta) DeleteNode(id model.NodeID, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, wasCreated := d.created[id]; wasCreated {
		delete(d.created, id)
	} else {
		d.deleted[id] = struct{}{}
	}
	delete(d.modified, id)
	if key != "" {
		d.keys.Delete(key)
	}
}

// CreatedNodeIDs, DeletedNodeIDs, and ModifiedNodeIDs expose the key sets of
// the three node maps, for the checkpointer and for count/list queries that
// must enumerate the delta overlay on top of the snapshot.
func (d *Delta) CreatedNodeIDs() []model.NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.NodeID, 0, len(d.created))
	for id := range d.created {
		out = append(out, id)
	}
	return out
}

func (d *Delta) DeletedNodeIDs() []model.NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.NodeID, 0, len(d.deleted))
	for id := range d.deleted {
		out = append(out, id)
	}
	return out
}

func (d *Delta) ModifiedNodeIDs() []model.NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.NodeID, 0, len(d.modified))
	for id := range d.modified {
		out = append(out, id)
	}
	return out
}

// EdgePropPatches returns every edge with a pending property patch, for the
// checkpointer to fold into the merged EdgeRecord set.
func (d *Delta) EdgePropPatches() map[model.Edge]map[model.PropKeyID]*model.PropValue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[model.Edge]map[model.PropKeyID]*model.PropValue, len(d.edgeProps))
	for e, m := range d.edgeProps {
		cp := make(map[model.PropKeyID]*model.PropValue, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[e] = cp
	}
	return out
}

// OutAddedNodes returns every node with at least one pending outgoing-edge
// addition, so the checkpointer can discover edges whose source node was
// never otherwise touched this epoch (e.g. an edge added between two
// snapshot nodes with no other patch).
func (d *Delta) OutAddedNodes() []model.NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.NodeID, 0, len(d.outAdd))
	for id := range d.outAdd {
		out = append(out, id)
	}
	return out
}

// IsNodeDeleted reports whether id is tombstoned in this delta.
func (d *Delta) IsNodeDeleted(id model.NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.deleted[id]
	return ok
}

// CreatedNode returns the pending created-node record for id, if any.
func (d *Delta) CreatedNode(id model.NodeID) (*CreatedNode, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.created[id]
	return n, ok
}

// ModifiedNode returns the pending patch record for id, if any.
func (d *Delta) ModifiedNode(id model.NodeID) (*ModifiedNode, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.modified[id]
	return m, ok
}

func (d *Delta) modifiedOrNew(id model.NodeID) *ModifiedNode {
	m, ok := d.modified[id]
	if !ok {
		m = &ModifiedNode{PropPatches: make(map[model.PropKeyID]*model.PropValue)}
		d.modified[id] = m
	}
	return m
}

// SetNodeProp sets key=val on id. If id was created within this delta, the
// created record is mutated directly; otherwise a patch is recorded against
// the snapshot's version.
func (d *Delta) SetNodeProp(id model.NodeID, key model.PropKeyID, val model.PropValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.created[id]; ok {
		if c.Props == nil {
			c.Props = make(map[model.PropKeyID]model.PropValue)
		}
		c.Props[key] = val
		return
	}
	d.modifiedOrNew(id).PropPatches[key] = &val
}

// DelNodeProp removes key from id's effective property set.
func (d *Delta) DelNodeProp(id model.NodeID, key model.PropKeyID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.created[id]; ok {
		delete(c.Props, key)
		return
	}
	d.modifiedOrNew(id).PropPatches[key] = nil
}

// AddNodeLabel and RemoveNodeLabel patch a node's label set.
func (d *Delta) AddNodeLabel(id model.NodeID, label model.LabelID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.created[id]; ok {
		if !containsLabel(c.Labels, label) {
			c.Labels = append(c.Labels, label)
		}
		return
	}
	m := d.modifiedOrNew(id)
	m.LabelRemoves = removeLabel(m.LabelRemoves, label)
	if !containsLabel(m.LabelAdds, label) {
		m.LabelAdds = append(m.LabelAdds, label)
	}
}

func (d *Delta) RemoveNodeLabel(id model.NodeID, label model.LabelID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.created[id]; ok {
		c.Labels = removeLabel(c.Labels, label)
		return
	}
	m := d.modifiedOrNew(id)
	m.LabelAdds = removeLabel(m.LabelAdds, label)
	if !containsLabel(m.LabelRemoves, label) {
		m.LabelRemoves = append(m.LabelRemoves, label)
	}
}

// AddOutEdge records src->dst. Re-adding an edge deleted earlier in the same
// delta epoch cancels the pending deletion rather than appending a
// duplicate (spec §4.5's "last-writer-wins by order").
func (d *Delta) AddOutEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nb := model.Neighbor{Etype: etype, Other: dst}
	d.outDel[src] = removeNeighbor(d.outDel[src], nb)
	d.outAdd[src] = appendNeighbor(d.outAdd[src], nb)
	nbIn := model.Neighbor{Etype: etype, Other: src}
	d.inDel[dst] = removeNeighbor(d.inDel[dst], nbIn)
	d.inAdd[dst] = appendNeighbor(d.inAdd[dst], nbIn)
}

// RemoveOutEdge records the deletion of src->dst.
func (d *Delta) RemoveOutEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nb := model.Neighbor{Etype: etype, Other: dst}
	d.outAdd[src] = removeNeighbor(d.outAdd[src], nb)
	d.outDel[src] = appendNeighbor(d.outDel[src], nb)
	delete(d.edgeProps, model.Edge{Src: src, Etype: etype, Dst: dst})
	nbIn := model.Neighbor{Etype: etype, Other: src}
	d.inAdd[dst] = removeNeighbor(d.inAdd[dst], nbIn)
	d.inDel[dst] = appendNeighbor(d.inDel[dst], nbIn)
}

// OutAdd, OutDel, InAdd, InDel expose the raw per-node patch lists for
// pkg/graph's NeighborsView merge and the checkpointer.
func (d *Delta) OutAdd(id model.NodeID) []model.Neighbor { return d.snapshotList(d.outAdd, id) }
func (d *Delta) OutDel(id model.NodeID) []model.Neighbor { return d.snapshotList(d.outDel, id) }
func (d *Delta) InAdd(id model.NodeID) []model.Neighbor  { return d.snapshotList(d.inAdd, id) }
func (d *Delta) InDel(id model.NodeID) []model.Neighbor  { return d.snapshotList(d.inDel, id) }

func (d *Delta) snapshotList(m map[model.NodeID][]model.Neighbor, id model.NodeID) []model.Neighbor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Neighbor(nil), m[id]...)
}

// SetEdgeProp and DelEdgeProp patch an edge's property map.
func (d *Delta) SetEdgeProp(e model.Edge, key model.PropKeyID, val model.PropValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.edgeProps[e]
	if !ok {
		m = make(map[model.PropKeyID]*model.PropValue)
		d.edgeProps[e] = m
	}
	m[key] = &val
}

func (d *Delta) DelEdgeProp(e model.Edge, key model.PropKeyID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.edgeProps[e]
	if !ok {
		m = make(map[model.PropKeyID]*model.PropValue)
		d.edgeProps[e] = m
	}
	m[key] = nil
}

// EdgePropPatch returns the pending property patch for e, if any.
func (d *Delta) EdgePropPatch(e model.Edge) (map[model.PropKeyID]*model.PropValue, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.edgeProps[e]
	return m, ok
}

// DefineLabel, DefineEtype, and DefinePropKey register a new schema name
// pending the next checkpoint (spec invariant 6: dense IDs from 1).
func (d *Delta) DefineLabel(id model.LabelID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newLabels[id] = name
}

func (d *Delta) DefineEtype(id model.ETypeID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newEtypes[id] = name
}

func (d *Delta) DefinePropKey(id model.PropKeyID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newPropKeys[id] = name
}

// NewLabels, NewEtypes, and NewPropKeys expose the pending schema
// registrations for the checkpointer to fold into the next snapshot.
func (d *Delta) NewLabels() map[model.LabelID]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyNames(d.newLabels)
}

func (d *Delta) NewEtypes() map[model.ETypeID]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyNames(d.newEtypes)
}

func (d *Delta) NewPropKeys() map[model.PropKeyID]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyNames(d.newPropKeys)
}

// SetNodeVector and DeleteNodeVector forward vector mutation intents to the
// vector store instead of buffering them here (spec §4.5).
func (d *Delta) SetNodeVector(node model.NodeID, propKey model.PropKeyID, v []float32) error {
	return d.vectors.SetNodeVector(node, propKey, v)
}

func (d *Delta) DeleteNodeVector(node model.NodeID, propKey model.PropKeyID) error {
	return d.vectors.DeleteNodeVector(node, propKey)
}

// MergeNeighbors applies spec §4.5's merge discipline to one node's
// adjacency: (disk ∖ del) ∪ add.
func MergeNeighbors(disk []model.Neighbor, add, del []model.Neighbor) []model.Neighbor {
	if len(add) == 0 && len(del) == 0 {
		return disk
	}
	delSet := make(map[model.Neighbor]struct{}, len(del))
	for _, nb := range del {
		delSet[nb] = struct{}{}
	}
	out := make([]model.Neighbor, 0, len(disk)+len(add))
	for _, nb := range disk {
		if _, gone := delSet[nb]; !gone {
			out = append(out, nb)
		}
	}
	out = append(out, add...)
	return out
}

func copyProps(m map[model.PropKeyID]model.PropValue) map[model.PropKeyID]model.PropValue {
	if m == nil {
		return make(map[model.PropKeyID]model.PropValue)
	}
	out := make(map[model.PropKeyID]model.PropValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyNames[K comparable](m map[K]string) map[K]string {
	out := make(map[K]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func containsLabel(labels []model.LabelID, l model.LabelID) bool {
	for _, x := range labels {
		if x == l {
			return true
		}
	}
	return false
}

func removeLabel(labels []model.LabelID, l model.LabelID) []model.LabelID {
	out := labels[:0]
	for _, x := range labels {
		if x != l {
			out = append(out, x)
		}
	}
	return out
}

func appendNeighbor(list []model.Neighbor, nb model.Neighbor) []model.Neighbor {
	for _, x := range list {
		if x == nb {
			return list
		}
	}
	return append(list, nb)
}

func removeNeighbor(list []model.Neighbor, nb model.Neighbor) []model.Neighbor {
	out := list[:0]
	for _, x := range list {
		if x != nb {
			out = append(out, x)
		}
	}
	return out
}
