package cache

import (
	"sync"

	"github.com/nodalgraph/nodal/pkg/model"
)

// propEntry distinguishes a cached property value from a verified-absent
// result: absent=true means "looked up and confirmed missing", which is
// itself a cacheable fact distinct from "never looked up" (spec §4.8).
type propEntry struct {
	value  model.PropValue
	absent bool
}

type nodePropKey struct {
	Node model.NodeID
	Key  model.PropKeyID
}

type edgePropKey struct {
	Edge model.Edge
	Key  model.PropKeyID
}

// PropCache holds the node-prop and edge-prop sub-caches of spec §4.8, each
// with a reverse index (entity -> set of cached prop keys) so a mutation on
// one entity can evict exactly its cached entries without scanning the
// whole cache.
type PropCache struct {
	node *lru[nodePropKey, propEntry]
	edge *lru[edgePropKey, propEntry]

	mu        sync.Mutex
	nodeIndex map[model.NodeID]map[model.PropKeyID]struct{}
	edgeIndex map[model.Edge]map[model.PropKeyID]struct{}
}

// NewPropCache returns a PropCache with independent capacities for the node
// and edge sub-caches.
func NewPropCache(nodeCapacity, edgeCapacity int) *PropCache {
	return &PropCache{
		node:      newLRU[nodePropKey, propEntry](nodeCapacity),
		edge:      newLRU[edgePropKey, propEntry](edgeCapacity),
		nodeIndex: make(map[model.NodeID]map[model.PropKeyID]struct{}),
		edgeIndex: make(map[model.Edge]map[model.PropKeyID]struct{}),
	}
}

// GetNodeProp returns the cached value for (node, key). found is false if
// nothing is cached; when found is true, absent distinguishes a
// verified-missing property from an actual PropValue.
func (c *PropCache) GetNodeProp(node model.NodeID, key model.PropKeyID) (value model.PropValue, absent bool, found bool) {
	e, ok := c.node.get(nodePropKey{Node: node, Key: key})
	if !ok {
		return model.PropValue{}, false, false
	}
	return e.value, e.absent, true
}

// PutNodeProp caches value for (node, key).
func (c *PropCache) PutNodeProp(node model.NodeID, key model.PropKeyID, value model.PropValue) {
	c.putNode(node, key, propEntry{value: value})
}

// PutNodeAbsent caches that (node, key) is verified not to exist.
func (c *PropCache) PutNodeAbsent(node model.NodeID, key model.PropKeyID) {
	c.putNode(node, key, propEntry{absent: true})
}

func (c *PropCache) putNode(node model.NodeID, key model.PropKeyID, e propEntry) {
	evicted := c.node.put(nodePropKey{Node: node, Key: key}, e)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nodeIndex[node] == nil {
		c.nodeIndex[node] = make(map[model.PropKeyID]struct{})
	}
	c.nodeIndex[node][key] = struct{}{}
	for _, k := range evicted {
		c.dropNodeIndexLocked(k.Node, k.Key)
	}
}

func (c *PropCache) dropNodeIndexLocked(node model.NodeID, key model.PropKeyID) {
	set := c.nodeIndex[node]
	if set == nil {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(c.nodeIndex, node)
	}
}

// GetEdgeProp returns the cached value for (edge, key), following the same
// absent/found contract as GetNodeProp.
func (c *PropCache) GetEdgeProp(e model.Edge, key model.PropKeyID) (value model.PropValue, absent bool, found bool) {
	entry, ok := c.edge.get(edgePropKey{Edge: e, Key: key})
	if !ok {
		return model.PropValue{}, false, false
	}
	return entry.value, entry.absent, true
}

// PutEdgeProp caches value for (edge, key).
func (c *PropCache) PutEdgeProp(e model.Edge, key model.PropKeyID, value model.PropValue) {
	c.putEdge(e, key, propEntry{value: value})
}

// PutEdgeAbsent caches that (edge, key) is verified not to exist.
func (c *PropCache) PutEdgeAbsent(e model.Edge, key model.PropKeyID) {
	c.putEdge(e, key, propEntry{absent: true})
}

func (c *PropCache) putEdge(e model.Edge, key model.PropKeyID, entry propEntry) {
	evicted := c.edge.put(edgePropKey{Edge: e, Key: key}, entry)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edgeIndex[e] == nil {
		c.edgeIndex[e] = make(map[model.PropKeyID]struct{})
	}
	c.edgeIndex[e][key] = struct{}{}
	for _, k := range evicted {
		c.dropEdgeIndexLocked(k.Edge, k.Key)
	}
}

func (c *PropCache) dropEdgeIndexLocked(e model.Edge, key model.PropKeyID) {
	set := c.edgeIndex[e]
	if set == nil {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(c.edgeIndex, e)
	}
}

// InvalidateNode evicts every cached property of node.
func (c *PropCache) InvalidateNode(node model.NodeID) {
	c.mu.Lock()
	keys := c.nodeIndex[node]
	delete(c.nodeIndex, node)
	c.mu.Unlock()
	for key := range keys {
		c.node.remove(nodePropKey{Node: node, Key: key})
	}
}

// InvalidateEdge evicts every cached property of e.
func (c *PropCache) InvalidateEdge(e model.Edge) {
	c.mu.Lock()
	keys := c.edgeIndex[e]
	delete(c.edgeIndex, e)
	c.mu.Unlock()
	for key := range keys {
		c.edge.remove(edgePropKey{Edge: e, Key: key})
	}
}

// Clear empties both sub-caches and their reverse indices.
func (c *PropCache) Clear() {
	c.node.clear()
	c.edge.clear()
	c.mu.Lock()
	c.nodeIndex = make(map[model.NodeID]map[model.PropKeyID]struct{})
	c.edgeIndex = make(map[model.Edge]map[model.PropKeyID]struct{})
	c.mu.Unlock()
}

// NodeStats returns statistics for the node-prop sub-cache.
func (c *PropCache) NodeStats() Stats { return c.node.stats() }

// EdgeStats returns statistics for the edge-prop sub-cache.
func (c *PropCache) EdgeStats() Stats { return c.edge.stats() }
