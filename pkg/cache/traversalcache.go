package cache

import (
	"sync"

	"github.com/nodalgraph/nodal/pkg/model"
)

// allEtypes is the sentinel etype-or-all key value: spec §4.8's traversal
// cache is keyed by {NodeID, etype-or-all, direction}, and model.NoneID (0)
// already serves as the module's generic "no value" sentinel.
const allEtypes = model.ETypeID(model.NoneID)

type travKey struct {
	Node  model.NodeID
	Etype model.ETypeID
	Dir   model.Direction
}

type travEntry struct {
	neighbors []model.Neighbor
	truncated bool
}

// TraversalCache caches adjacency lookups keyed by {node, etype-or-all,
// direction}, with reverse indices for both the source node and every node
// appearing in a cached neighbor list, so invalidation never needs to scan
// the whole cache (spec §4.8).
type TraversalCache struct {
	lru          *lru[travKey, travEntry]
	maxNeighbors int

	mu       sync.Mutex
	bySource map[model.NodeID]map[travKey]struct{}
	byDest   map[model.NodeID]map[travKey]struct{}
}

// NewTraversalCache returns a TraversalCache with the given entry capacity
// and per-entry neighbor cap (entries longer than maxNeighbors are marked
// truncated rather than grown unbounded).
func NewTraversalCache(capacity, maxNeighbors int) *TraversalCache {
	if maxNeighbors <= 0 {
		maxNeighbors = 256
	}
	return &TraversalCache{
		lru:          newLRU[travKey, travEntry](capacity),
		maxNeighbors: maxNeighbors,
		bySource:     make(map[model.NodeID]map[travKey]struct{}),
		byDest:       make(map[model.NodeID]map[travKey]struct{}),
	}
}

func travKeyFor(node model.NodeID, etype model.ETypeID, all bool, dir model.Direction) travKey {
	if all {
		etype = allEtypes
	}
	return travKey{Node: node, Etype: etype, Dir: dir}
}

// Get returns the cached neighbor list for {node, etype, dir}. all selects
// the "any etype" cache slot regardless of etype's value. truncated callers
// must fall back to full enumeration rather than trust the partial list.
func (c *TraversalCache) Get(node model.NodeID, etype model.ETypeID, all bool, dir model.Direction) (neighbors []model.Neighbor, truncated bool, found bool) {
	e, ok := c.lru.get(travKeyFor(node, etype, all, dir))
	if !ok {
		return nil, false, false
	}
	return e.neighbors, e.truncated, true
}

// Put caches neighbors for {node, etype, dir}. If len(neighbors) exceeds the
// configured per-entry cap, only the first maxNeighbors are retained and the
// entry is marked truncated.
func (c *TraversalCache) Put(node model.NodeID, etype model.ETypeID, all bool, dir model.Direction, neighbors []model.Neighbor) {
	key := travKeyFor(node, etype, all, dir)
	truncated := false
	stored := neighbors
	if len(stored) > c.maxNeighbors {
		stored = append([]model.Neighbor(nil), stored[:c.maxNeighbors]...)
		truncated = true
	} else {
		stored = append([]model.Neighbor(nil), stored...)
	}

	evicted := c.lru.put(key, travEntry{neighbors: stored, truncated: truncated})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bySource[node] == nil {
		c.bySource[node] = make(map[travKey]struct{})
	}
	c.bySource[node][key] = struct{}{}
	for _, n := range stored {
		if c.byDest[n.Other] == nil {
			c.byDest[n.Other] = make(map[travKey]struct{})
		}
		c.byDest[n.Other][key] = struct{}{}
	}
	for _, k := range evicted {
		c.dropIndexLocked(k)
	}
}

func (c *TraversalCache) dropIndexLocked(key travKey) {
	if set := c.bySource[key.Node]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(c.bySource, key.Node)
		}
	}
	for node, set := range c.byDest {
		if _, ok := set[key]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.byDest, node)
			}
		}
	}
}

// InvalidateNode evicts every traversal entry that references node, whether
// as the query's source or as a neighbor appearing in a cached result.
func (c *TraversalCache) InvalidateNode(node model.NodeID) {
	c.mu.Lock()
	keys := make(map[travKey]struct{})
	for k := range c.bySource[node] {
		keys[k] = struct{}{}
	}
	for k := range c.byDest[node] {
		keys[k] = struct{}{}
	}
	c.mu.Unlock()
	for k := range keys {
		c.lru.remove(k)
		c.mu.Lock()
		c.dropIndexLocked(k)
		c.mu.Unlock()
	}
}

// InvalidateEdge evicts the outgoing-from-src and incoming-to-dst entries
// for etype, and their "all etypes" counterparts, following an (src, etype,
// dst) mutation.
func (c *TraversalCache) InvalidateEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID) {
	keys := []travKey{
		{Node: src, Etype: etype, Dir: model.Out},
		{Node: src, Etype: allEtypes, Dir: model.Out},
		{Node: dst, Etype: etype, Dir: model.In},
		{Node: dst, Etype: allEtypes, Dir: model.In},
	}
	for _, k := range keys {
		c.lru.remove(k)
		c.mu.Lock()
		c.dropIndexLocked(k)
		c.mu.Unlock()
	}
}

// Clear empties the cache and its reverse indices.
func (c *TraversalCache) Clear() {
	c.lru.clear()
	c.mu.Lock()
	c.bySource = make(map[model.NodeID]map[travKey]struct{})
	c.byDest = make(map[model.NodeID]map[travKey]struct{})
	c.mu.Unlock()
}

// Stats returns cache statistics.
func (c *TraversalCache) Stats() Stats { return c.lru.stats() }
