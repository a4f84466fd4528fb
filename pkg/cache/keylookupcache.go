package cache

// keyLookupEntry distinguishes a cached NodeID from a verified-absent key,
// mirroring PropCache's absent/found contract.
type keyLookupEntry struct {
	node   uint64
	absent bool
}

// KeyLookupCache caches string-key -> NodeID|absent lookups (spec §4.8).
// Keyed directly by the string so it shares the generic lru base; callers
// pass model.NodeID as uint64 to avoid importing model into this small file.
type KeyLookupCache struct {
	lru *lru[string, keyLookupEntry]
}

// NewKeyLookupCache returns a KeyLookupCache with the given capacity.
func NewKeyLookupCache(capacity int) *KeyLookupCache {
	return &KeyLookupCache{lru: newLRU[string, keyLookupEntry](capacity)}
}

// Get returns the cached NodeID for key. found is false if nothing is
// cached; when found is true, absent distinguishes a verified-missing key
// from an existing NodeID.
func (c *KeyLookupCache) Get(key string) (node uint64, absent bool, found bool) {
	e, ok := c.lru.get(key)
	if !ok {
		return 0, false, false
	}
	return e.node, e.absent, true
}

// Put caches that key maps to node.
func (c *KeyLookupCache) Put(key string, node uint64) {
	c.lru.put(key, keyLookupEntry{node: node})
}

// PutAbsent caches that key is verified not to exist.
func (c *KeyLookupCache) PutAbsent(key string) {
	c.lru.put(key, keyLookupEntry{absent: true})
}

// Invalidate evicts key.
func (c *KeyLookupCache) Invalidate(key string) { c.lru.remove(key) }

// Clear empties the cache.
func (c *KeyLookupCache) Clear() { c.lru.clear() }

// Stats returns cache statistics.
func (c *KeyLookupCache) Stats() Stats { return c.lru.stats() }
