package cache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nodalgraph/nodal/pkg/codec"
)

// QueryCache caches arbitrary query result payloads keyed by an opaque
// string fingerprint — a content hash of the query and its parameters, per
// spec §4.8 — with optional TTL expiration. It is never invalidated by
// entity identity, only by a full Clear, since its keys are content-addressed
// rather than entity-addressed.
//
// Grounded on the teacher's nornicdb/pkg/cache/query_cache.go LRU+TTL shape,
// generalized onto the shared lru[K,V] base and re-keyed from a uint64 FNV
// hash to the string fingerprint spec §4.8 calls for.
type QueryCache struct {
	lru *lru[string, queryEntry]
	ttl time.Duration

	mu      sync.RWMutex
	enabled bool
}

type queryEntry struct {
	value     any
	expiresAt time.Time
}

// NewQueryCache returns a QueryCache with the given capacity and TTL. A
// non-positive capacity defaults to 1000; ttl == 0 disables expiration.
func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &QueryCache{
		lru:     newLRU[string, queryEntry](capacity),
		ttl:     ttl,
		enabled: true,
	}
}

// Fingerprint computes the opaque cache key for a query and its parameter
// keys (not values, so differently-bound instances of the same parameterized
// query share a cache slot). Uses the same xxHash64 the key index already
// depends on, so no extra hash dependency is introduced.
func Fingerprint(query string, paramNames []string) string {
	h := codec.XXHash64([]byte(query))
	for _, name := range paramNames {
		h ^= codec.XXHash64([]byte(name))*0x9E3779B185EBCA87 + 0x9E3779B9
	}
	return strconv.FormatUint(h, 16)
}

// Get returns the cached value for key, or (nil, false) on miss or
// expiration. An expired entry is evicted on access.
func (c *QueryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	enabled := c.enabled
	c.mu.RUnlock()
	if !enabled {
		return nil, false
	}

	e, ok := c.lru.peek(key)
	if !ok {
		atomic.AddUint64(&c.lru.misses, 1)
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.lru.remove(key)
		atomic.AddUint64(&c.lru.misses, 1)
		return nil, false
	}
	v, ok := c.lru.get(key)
	if !ok {
		return nil, false
	}
	return v.value, true
}

// Put caches value under key, refreshing the TTL if the key already exists.
func (c *QueryCache) Put(key string, value any) {
	c.mu.RLock()
	enabled := c.enabled
	c.mu.RUnlock()
	if !enabled {
		return
	}
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	c.lru.put(key, queryEntry{value: value, expiresAt: expiresAt})
}

// Remove evicts key.
func (c *QueryCache) Remove(key string) { c.lru.remove(key) }

// Clear empties the cache, the only form of invalidation a content-addressed
// cache needs (spec §4.8).
func (c *QueryCache) Clear() { c.lru.clear() }

// Len returns the number of cached entries.
func (c *QueryCache) Len() int { return c.lru.len() }

// Stats returns cache statistics.
func (c *QueryCache) Stats() Stats { return c.lru.stats() }

// SetEnabled toggles the cache; disabling clears all entries.
func (c *QueryCache) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
	if !enabled {
		c.lru.clear()
	}
}
