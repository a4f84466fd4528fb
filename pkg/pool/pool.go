// Package pool provides object pooling for the engine's hottest per-call
// allocations, to reduce allocations and GC pressure on the commit and
// checkpoint paths.
//
// Pooled objects:
//   - WAL per-transaction frame buffers (pkg/wal allocates one per Begin)
//   - NodeID scratch slices (built and discarded during a checkpoint's live
//     node/edge scan)
//
// Usage:
//
//	buf := pool.GetByteBuffer()
//	defer pool.PutByteBuffer(buf)
package pool

import (
	"sync"

	"github.com/nodalgraph/nodal/pkg/model"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize is the largest capacity of a NodeID slice PutNodeIDSlice will
	// pool; byte buffers use a fixed 1 MiB capacity cap instead
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 1000,
}

// Configure sets global pool configuration. Should be called early during
// initialization, before any Get call.
func Configure(config PoolConfig) {
	globalConfig = config
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// Byte Buffer Pool — backs pkg/wal's per-transaction frame builder
// =============================================================================

var byteBufferPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

// GetByteBuffer returns a zero-length byte buffer from the pool. The caller
// owns it exclusively until it calls PutByteBuffer; nothing else may retain
// a reference to the buffer once it is returned.
func GetByteBuffer() []byte {
	if !globalConfig.Enabled {
		return make([]byte, 0, 1024)
	}
	return byteBufferPool.Get().([]byte)[:0]
}

// PutByteBuffer returns a byte buffer to the pool. Don't call this until
// every byte of buf has already been copied out to its durable destination —
// the backing array will be handed to an unrelated caller afterward.
func PutByteBuffer(buf []byte) {
	if !globalConfig.Enabled {
		return
	}
	if cap(buf) > 1024*1024 { // don't pool huge buffers (>1MB)
		return
	}
	byteBufferPool.Put(buf[:0])
}

// =============================================================================
// NodeID Slice Pool — scratch space for live-node scans (checkpoint, list)
// =============================================================================

var nodeIDSlicePool = sync.Pool{
	New: func() any {
		return make([]model.NodeID, 0, 256)
	},
}

// GetNodeIDSlice returns a zero-length model.NodeID slice from the pool.
// Only pool a slice whose contents are fully copied into their final
// destination before the caller returns it — never one handed back to an
// external caller.
func GetNodeIDSlice() []model.NodeID {
	if !globalConfig.Enabled {
		return make([]model.NodeID, 0, 256)
	}
	return nodeIDSlicePool.Get().([]model.NodeID)[:0]
}

// PutNodeIDSlice returns a model.NodeID slice to the pool.
func PutNodeIDSlice(ids []model.NodeID) {
	if !globalConfig.Enabled {
		return
	}
	if cap(ids) > globalConfig.MaxSize {
		return
	}
	nodeIDSlicePool.Put(ids[:0])
}
