package pool

import (
	"sync"
	"testing"

	"github.com/nodalgraph/nodal/pkg/model"
)

// =============================================================================
// Configuration Tests
// =============================================================================

func TestConfigure(t *testing.T) {
	origConfig := globalConfig
	defer func() {
		Configure(origConfig)
	}()

	t.Run("enable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true, MaxSize: 500})

		if !IsEnabled() {
			t.Error("IsEnabled() = false, want true")
		}
		if globalConfig.MaxSize != 500 {
			t.Errorf("MaxSize = %d, want 500", globalConfig.MaxSize)
		}
	})

	t.Run("disable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false, MaxSize: 1000})

		if IsEnabled() {
			t.Error("IsEnabled() = true, want false")
		}
	})
}

// =============================================================================
// Byte Buffer Pool Tests
// =============================================================================

func TestByteBufferPool(t *testing.T) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	t.Run("get returns empty buffer", func(t *testing.T) {
		buf := GetByteBuffer()
		if len(buf) != 0 {
			t.Errorf("len = %d, want 0", len(buf))
		}
		if cap(buf) == 0 {
			t.Error("cap should be > 0 (pre-allocated)")
		}
		PutByteBuffer(buf)
	})

	t.Run("put and reuse", func(t *testing.T) {
		buf := GetByteBuffer()
		buf = append(buf, []byte("frame bytes")...)
		PutByteBuffer(buf)

		buf2 := GetByteBuffer()
		if len(buf2) != 0 {
			t.Errorf("reused buffer len = %d, want 0", len(buf2))
		}
		PutByteBuffer(buf2)
	})

	t.Run("oversized buffer not pooled", func(t *testing.T) {
		buf := make([]byte, 0, 2*1024*1024)
		PutByteBuffer(buf) // should not panic, just not pool it
	})

	t.Run("disabled pooling still returns a usable buffer", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false, MaxSize: 1000})
		defer Configure(PoolConfig{Enabled: true, MaxSize: 1000})

		buf := GetByteBuffer()
		if buf == nil {
			t.Error("GetByteBuffer returned nil when pooling disabled")
		}
		PutByteBuffer(buf) // should not panic
	})
}

// =============================================================================
// NodeID Slice Pool Tests
// =============================================================================

func TestNodeIDSlicePool(t *testing.T) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	t.Run("get returns empty slice", func(t *testing.T) {
		ids := GetNodeIDSlice()
		if len(ids) != 0 {
			t.Errorf("len = %d, want 0", len(ids))
		}
		PutNodeIDSlice(ids)
	})

	t.Run("put and reuse", func(t *testing.T) {
		ids := GetNodeIDSlice()
		ids = append(ids, model.NodeID(1), model.NodeID(2), model.NodeID(3))
		PutNodeIDSlice(ids)

		ids2 := GetNodeIDSlice()
		if len(ids2) != 0 {
			t.Errorf("reused slice len = %d, want 0", len(ids2))
		}
		PutNodeIDSlice(ids2)
	})

	t.Run("oversized slice not pooled", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true, MaxSize: 10})
		defer Configure(PoolConfig{Enabled: true, MaxSize: 1000})

		ids := make([]model.NodeID, 0, 100)
		PutNodeIDSlice(ids) // should not panic, just not pool it
	})

	t.Run("disabled pooling creates new slices", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false, MaxSize: 1000})
		defer Configure(PoolConfig{Enabled: true, MaxSize: 1000})

		ids := GetNodeIDSlice()
		if ids == nil {
			t.Error("GetNodeIDSlice returned nil when pooling disabled")
		}
		PutNodeIDSlice(ids)
	})
}

// =============================================================================
// Concurrent Access Tests
// =============================================================================

func TestConcurrentPoolAccess(t *testing.T) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	const goroutines = 100
	const iterations = 100

	t.Run("byte buffer pool concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(goroutines)

		for i := 0; i < goroutines; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					buf := GetByteBuffer()
					buf = append(buf, byte(j))
					PutByteBuffer(buf)
				}
			}()
		}

		wg.Wait()
	})

	t.Run("node id slice pool concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(goroutines)

		for i := 0; i < goroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					ids := GetNodeIDSlice()
					ids = append(ids, model.NodeID(id), model.NodeID(j))
					PutNodeIDSlice(ids)
				}
			}(i)
		}

		wg.Wait()
	})
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkByteBufferPool(b *testing.B) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	b.Run("pooled", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := GetByteBuffer()
			buf = append(buf, []byte("frame bytes")...)
			PutByteBuffer(buf)
		}
	})

	b.Run("unpooled", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := make([]byte, 0, 1024)
			buf = append(buf, []byte("frame bytes")...)
			_ = buf
		}
	})
}

func BenchmarkNodeIDSlicePool(b *testing.B) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	b.Run("pooled", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ids := GetNodeIDSlice()
			ids = append(ids, model.NodeID(i))
			PutNodeIDSlice(ids)
		}
	})

	b.Run("unpooled", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ids := make([]model.NodeID, 0, 256)
			ids = append(ids, model.NodeID(i))
			_ = ids
		}
	})
}
