package vector

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// FragmentBlob is one fragment's encoded bytes, ready for the engine to
// write to the container file via AppendFree during a checkpoint. Sealed
// fragments are zstd-compressed before Data is filled in; open fragments
// stay raw since they are still being appended to and would just be
// recompressed on the next checkpoint anyway.
type FragmentBlob struct {
	Data       []byte
	Rows       uint32
	Sealed     bool
	Compressed bool
}

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return zstdEnc
}

func decoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil)
	})
	return zstdDec
}

// encodeFragment serializes f as [dim:u32][rows:u32][sealed:u8] followed by
// rows*(nodeId:u64, live:u8, dim*f32) records, in row order.
func encodeFragment(f *fragment) []byte {
	b := codec.NewBuilder(f.rows*(f.dim*4+9) + 16)
	b.PutU32(uint32(f.dim))
	b.PutU32(uint32(f.rows))
	if f.sealed {
		b.PutU8(1)
	} else {
		b.PutU8(0)
	}
	for row := 0; row < f.rows; row++ {
		b.PutU64(uint64(f.nodeOf[row]))
		if f.live[row] {
			b.PutU8(1)
		} else {
			b.PutU8(0)
		}
		for _, v := range f.vectorAt(row) {
			b.PutF32(v)
		}
	}
	return b.Bytes()
}

// decodeFragment parses bytes produced by encodeFragment back into a live
// fragment sized to capacity (the index's configured FragmentTargetSize).
// buf must already be decompressed by the caller when the source blob was
// marked Compressed.
func decodeFragment(buf []byte, capacity int) (*fragment, error) {
	c := codec.NewCursor(buf)
	dim := int(c.U32())
	rows := int(c.U32())
	sealed := c.U8() != 0
	if capacity < rows {
		capacity = rows
	}
	f := newFragment(dim, capacity)
	for i := 0; i < rows; i++ {
		node := model.NodeID(c.U64())
		live := c.U8() != 0
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = c.F32()
		}
		row := f.insert(node, vec)
		if !live {
			f.live[row] = false
			delete(f.rowOf, node)
			f.liveN--
		}
	}
	f.sealed = sealed
	return f, nil
}

// ExportFragments returns every fragment's encoded bytes in order, for the
// checkpointer to persist alongside the rest of a snapshot generation.
// Sealed fragments are zstd-compressed since they are cold and no longer
// appended to; the single open fragment, if any, stays raw.
func (ix *Index) ExportFragments() []FragmentBlob {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]FragmentBlob, len(ix.fragments))
	for i, f := range ix.fragments {
		raw := encodeFragment(f)
		blob := FragmentBlob{Rows: uint32(f.rows), Sealed: f.sealed}
		if f.sealed {
			blob.Data = encoder().EncodeAll(raw, nil)
			blob.Compressed = true
		} else {
			blob.Data = raw
		}
		out[i] = blob
	}
	return out
}

// LoadFragments replaces the index's fragment chain by decoding blobs
// produced by a prior ExportFragments, rebuilding the node->location map.
// Used when reopening a container whose active snapshot already has a
// vector manifest for this index. compressed[i] tells whether blobs[i] needs
// zstd decompression first, mirroring the FragmentRef.Sealed flags the
// checkpointer recorded in the snapshot's vector manifest.
func (ix *Index) LoadFragments(blobs [][]byte, compressed []bool) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	fragments := make([]*fragment, 0, len(blobs))
	byNode := make(map[model.NodeID]location)
	for i, buf := range blobs {
		raw := buf
		if i < len(compressed) && compressed[i] {
			decoded, err := decoder().DecodeAll(buf, nil)
			if err != nil {
				return nerr.Wrapf(nerr.ErrCorruption, "vector: fragment %d: zstd: %v", i, err)
			}
			raw = decoded
		}
		f, err := decodeFragment(raw, int(ix.cfg.FragmentTargetSize))
		if err != nil {
			return nerr.Wrapf(nerr.ErrCorruption, "vector: fragment %d: %v", i, err)
		}
		f.forEachLive(func(node model.NodeID, _ []float32) {
			byNode[node] = location{fragment: i, row: f.rowOf[node]}
		})
		fragments = append(fragments, f)
	}
	ix.fragments = fragments
	ix.byNode = byNode
	ix.sealedEvents = nil
	return nil
}
