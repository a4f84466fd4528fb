package snapshot

import (
	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/model"
)

// buildVectorManifests serializes the vector manifest table (spec §4.10):
//
//	[count u32]
//	( [propKeyId u32] [dim u32] [metric u8] [normalized u8]
//	  [rowGroupSize u32] [fragmentTargetSize u32]
//	  [fragmentCount u32] ( [offset u64] [length u64] [rows u32] [sealed u8] )*fragmentCount
//	)*count
func buildVectorManifests(vectors []VectorManifestRecord) []byte {
	b := codec.NewBuilder(0)
	b.PutU32(uint32(len(vectors)))
	for _, m := range vectors {
		b.PutU32(uint32(m.PropKey))
		b.PutU32(m.Dim)
		b.PutU8(m.Metric)
		if m.Normalized {
			b.PutU8(1)
		} else {
			b.PutU8(0)
		}
		b.PutU32(m.RowGroupSize)
		b.PutU32(m.FragmentTargetSize)
		b.PutU32(uint32(len(m.Fragments)))
		for _, f := range m.Fragments {
			b.PutU64(f.Offset)
			b.PutU64(f.Length)
			b.PutU32(f.Rows)
			if f.Sealed {
				b.PutU8(1)
			} else {
				b.PutU8(0)
			}
		}
	}
	return b.Bytes()
}

// decodeVectorManifests parses the section produced by buildVectorManifests.
// ok is false on any length/bounds inconsistency, surfaced by the caller as
// corruption.
func decodeVectorManifests(data []byte) (manifests []VectorManifestRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			manifests, ok = nil, false
		}
	}()
	c := codec.NewCursor(data)
	n := int(c.U32())
	out := make([]VectorManifestRecord, n)
	for i := 0; i < n; i++ {
		var m VectorManifestRecord
		m.PropKey = model.PropKeyID(c.U32())
		m.Dim = c.U32()
		m.Metric = c.U8()
		m.Normalized = c.U8() != 0
		m.RowGroupSize = c.U32()
		m.FragmentTargetSize = c.U32()
		nf := int(c.U32())
		m.Fragments = make([]FragmentRef, nf)
		for j := 0; j < nf; j++ {
			m.Fragments[j] = FragmentRef{
				Offset: c.U64(),
				Length: c.U64(),
				Rows:   c.U32(),
				Sealed: c.U8() != 0,
			}
		}
		out[i] = m
	}
	if c.Remaining() != 0 {
		return nil, false
	}
	return out, true
}
