// Package model defines the identifier types and the tagged property-value
// variant shared by every layer of the storage engine: snapshot, delta, WAL,
// MVCC, cache, and graph algorithms all read and write these same types
// (spec §3 Data Model).
package model

import "github.com/nodalgraph/nodal/pkg/codec"

// NodeID is an unsigned node identifier, allocated monotonically and never
// reused. Usable range is <= 2^53 so it round-trips through float64 hosts
// without precision loss, per spec §3.
type NodeID uint64

// LabelID, ETypeID, and PropKeyID are small dense integer identifiers, one
// namespace each, allocated from 1 (0 is the reserved "none" sentinel).
type (
	LabelID   uint32
	ETypeID   uint32
	PropKeyID uint32
)

// NoneID is the reserved sentinel value shared by all three schema ID
// namespaces (spec invariant 6).
const NoneID = 0

// Direction selects which adjacency a traversal reads.
type Direction uint8

const (
	Out Direction = iota
	In
	Both
)

// PropKind discriminates the tagged PropValue variant.
type PropKind uint8

const (
	KindNull PropKind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindVector
)

// PropValue is the tagged variant over {Null, Bool, Int64, Float64, String,
// Vector(dim x f32)} that every node/edge property and WAL payload carries
// (spec §3).
type PropValue struct {
	Kind PropKind
	B    bool
	I    int64
	F    float64
	S    string
	V    []float32
}

func Null() PropValue                 { return PropValue{Kind: KindNull} }
func Bool(b bool) PropValue           { return PropValue{Kind: KindBool, B: b} }
func Int64(i int64) PropValue         { return PropValue{Kind: KindInt64, I: i} }
func Float64(f float64) PropValue     { return PropValue{Kind: KindFloat64, F: f} }
func String(s string) PropValue       { return PropValue{Kind: KindString, S: s} }
func Vector(v []float32) PropValue    { return PropValue{Kind: KindVector, V: v} }
func (p PropValue) IsNull() bool      { return p.Kind == KindNull }

// AsFloat64 coerces numeric kinds to float64 for Dijkstra edge weights
// (spec §4.9): Int64/Float64 coerce; everything else (including Null, a
// missing property) reports ok=false so the caller falls back to weight 1.
func (p PropValue) AsFloat64() (v float64, ok bool) {
	switch p.Kind {
	case KindInt64:
		return float64(p.I), true
	case KindFloat64:
		return p.F, true
	default:
		return 0, false
	}
}

// Equal reports whether two PropValues are the same tagged value.
func (p PropValue) Equal(o PropValue) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case KindNull:
		return true
	case KindBool:
		return p.B == o.B
	case KindInt64:
		return p.I == o.I
	case KindFloat64:
		return p.F == o.F
	case KindString:
		return p.S == o.S
	case KindVector:
		if len(p.V) != len(o.V) {
			return false
		}
		for i := range p.V {
			if p.V[i] != o.V[i] {
				return false
			}
		}
		return true
	}
	return false
}

// EncodeInto appends the tagged encoding of p to b's builder: a
// one-byte discriminator followed by the per-arm payload. Decoders are
// total functions (DecodePropValue) that return an error on an unknown tag,
// never a panic, per spec §9.
func (p PropValue) EncodeInto(b *codec.Builder) {
	b.PutU8(uint8(p.Kind))
	switch p.Kind {
	case KindNull:
	case KindBool:
		if p.B {
			b.PutU8(1)
		} else {
			b.PutU8(0)
		}
	case KindInt64:
		b.PutU64(uint64(p.I))
	case KindFloat64:
		b.PutF64(p.F)
	case KindString:
		b.PutString(p.S)
	case KindVector:
		b.PutU32(uint32(len(p.V)))
		for _, f := range p.V {
			b.PutF32(f)
		}
	}
}

// DecodePropValue reads a tagged PropValue from c. ok is false for an
// unrecognized discriminator byte, which callers surface as
// nerr.ErrCorruption.
func DecodePropValue(c *codec.Cursor) (PropValue, bool) {
	kind := PropKind(c.U8())
	switch kind {
	case KindNull:
		return Null(), true
	case KindBool:
		return Bool(c.U8() != 0), true
	case KindInt64:
		return Int64(int64(c.U64())), true
	case KindFloat64:
		return Float64(c.F64()), true
	case KindString:
		return String(c.String()), true
	case KindVector:
		n := int(c.U32())
		v := make([]float32, n)
		for i := range v {
			v[i] = c.F32()
		}
		return Vector(v), true
	default:
		return PropValue{}, false
	}
}

// Edge is a directed (src, etype, dst) triple with no explicit ID; at most
// one edge exists per (src, etype, dst) triple (spec §3).
type Edge struct {
	Src   NodeID
	Etype ETypeID
	Dst   NodeID
}

// Neighbor is one entry in a node's adjacency list: the edge type and the
// node on the other end.
type Neighbor struct {
	Etype ETypeID
	Other NodeID
}

// Less orders neighbors by (etype, other), the sort order spec invariant 2
// requires within an adjacency slice.
func (n Neighbor) Less(o Neighbor) bool {
	if n.Etype != o.Etype {
		return n.Etype < o.Etype
	}
	return n.Other < o.Other
}
