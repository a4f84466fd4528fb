package snapshot

import (
	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/strtab"
)

// strRef resolves a Go string to its final StringID in the snapshot's
// string table. The writer supplies one backed by a completed strtab.Builder
// (so every string has already been interned and given a final offset); the
// reader supplies one backed by a strtab.Table.
type strRef interface {
	id(s string) strtab.StringID
	get(id strtab.StringID) string
}

// encodeNodeBlock serializes one node's labels followed by its properties:
//
//	[labelCount u16] [labelId u32]*labelCount
//	[propCount u16]  ([propKeyId u32] [tagged PropValue, strings as StringID])*propCount
//
// spec.md reserves no separate CSR section for labels, so they travel in the
// per-entity property block alongside properties (documented as an
// implementation decision in DESIGN.md).
func encodeNodeBlock(b *codec.Builder, labels []model.LabelID, props map[model.PropKeyID]model.PropValue, sr strRef) {
	b.PutU16(uint16(len(labels)))
	for _, l := range labels {
		b.PutU32(uint32(l))
	}
	b.PutU16(uint16(len(props)))
	for k, v := range props {
		b.PutU32(uint32(k))
		encodePropValue(b, v, sr)
	}
}

func decodeNodeBlock(c *codec.Cursor, sr strRef) (labels []model.LabelID, props map[model.PropKeyID]model.PropValue, ok bool) {
	nLabels := int(c.U16())
	labels = make([]model.LabelID, nLabels)
	for i := range labels {
		labels[i] = model.LabelID(c.U32())
	}
	nProps := int(c.U16())
	props = make(map[model.PropKeyID]model.PropValue, nProps)
	for i := 0; i < nProps; i++ {
		key := model.PropKeyID(c.U32())
		v, valid := decodePropValue(c, sr)
		if !valid {
			return nil, nil, false
		}
		props[key] = v
	}
	return labels, props, true
}

// encodeEdgeBlock serializes one edge's properties:
//
//	[propCount u16] ([propKeyId u32] [tagged PropValue, strings as StringID])*propCount
func encodeEdgeBlock(b *codec.Builder, props map[model.PropKeyID]model.PropValue, sr strRef) {
	b.PutU16(uint16(len(props)))
	for k, v := range props {
		b.PutU32(uint32(k))
		encodePropValue(b, v, sr)
	}
}

func decodeEdgeBlock(c *codec.Cursor, sr strRef) (props map[model.PropKeyID]model.PropValue, ok bool) {
	nProps := int(c.U16())
	props = make(map[model.PropKeyID]model.PropValue, nProps)
	for i := 0; i < nProps; i++ {
		key := model.PropKeyID(c.U32())
		v, valid := decodePropValue(c, sr)
		if !valid {
			return nil, false
		}
		props[key] = v
	}
	return props, true
}

// encodePropValue mirrors model.PropValue.EncodeInto except KindString,
// which is stored as a StringID reference into the snapshot's deduplicated
// string table instead of inline bytes (spec §4.2).
func encodePropValue(b *codec.Builder, v model.PropValue, sr strRef) {
	if v.Kind != model.KindString {
		v.EncodeInto(b)
		return
	}
	b.PutU8(uint8(model.KindString))
	id := sr.id(v.S)
	b.PutU32(id.Offset)
	b.PutU32(id.Length)
}

func decodePropValue(c *codec.Cursor, sr strRef) (model.PropValue, bool) {
	kind := model.PropKind(c.U8())
	if kind != model.KindString {
		c.Seek(c.Pos() - 1)
		return model.DecodePropValue(c)
	}
	id := strtab.StringID{Offset: c.U32(), Length: c.U32()}
	return model.String(sr.get(id)), true
}
