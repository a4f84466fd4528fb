package snapshot

import (
	"sort"

	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/strtab"
)

// buildSchemaBlock serializes the three append-only ID->name tables (spec
// invariant 6: dense from 1, 0 reserved) as three length-prefixed sections of
// [id u32][stringId offset u32][stringId length u32] triples, sorted by id so
// the reader can binary-search or simply index by position.
func buildSchemaBlock(s SchemaNames, sr *writerStrRef) []byte {
	b := codec.NewBuilder(0)
	putNameTable(b, s.Labels, sr)
	putNameTable(b, s.Etypes, sr)
	putNameTable(b, s.PropKeys, sr)
	return b.Bytes()
}

func putNameTable[K ~uint32](b *codec.Builder, names map[K]string, sr *writerStrRef) {
	ids := make([]K, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	b.PutU32(uint32(len(ids)))
	for _, id := range ids {
		b.PutU32(uint32(id))
		sid := sr.id(names[id])
		b.PutU32(sid.Offset)
		b.PutU32(sid.Length)
	}
}

// decodeSchemaBlock parses the section produced by buildSchemaBlock, resolving
// every StringID against strings.
func decodeSchemaBlock(data []byte, strings *strtab.Table) (out SchemaNames, ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	c := codec.NewCursor(data)
	out.Labels = getNameTable[model.LabelID](c, strings)
	out.Etypes = getNameTable[model.ETypeID](c, strings)
	out.PropKeys = getNameTable[model.PropKeyID](c, strings)
	if c.Remaining() != 0 {
		return out, false
	}
	return out, ok
}

func getNameTable[K ~uint32](c *codec.Cursor, strings *strtab.Table) map[K]string {
	n := int(c.U32())
	m := make(map[K]string, n)
	for i := 0; i < n; i++ {
		id := K(c.U32())
		off, length := c.U32(), c.U32()
		m[id] = strings.Get(strtab.StringID{Offset: off, Length: length})
	}
	return m
}
