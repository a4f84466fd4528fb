// Package strtab implements the deduplicated interned string table used by
// the snapshot writer for node keys, label/edge-type/prop-key names, and
// string property values (spec §4.2).
//
// Strings are deduplicated by content during snapshot build: each distinct
// string is assigned a stringId (its byte offset into the serialized table)
// once, and every reference to that string elsewhere in the snapshot stores
// the stringId rather than a copy of the bytes.
package strtab

import "github.com/nodalgraph/nodal/pkg/codec"

// StringID is the (offset, length) pair referencing an entry in a serialized
// string table. Offset is relative to the start of the table's payload.
type StringID struct {
	Offset uint32
	Length uint32
}

// Builder deduplicates strings by content and produces the serialized
// string-table section: a concatenation of length-prefixed UTF-8 blobs.
type Builder struct {
	offsets map[string]StringID
	order   []string
}

// NewBuilder returns an empty string-table builder.
func NewBuilder() *Builder {
	return &Builder{offsets: make(map[string]StringID)}
}

// Intern returns the StringID for s, assigning a new one on first sight and
// reusing the existing one for repeats.
func (b *Builder) Intern(s string) StringID {
	if id, ok := b.offsets[s]; ok {
		return id
	}
	// Offset is computed lazily in Build once final ordering is fixed, so
	// record a placeholder keyed by insertion order for now.
	id := StringID{Offset: uint32(len(b.order)), Length: uint32(len(s))}
	b.offsets[s] = id
	b.order = append(b.order, s)
	return id
}

// Build serializes the interned strings as a sequence of u32-length-prefixed
// UTF-8 blobs and returns the bytes plus a mapping from the placeholder IDs
// handed out by Intern to their final byte-offset StringIDs.
func (b *Builder) Build() (data []byte, remap map[StringID]StringID) {
	bld := codec.NewBuilder(0)
	remap = make(map[StringID]StringID, len(b.order))
	for i, s := range b.order {
		placeholder := StringID{Offset: uint32(i), Length: uint32(len(s))}
		final := StringID{Offset: uint32(bld.Len()), Length: uint32(len(s))}
		remap[placeholder] = final
		bld.PutString(s)
	}
	return bld.Bytes(), remap
}

// Table is the read-side view over a serialized string-table section: a
// flat byte slice addressed by (offset, length) pairs. Offsets point at the
// 4-byte length prefix, matching codec.Cursor.String's framing.
type Table struct {
	data []byte
}

// NewTable wraps the raw bytes of a string-table section for lookups.
func NewTable(data []byte) *Table {
	return &Table{data: data}
}

// Get returns the string referenced by id. It panics if id.Offset is out of
// bounds; callers parsing untrusted snapshots should bounds-check offsets
// against len(data) first (spec invariant 7) and surface nerr.ErrCorruption.
func (t *Table) Get(id StringID) string {
	c := codec.NewCursor(t.data)
	c.Seek(int(id.Offset))
	return c.String()
}

// InBounds reports whether id refers to a valid entry inside the table, so a
// caller can check an offset before handing it to Get. The snapshot reader
// does not call it.
func (t *Table) InBounds(id StringID) bool {
	if int(id.Offset)+4 > len(t.data) {
		return false
	}
	n := int(codec.U32(t.data[id.Offset:]))
	return int(id.Offset)+4+n <= len(t.data)
}
