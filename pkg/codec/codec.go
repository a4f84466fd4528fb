// Package codec provides the fixed-width little-endian binary primitives
// shared by the container header, the snapshot writer/reader, and the WAL:
// u16/u32/u64/f32 read/write, CRC32C over byte ranges, xxHash64 of byte
// ranges, and length-prefixed string/byte framing.
//
// Every multi-byte field in the on-disk format is little-endian. Nothing in
// this package allocates beyond what the caller's buffer already holds,
// except the u32-length-prefixed string reader (Cursor.String), which must
// copy to produce a Go string.
package codec

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/cespare/xxhash/v2"
)

// castagnoli is the CRC32C polynomial table. All checksums in the container
// format use Castagnoli, not IEEE, for its better error-detection at small
// sizes and hardware-accelerated support on amd64/arm64.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the Castagnoli CRC32 of b.
func CRC32C(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

// XXHash64 returns the xxHash64 of b, used for key-index bucket assignment.
// Non-cryptographic by design: the key index only needs a well-distributed
// hash over short strings, and xxHash64 is an order of magnitude faster
// than any cryptographic alternative at those sizes.
func XXHash64(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// PutU16 writes v as little-endian into b[0:2].
func PutU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// U16 reads a little-endian uint16 from b[0:2].
func U16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// PutU32 writes v as little-endian into b[0:4].
func PutU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// U32 reads a little-endian uint32 from b[0:4].
func U32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// PutU64 writes v as little-endian into b[0:8].
func PutU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// U64 reads a little-endian uint64 from b[0:8].
func U64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// PutF32 writes v's IEEE-754 bit pattern as little-endian into b[0:4].
func PutF32(b []byte, v float32) { PutU32(b, math.Float32bits(v)) }

// F32 reads a little-endian float32 from b[0:4].
func F32(b []byte) float32 { return math.Float32frombits(U32(b)) }

// PutF64 writes v's IEEE-754 bit pattern as little-endian into b[0:8].
func PutF64(b []byte, v float64) { PutU64(b, math.Float64bits(v)) }

// F64 reads a little-endian float64 from b[0:8].
func F64(b []byte) float64 { return math.Float64frombits(U64(b)) }

// AlignUp8 rounds n up to the next multiple of 8, matching the snapshot
// writer's 8-byte section alignment.
func AlignUp8(n int) int {
	return (n + 7) &^ 7
}

// Builder accumulates little-endian fields into a growable byte buffer. It is
// the write-side counterpart of Cursor.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder with capacity pre-reserved.
func NewBuilder(capacityHint int) *Builder {
	return &Builder{buf: make([]byte, 0, capacityHint)}
}

// NewBuilderFromBuf returns a Builder that appends into buf's existing
// backing array, reusing it instead of allocating. buf's length is reset to
// zero; its capacity is preserved.
func NewBuilderFromBuf(buf []byte) *Builder {
	return &Builder{buf: buf[:0]}
}

func (b *Builder) Bytes() []byte { return b.buf }
func (b *Builder) Len() int      { return len(b.buf) }

func (b *Builder) PutU8(v uint8)    { b.buf = append(b.buf, v) }
func (b *Builder) PutU16(v uint16)  { var t [2]byte; PutU16(t[:], v); b.buf = append(b.buf, t[:]...) }
func (b *Builder) PutU32(v uint32)  { var t [4]byte; PutU32(t[:], v); b.buf = append(b.buf, t[:]...) }
func (b *Builder) PutU64(v uint64)  { var t [8]byte; PutU64(t[:], v); b.buf = append(b.buf, t[:]...) }
func (b *Builder) PutF32(v float32) { b.PutU32(math.Float32bits(v)) }
func (b *Builder) PutF64(v float64) { b.PutU64(math.Float64bits(v)) }
func (b *Builder) PutRaw(p []byte)  { b.buf = append(b.buf, p...) }

// PutString writes a u32 byte-length prefix followed by the raw UTF-8 bytes.
func (b *Builder) PutString(s string) {
	b.PutU32(uint32(len(s)))
	b.buf = append(b.buf, s...)
}

// PutSection appends a u32 length prefix, the payload, and a trailing
// CRC32C over the payload, matching the snapshot section framing in spec §4.2.
func (b *Builder) PutSection(payload []byte) {
	b.PutU32(uint32(len(payload)))
	b.buf = append(b.buf, payload...)
	b.PutU32(CRC32C(payload))
}

// Pad8 appends zero bytes until Len() is a multiple of 8.
func (b *Builder) Pad8() {
	for len(b.buf)%8 != 0 {
		b.buf = append(b.buf, 0)
	}
}

// Cursor reads little-endian fields sequentially out of a fixed byte slice.
// All methods panic on out-of-bounds reads via the slice's own bounds
// check; callers that parse untrusted input should recover and surface
// nerr.ErrCorruption (see pkg/snapshot and pkg/wal).
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential reads starting at offset 0.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

func (c *Cursor) Pos() int       { return c.pos }
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }
func (c *Cursor) Seek(pos int)   { c.pos = pos }

func (c *Cursor) U8() uint8 {
	v := c.buf[c.pos]
	c.pos++
	return v
}

func (c *Cursor) U16() uint16 {
	v := U16(c.buf[c.pos:])
	c.pos += 2
	return v
}

func (c *Cursor) U32() uint32 {
	v := U32(c.buf[c.pos:])
	c.pos += 4
	return v
}

func (c *Cursor) U64() uint64 {
	v := U64(c.buf[c.pos:])
	c.pos += 8
	return v
}

func (c *Cursor) F32() float32 {
	v := F32(c.buf[c.pos:])
	c.pos += 4
	return v
}

func (c *Cursor) F64() float64 {
	v := F64(c.buf[c.pos:])
	c.pos += 8
	return v
}

// Raw returns the next n bytes without copying and advances the cursor.
func (c *Cursor) Raw(n int) []byte {
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v
}

// String reads a u32 length prefix followed by that many UTF-8 bytes and
// copies them into a new Go string.
func (c *Cursor) String() string {
	n := int(c.U32())
	s := string(c.buf[c.pos : c.pos+n])
	c.pos += n
	return s
}

// Section reads a u32 length prefix, the payload, and a trailing CRC32C,
// validating the checksum. ok is false when the trailing CRC does not match
// the payload, signalling corruption to the caller.
func (c *Cursor) Section() (payload []byte, ok bool) {
	n := int(c.U32())
	payload = c.Raw(n)
	want := c.U32()
	return payload, CRC32C(payload) == want
}
