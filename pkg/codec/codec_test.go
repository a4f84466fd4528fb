package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	b := NewBuilder(64)
	b.PutU8(7)
	b.PutU16(1234)
	b.PutU32(123456789)
	b.PutU64(1234567890123)
	b.PutF32(3.14)
	b.PutF64(2.71828)

	c := NewCursor(b.Bytes())
	assert.Equal(t, uint8(7), c.U8())
	assert.Equal(t, uint16(1234), c.U16())
	assert.Equal(t, uint32(123456789), c.U32())
	assert.Equal(t, uint64(1234567890123), c.U64())
	assert.InDelta(t, float32(3.14), c.F32(), 0.0001)
	assert.InDelta(t, 2.71828, c.F64(), 0.00001)
}

func TestStringFraming(t *testing.T) {
	b := NewBuilder(16)
	b.PutString("hello, nodal")
	c := NewCursor(b.Bytes())
	assert.Equal(t, "hello, nodal", c.String())
}

func TestSectionCRCDetectsCorruption(t *testing.T) {
	b := NewBuilder(16)
	b.PutSection([]byte("payload"))
	buf := b.Bytes()

	c := NewCursor(buf)
	payload, ok := c.Section()
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), payload)

	buf[6] ^= 0xFF // corrupt a payload byte in place
	c2 := NewCursor(buf)
	_, ok = c2.Section()
	assert.False(t, ok)
}

func TestCRC32CKnownValue(t *testing.T) {
	// "123456789" has a well-known CRC32C (Castagnoli) checksum.
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))
}

func TestXXHash64Deterministic(t *testing.T) {
	a := XXHash64([]byte("alice"))
	b := XXHash64([]byte("alice"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, XXHash64([]byte("bob")))
}

func TestAlignUp8(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16}
	for in, want := range cases {
		assert.Equal(t, want, AlignUp8(in))
	}
}
