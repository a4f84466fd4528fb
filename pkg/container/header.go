// Package container implements the single-file container format: the 4 KiB
// fixed header at offset 0 (spec §4.1, bit-exact layout in spec §6.1), and
// the atomic header-flip technique used for checkpoints and any other
// all-or-nothing state transition.
//
// Grounded on the fixed-size header struct and documented byte-offset table
// of other_examples/osakka-entitydb's binary-format.go, adapted from that
// format's 128-byte entity header to the 4 KiB single-snapshot-plus-dual-WAL
// layout spec.md requires.
package container

import (
	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// HeaderSize is the fixed size in bytes of the header block at offset 0.
const HeaderSize = 4096

// Magic identifies the container format. Stored as 8 raw bytes, not
// null-terminated.
var Magic = [8]byte{'N', 'O', 'D', 'A', 'L', 'D', 'B', '1'}

const (
	VersionMajor uint16 = 1
	VersionMinor uint16 = 0

	// DefaultPageSize is the default page granularity for region placement.
	DefaultPageSize uint32 = 4096
)

// Byte offsets within the 4 KiB header. headerCrc covers every byte before
// it; everything past nextPropkeyId up to the CRC is reserved padding,
// available for the free-space arena list (SPEC_FULL §5).
const (
	offMagic                = 0x000
	offVersionMajor          = 0x008
	offVersionMinor          = 0x00A
	offPageSize              = 0x00C
	offActiveSnapshotOffset  = 0x010
	offActiveSnapshotLength  = 0x018
	offActiveSnapshotGen     = 0x020
	offWal0Offset            = 0x028
	offWal0Length            = 0x030
	offWal0Head              = 0x038
	offWal0Tail              = 0x040
	offWal1Offset            = 0x048
	offWal1Length            = 0x050
	offWal1Head              = 0x058
	offWal1Tail              = 0x060
	offActiveWalRegion       = 0x068
	offNextNodeId            = 0x070
	offNextLabelId           = 0x078
	offNextEtypeId           = 0x07C
	offNextPropkeyId         = 0x080
	offFreeListCount         = 0x084 // u32: number of (offset,length) free-space entries that follow
	offFreeListStart         = 0x088 // free-space arena entries, 16 bytes each (u64 offset, u64 length)
	offHeaderCrc             = HeaderSize - 4
	maxFreeListEntries       = (offHeaderCrc - offFreeListStart) / 16
)

// FreeSpan is a reclaimable byte range left behind by a superseded snapshot
// generation (resolves spec §9 Open Question (a): best-fit arena).
type FreeSpan struct {
	Offset uint64
	Length uint64
}

// Header is the in-memory decoded form of the 4 KiB container header.
type Header struct {
	VersionMajor uint16
	VersionMinor uint16
	PageSize     uint32

	ActiveSnapshotOffset uint64
	ActiveSnapshotLength uint64
	ActiveSnapshotGen    uint64

	Wal0Offset uint64
	Wal0Length uint64
	Wal0Head   uint64
	Wal0Tail   uint64

	Wal1Offset uint64
	Wal1Length uint64
	Wal1Head   uint64
	Wal1Tail   uint64

	ActiveWalRegion uint8 // 0 or 1

	NextNodeID     uint64
	NextLabelID    uint32
	NextEtypeID    uint32
	NextPropkeyID  uint32

	FreeList []FreeSpan
}

// NewHeader returns a fresh header for a newly created container.
func NewHeader(pageSize uint32) *Header {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return &Header{
		VersionMajor:  VersionMajor,
		VersionMinor:  VersionMinor,
		PageSize:      pageSize,
		NextNodeID:    1,
		NextLabelID:   1,
		NextEtypeID:   1,
		NextPropkeyID: 1,
	}
}

// Encode serializes h into a HeaderSize-byte block, computing and appending
// the trailing CRC32C over every preceding byte.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[offMagic:], Magic[:])
	codec.PutU16(buf[offVersionMajor:], h.VersionMajor)
	codec.PutU16(buf[offVersionMinor:], h.VersionMinor)
	codec.PutU32(buf[offPageSize:], h.PageSize)
	codec.PutU64(buf[offActiveSnapshotOffset:], h.ActiveSnapshotOffset)
	codec.PutU64(buf[offActiveSnapshotLength:], h.ActiveSnapshotLength)
	codec.PutU64(buf[offActiveSnapshotGen:], h.ActiveSnapshotGen)
	codec.PutU64(buf[offWal0Offset:], h.Wal0Offset)
	codec.PutU64(buf[offWal0Length:], h.Wal0Length)
	codec.PutU64(buf[offWal0Head:], h.Wal0Head)
	codec.PutU64(buf[offWal0Tail:], h.Wal0Tail)
	codec.PutU64(buf[offWal1Offset:], h.Wal1Offset)
	codec.PutU64(buf[offWal1Length:], h.Wal1Length)
	codec.PutU64(buf[offWal1Head:], h.Wal1Head)
	codec.PutU64(buf[offWal1Tail:], h.Wal1Tail)
	buf[offActiveWalRegion] = h.ActiveWalRegion
	codec.PutU64(buf[offNextNodeId:], h.NextNodeID)
	codec.PutU32(buf[offNextLabelId:], h.NextLabelID)
	codec.PutU32(buf[offNextEtypeId:], h.NextEtypeID)
	codec.PutU32(buf[offNextPropkeyId:], h.NextPropkeyID)

	n := len(h.FreeList)
	if n > maxFreeListEntries {
		n = maxFreeListEntries
	}
	codec.PutU32(buf[offFreeListCount:], uint32(n))
	for i := 0; i < n; i++ {
		entry := buf[offFreeListStart+i*16:]
		codec.PutU64(entry, h.FreeList[i].Offset)
		codec.PutU64(entry[8:], h.FreeList[i].Length)
	}

	codec.PutU32(buf[offHeaderCrc:], codec.CRC32C(buf[:offHeaderCrc]))
	return buf
}

// DecodeHeader parses a HeaderSize-byte block, validating the magic tag,
// version, and CRC. Any mismatch is surfaced as nerr.ErrCorruption.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, nerr.Wrapf(nerr.ErrCorruption, "header: short read (%d bytes)", len(buf))
	}
	if string(buf[offMagic:offMagic+8]) != string(Magic[:]) {
		return nil, nerr.Wrapf(nerr.ErrCorruption, "header: bad magic")
	}
	wantCrc := codec.U32(buf[offHeaderCrc:])
	gotCrc := codec.CRC32C(buf[:offHeaderCrc])
	if wantCrc != gotCrc {
		return nil, nerr.Wrapf(nerr.ErrCorruption, "header: crc mismatch (want %x got %x)", wantCrc, gotCrc)
	}

	h := &Header{
		VersionMajor:         codec.U16(buf[offVersionMajor:]),
		VersionMinor:         codec.U16(buf[offVersionMinor:]),
		PageSize:             codec.U32(buf[offPageSize:]),
		ActiveSnapshotOffset: codec.U64(buf[offActiveSnapshotOffset:]),
		ActiveSnapshotLength: codec.U64(buf[offActiveSnapshotLength:]),
		ActiveSnapshotGen:    codec.U64(buf[offActiveSnapshotGen:]),
		Wal0Offset:           codec.U64(buf[offWal0Offset:]),
		Wal0Length:           codec.U64(buf[offWal0Length:]),
		Wal0Head:             codec.U64(buf[offWal0Head:]),
		Wal0Tail:             codec.U64(buf[offWal0Tail:]),
		Wal1Offset:           codec.U64(buf[offWal1Offset:]),
		Wal1Length:           codec.U64(buf[offWal1Length:]),
		Wal1Head:             codec.U64(buf[offWal1Head:]),
		Wal1Tail:             codec.U64(buf[offWal1Tail:]),
		ActiveWalRegion:      buf[offActiveWalRegion],
		NextNodeID:           codec.U64(buf[offNextNodeId:]),
		NextLabelID:          codec.U32(buf[offNextLabelId:]),
		NextEtypeID:          codec.U32(buf[offNextEtypeId:]),
		NextPropkeyID:        codec.U32(buf[offNextPropkeyId:]),
	}
	if h.VersionMajor != VersionMajor {
		return nil, nerr.Wrapf(nerr.ErrCorruption, "header: unsupported version %d.%d", h.VersionMajor, h.VersionMinor)
	}

	n := int(codec.U32(buf[offFreeListCount:]))
	if n > maxFreeListEntries {
		return nil, nerr.Wrapf(nerr.ErrCorruption, "header: free-list count %d exceeds capacity", n)
	}
	h.FreeList = make([]FreeSpan, n)
	for i := 0; i < n; i++ {
		entry := buf[offFreeListStart+i*16:]
		h.FreeList[i] = FreeSpan{Offset: codec.U64(entry), Length: codec.U64(entry[8:])}
	}
	return h, nil
}

// Clone returns a deep copy of h so callers can build a modified header for
// a flip without mutating the one currently believed durable.
func (h *Header) Clone() *Header {
	cp := *h
	cp.FreeList = append([]FreeSpan(nil), h.FreeList...)
	return &cp
}

// OtherWalRegion returns the index (0 or 1) of the region that is not
// currently active.
func (h *Header) OtherWalRegion() uint8 {
	if h.ActiveWalRegion == 0 {
		return 1
	}
	return 0
}

// ActiveWal returns the (offset, length, head, tail) of the currently active
// WAL region.
func (h *Header) ActiveWal() (offset, length, head, tail uint64) {
	if h.ActiveWalRegion == 0 {
		return h.Wal0Offset, h.Wal0Length, h.Wal0Head, h.Wal0Tail
	}
	return h.Wal1Offset, h.Wal1Length, h.Wal1Head, h.Wal1Tail
}

// QuiescentWal returns the (offset, length, head, tail) of the currently
// frozen WAL region, available for the checkpointer to read.
func (h *Header) QuiescentWal() (offset, length, head, tail uint64) {
	if h.ActiveWalRegion == 0 {
		return h.Wal1Offset, h.Wal1Length, h.Wal1Head, h.Wal1Tail
	}
	return h.Wal0Offset, h.Wal0Length, h.Wal0Head, h.Wal0Tail
}

// SetActiveWal writes back (head, tail) for the currently active region.
func (h *Header) SetActiveWal(head, tail uint64) {
	if h.ActiveWalRegion == 0 {
		h.Wal0Head, h.Wal0Tail = head, tail
	} else {
		h.Wal1Head, h.Wal1Tail = head, tail
	}
}

// SetQuiescentWal writes back (offset, length, head, tail) for the currently
// frozen region, used when resizeWal grows/shrinks it or checkpoint clears it.
func (h *Header) SetQuiescentWal(offset, length, head, tail uint64) {
	if h.ActiveWalRegion == 0 {
		h.Wal1Offset, h.Wal1Length, h.Wal1Head, h.Wal1Tail = offset, length, head, tail
	} else {
		h.Wal0Offset, h.Wal0Length, h.Wal0Head, h.Wal0Tail = offset, length, head, tail
	}
}
