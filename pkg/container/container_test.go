package container

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := NewHeader(4096)
	h.ActiveSnapshotOffset = 8192
	h.ActiveSnapshotLength = 4096
	h.ActiveSnapshotGen = 3
	h.NextNodeID = 42
	h.FreeList = []FreeSpan{{Offset: 100, Length: 200}}

	buf := h.Encode()
	require.Len(t, buf, HeaderSize)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h.ActiveSnapshotOffset, got.ActiveSnapshotOffset)
	assert.Equal(t, h.ActiveSnapshotGen, got.ActiveSnapshotGen)
	assert.Equal(t, h.NextNodeID, got.NextNodeID)
	assert.Equal(t, h.FreeList, got.FreeList)
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	_, err := DecodeHeader(buf)
	assert.Error(t, err)
}

func TestDecodeHeaderRejectsCRCMismatch(t *testing.T) {
	h := NewHeader(4096)
	buf := h.Encode()
	buf[20] ^= 0xFF
	_, err := DecodeHeader(buf)
	assert.Error(t, err)
}

func TestOpenCreateAndReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.nodal")

	cf, err := Open(path, true, 4096, 64*1024)
	require.NoError(t, err)
	h := cf.Header()
	assert.Equal(t, uint64(1), h.NextNodeID)
	assert.Equal(t, uint8(0), h.ActiveWalRegion)
	require.NoError(t, cf.Close())

	cf2, err := Open(path, false, 0, 0)
	require.NoError(t, err)
	defer cf2.Close()
	h2 := cf2.Header()
	assert.Equal(t, h.Wal0Length, h2.Wal0Length)
}

func TestFlipPublishesNewSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.nodal")
	cf, err := Open(path, true, 4096, 64*1024)
	require.NoError(t, err)
	defer cf.Close()

	payload := make([]byte, 4096)
	copy(payload, []byte("snapshot-bytes"))
	offset, err := cf.AppendFree(payload)
	require.NoError(t, err)

	newHeader := cf.Header()
	newHeader.ActiveSnapshotOffset = offset
	newHeader.ActiveSnapshotLength = uint64(len(payload))
	newHeader.ActiveSnapshotGen = 1
	require.NoError(t, cf.Flip(newHeader))

	mapped := cf.Snapshot()
	require.Len(t, mapped, len(payload))
	assert.Equal(t, "snapshot-bytes", string(mapped[:14]))
}

func TestReclaimAndBestFit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.nodal")
	cf, err := Open(path, true, 4096, 64*1024)
	require.NoError(t, err)
	defer cf.Close()

	cf.Reclaim(123456, 4096)
	data := make([]byte, 100)
	offset, err := cf.AppendFree(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), offset)
}
