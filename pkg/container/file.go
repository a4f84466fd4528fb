package container

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nodalgraph/nodal/pkg/nerr"
)

// File owns the single on-disk container: the 4 KiB header, the active
// snapshot region (memory-mapped read-only), and the two WAL regions.
//
// The write path never mutates bytes that a live mmap might be reading:
// new content (a new snapshot, a resized WAL region) is always written to
// free space past the current end of file, flushed, and only then does a
// header flip make it the active state (spec §4.1 "header flip").
type File struct {
	mu sync.Mutex

	f      *os.File
	path   string
	header *Header

	mapped     []byte // mmap of the active snapshot region, or nil if empty
	mappedOff  int64
	mappedLen  int
}

// Open opens or creates the container file at path. When creating,
// pageSize/walSize size the two WAL regions (default split 75/25 per spec
// §4.6); when opening an existing file the on-disk header governs sizing.
func Open(path string, createIfMissing bool, pageSize uint32, walSize uint64) (*File, error) {
	flags := os.O_RDWR
	_, statErr := os.Stat(path)
	creating := false
	if os.IsNotExist(statErr) {
		if !createIfMissing {
			return nil, nerr.Wrapf(nerr.ErrNotFound, "container: %s does not exist", path)
		}
		flags |= os.O_CREATE
		creating = true
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, nerr.Wrapf(nerr.ErrIo, "container: open %s: %v", path, err)
	}

	cf := &File{f: f, path: path}
	if creating {
		if err := cf.initEmpty(pageSize, walSize); err != nil {
			f.Close()
			return nil, err
		}
		return cf, nil
	}

	if err := cf.loadHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := cf.mapSnapshot(); err != nil {
		f.Close()
		return nil, err
	}
	return cf, nil
}

func (cf *File) initEmpty(pageSize uint32, walSize uint64) error {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if walSize == 0 {
		walSize = 1 << 20 // 1 MiB default
	}
	h := NewHeader(pageSize)
	primary := (walSize * 3) / 4
	secondary := walSize - primary
	h.Wal0Offset = uint64(HeaderSize)
	h.Wal0Length = primary
	h.Wal1Offset = h.Wal0Offset + primary
	h.Wal1Length = secondary
	h.ActiveWalRegion = 0

	total := int64(HeaderSize) + int64(primary+secondary)
	if err := cf.f.Truncate(total); err != nil {
		return nerr.Wrapf(nerr.ErrIo, "container: truncate: %v", err)
	}
	cf.header = h
	return cf.writeHeader(h)
}

func (cf *File) loadHeader() error {
	buf := make([]byte, HeaderSize)
	if _, err := cf.f.ReadAt(buf, 0); err != nil {
		return nerr.Wrapf(nerr.ErrIo, "container: read header: %v", err)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return err
	}
	cf.header = h
	return nil
}

func (cf *File) mapSnapshot() error {
	if cf.mapped != nil {
		if err := unix.Munmap(cf.mapped); err != nil {
			return nerr.Wrapf(nerr.ErrIo, "container: munmap: %v", err)
		}
		cf.mapped = nil
	}
	if cf.header.ActiveSnapshotLength == 0 {
		return nil
	}
	// mmap requires offsets aligned to the system page size; the container
	// places every region on a 4 KiB boundary so this always holds.
	data, err := unix.Mmap(int(cf.f.Fd()), int64(cf.header.ActiveSnapshotOffset), int(cf.header.ActiveSnapshotLength), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nerr.Wrapf(nerr.ErrIo, "container: mmap: %v", err)
	}
	cf.mapped = data
	cf.mappedOff = int64(cf.header.ActiveSnapshotOffset)
	cf.mappedLen = int(cf.header.ActiveSnapshotLength)
	return nil
}

// Header returns a read-only snapshot of the current header. Callers must
// not mutate the returned pointer; use Flip to publish changes.
func (cf *File) Header() *Header {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.header.Clone()
}

// Snapshot returns the memory-mapped bytes of the active snapshot region.
// The slice is read-only; writing to it will fault. Valid until the next
// successful Flip that changes the snapshot region, after which callers
// must call Snapshot again to get the refreshed mapping.
func (cf *File) Snapshot() []byte {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.mapped
}

// AppendFree writes data to free space past the current end of file (or
// reusing a best-fit span from the header's free list) and fsyncs it. It
// returns the offset the data was written at. The header is NOT updated;
// callers use Flip to publish a header that references the new offset.
func (cf *File) AppendFree(data []byte) (offset uint64, err error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	if span, ok := cf.takeBestFit(len(data)); ok {
		if _, err := cf.f.WriteAt(data, int64(span.Offset)); err != nil {
			return 0, nerr.Wrapf(nerr.ErrIo, "container: write: %v", err)
		}
		if err := cf.f.Sync(); err != nil {
			return 0, nerr.Wrapf(nerr.ErrIo, "container: fsync: %v", err)
		}
		return span.Offset, nil
	}

	fi, err := cf.f.Stat()
	if err != nil {
		return 0, nerr.Wrapf(nerr.ErrIo, "container: stat: %v", err)
	}
	off := fi.Size()
	if rem := off % int64(cf.header.PageSize); rem != 0 {
		off += int64(cf.header.PageSize) - rem
	}
	if err := cf.f.Truncate(off + int64(len(data))); err != nil {
		return 0, nerr.Wrapf(nerr.ErrIo, "container: truncate: %v", err)
	}
	if _, err := cf.f.WriteAt(data, off); err != nil {
		return 0, nerr.Wrapf(nerr.ErrIo, "container: write: %v", err)
	}
	if err := cf.f.Sync(); err != nil {
		return 0, nerr.Wrapf(nerr.ErrIo, "container: fsync: %v", err)
	}
	return uint64(off), nil
}

// takeBestFit removes and returns the smallest free span that fits n bytes
// rounded up to whole pages, so any remainder it puts back starts on a page
// boundary, implementing the best-fit arena reclamation strategy (SPEC_FULL §5,
// resolving spec §9 Open Question (a)). Caller must hold cf.mu.
func (cf *File) takeBestFit(n int) (FreeSpan, bool) {
	need := uint64(n)
	if ps := uint64(cf.header.PageSize); ps > 0 && need%ps != 0 {
		need += ps - need%ps
	}
	best := -1
	for i, span := range cf.header.FreeList {
		if span.Length >= need && (best == -1 || span.Length < cf.header.FreeList[best].Length) {
			best = i
		}
	}
	if best == -1 {
		return FreeSpan{}, false
	}
	span := cf.header.FreeList[best]
	cf.header.FreeList = append(cf.header.FreeList[:best], cf.header.FreeList[best+1:]...)
	if span.Length > need {
		cf.header.FreeList = append(cf.header.FreeList, FreeSpan{Offset: span.Offset + need, Length: span.Length - need})
	}
	return span, true
}

// Reclaim adds a span of now-unreferenced bytes to the free list, called
// after a checkpoint retires the previous snapshot generation.
func (cf *File) Reclaim(offset, length uint64) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	cf.header.FreeList = append(cf.header.FreeList, FreeSpan{Offset: offset, Length: length})
}

func (cf *File) writeHeader(h *Header) error {
	if _, err := cf.f.WriteAt(h.Encode(), 0); err != nil {
		return nerr.Wrapf(nerr.ErrIo, "container: write header: %v", err)
	}
	return cf.f.Sync()
}

// Flip atomically publishes a new header: the caller has already written and
// fsynced whatever new content (snapshot bytes, resized WAL region) the new
// header references; Flip writes the header block itself and fsyncs, then
// refreshes the snapshot mmap if the active snapshot region changed.
//
// Any crash before this call leaves the prior header (and therefore the
// prior durable state) in place. There is a single header slot at offset 0,
// rewritten in place: a crash that tears that write leaves a header whose
// CRC no longer matches, which the next open reports as corruption.
func (cf *File) Flip(newHeader *Header) error {
	cf.mu.Lock()
	prevOff, prevLen := cf.header.ActiveSnapshotOffset, cf.header.ActiveSnapshotLength
	cf.mu.Unlock()

	if err := cf.writeHeader(newHeader); err != nil {
		return err
	}

	cf.mu.Lock()
	cf.header = newHeader
	cf.mu.Unlock()

	if newHeader.ActiveSnapshotOffset != prevOff || newHeader.ActiveSnapshotLength != prevLen {
		if err := cf.mapSnapshot(); err != nil {
			return err
		}
	}
	return nil
}

// ReadAt reads n bytes at offset, used for reading WAL regions that are not
// memory-mapped.
func (cf *File) ReadAt(offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := cf.f.ReadAt(buf, offset); err != nil {
		return nil, nerr.Wrapf(nerr.ErrIo, "container: read: %v", err)
	}
	return buf, nil
}

// WriteAt writes data at offset without an accompanying fsync; callers batch
// writes and call Sync explicitly (spec §4.6 sync-mode policy).
func (cf *File) WriteAt(offset int64, data []byte) error {
	if _, err := cf.f.WriteAt(data, offset); err != nil {
		return nerr.Wrapf(nerr.ErrIo, "container: write: %v", err)
	}
	return nil
}

// Sync fsyncs the underlying file.
func (cf *File) Sync() error {
	if err := cf.f.Sync(); err != nil {
		return nerr.Wrapf(nerr.ErrIo, "container: fsync: %v", err)
	}
	return nil
}

// Close unmaps the snapshot region and closes the underlying file.
func (cf *File) Close() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if cf.mapped != nil {
		unix.Munmap(cf.mapped)
		cf.mapped = nil
	}
	return cf.f.Close()
}

// Path returns the path the container was opened with.
func (cf *File) Path() string { return cf.path }
