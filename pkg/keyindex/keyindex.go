// Package keyindex implements the two-level string-key lookup (spec §4.4):
// an in-memory delta overlay (tombstones, then additions) checked before the
// disk-resident hash-bucketed index built into every snapshot.
package keyindex

import (
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/snapshot"
)

// DiskLookup is the read-only, disk-resident half of the key index: the
// hash-bucketed table serialized into a snapshot (pkg/snapshot.Reader
// satisfies this).
type DiskLookup interface {
	KeyLookup(key string) (model.NodeID, bool)
}

// Index answers string-key lookups by merging the delta's tombstones and
// additions in front of a snapshot's disk buckets, per spec §4.4's two-level
// lookup discipline: tombstones first, then additions, then snapshot.
type Index struct {
	disk      DiskLookup
	additions map[string]model.NodeID
	deleted   map[string]struct{}
}

// New wraps a snapshot (or nil, before the first checkpoint) with empty
// delta overlays.
func New(disk DiskLookup) *Index {
	return &Index{
		disk:      disk,
		additions: make(map[string]model.NodeID),
		deleted:   make(map[string]struct{}),
	}
}

// Lookup resolves key to a NodeID, checking the delta's tombstones first
// (an explicit "not found"), then its additions, then the disk index.
func (ix *Index) Lookup(key string) (model.NodeID, bool) {
	if _, tombstoned := ix.deleted[key]; tombstoned {
		return 0, false
	}
	if id, ok := ix.additions[key]; ok {
		return id, true
	}
	if ix.disk == nil {
		return 0, false
	}
	return ix.disk.KeyLookup(key)
}

// Put records key→id in the delta's additions, clearing any prior tombstone
// for the same key (a delete-then-recreate within the same delta epoch).
func (ix *Index) Put(key string, id model.NodeID) {
	delete(ix.deleted, key)
	ix.additions[key] = id
}

// Delete tombstones key. If key was only ever a delta addition (never
// reached the disk index), the tombstone is still recorded so a subsequent
// Lookup before the next checkpoint correctly reports "not found" rather
// than falling through to a stale disk entry.
func (ix *Index) Delete(key string) {
	delete(ix.additions, key)
	ix.deleted[key] = struct{}{}
}

// Reset clears the delta overlay and rebinds to a fresh disk snapshot,
// called once per checkpoint after the delta has been folded into the new
// snapshot's on-disk buckets.
func (ix *Index) Reset(disk DiskLookup) {
	ix.disk = disk
	ix.additions = make(map[string]model.NodeID)
	ix.deleted = make(map[string]struct{})
}

// Additions and Deletions expose the raw delta overlay for the checkpointer
// building the next snapshot's NodeRecord.Key fields and key-index section.
func (ix *Index) Additions() map[string]model.NodeID { return ix.additions }
func (ix *Index) Deletions() map[string]struct{}     { return ix.deleted }

var _ DiskLookup = (*snapshot.Reader)(nil)
