package engine

import (
	"log"
	"time"

	"github.com/nodalgraph/nodal/pkg/delta"
	"github.com/nodalgraph/nodal/pkg/keyindex"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/snapshot"
)

// nodeRecordsLocked and edgeRecordsLocked assemble the full resolved record
// set Checkpoint hands to pkg/snapshot.Build. Caller must hold db.mu.
func (db *DB) nodeRecordsLocked() []snapshot.NodeRecord {
	ids := db.listNodesLocked()
	out := make([]snapshot.NodeRecord, 0, len(ids))
	for _, id := range ids {
		key, labels, props, ok := db.resolveNode(id)
		if !ok {
			continue
		}
		out = append(out, snapshot.NodeRecord{ID: id, Key: key, Labels: labels, Props: props})
	}
	return out
}

func (db *DB) edgeRecordsLocked() []snapshot.EdgeRecord {
	var out []snapshot.EdgeRecord
	for _, id := range db.listNodesLocked() {
		for _, nb := range db.neighborsLocked(id, model.Out, 0, false) {
			out = append(out, snapshot.EdgeRecord{
				Src:   id,
				Etype: nb.Etype,
				Dst:   nb.Other,
				Props: db.edgePropsLocked(id, nb.Etype, nb.Other),
			})
		}
	}
	return out
}

// Checkpoint freezes the current delta into a fresh snapshot generation,
// following the container's atomic header-flip procedure (spec §4.6):
// assemble every live node/edge/schema/vector-fragment record under the
// write lock, hand the resulting bytes to wal.WAL.Checkpoint, then swap in
// the freshly parsed snapshot and a clean delta.
//
// writeMu stays held from build() through the db.snap/db.delta swap: a write
// transaction that committed in that window would apply its mutation to the
// very db.delta object Checkpoint is about to discard (Txn.Commit's deferred
// closures resolve db.delta live, not a pinned reference — see txn.go), and
// separately wal.Checkpoint clears the frozen WAL region's head/tail, which
// would orphan any frame a concurrent wal.Commit lands there first. Neither
// race is WAL-header-flip-specific; both stem from build()'s snapshot read
// and the swap needing to observe the same, unchanging delta/WAL-region
// state throughout. Narrowing writeMu to just the final header flip would
// reopen exactly that window. What IS safe to move out: schema.rebuild and
// clearCaches below touch only schema/cache state guarded by their own
// locks, never db.delta or the WAL, so they run after writeMu releases.
func (db *DB) Checkpoint() error {
	db.writeMu.Lock()

	gen := db.cf.Header().ActiveSnapshotGen
	log.Printf("engine: checkpoint starting (gen %d)", gen)
	start := time.Now()

	build := func() []byte {
		db.mu.RLock()
		defer db.mu.RUnlock()

		in := snapshot.BuildInput{
			Gen:   gen + 1,
			Nodes: db.nodeRecordsLocked(),
			Edges: db.edgeRecordsLocked(),
		}

		db.schema.mu.RLock()
		in.Schema = snapshot.SchemaNames{
			Labels:   copyLabelNames(db.schema.labelNames),
			Etypes:   copyEtypeNames(db.schema.etypeNames),
			PropKeys: copyPropNames(db.schema.propNames),
		}
		db.schema.mu.RUnlock()

		for _, propKey := range db.vectors.PropKeys() {
			blobs, err := db.vectors.ExportFragments(propKey)
			if err != nil {
				continue
			}
			manifest := snapshot.VectorManifestRecord{PropKey: propKey}
			for _, blob := range blobs {
				offset, werr := db.cf.AppendFree(blob.Data)
				if werr != nil {
					log.Printf("engine: checkpoint: failed to persist vector fragment for propkey %d: %v", propKey, werr)
					continue
				}
				manifest.Fragments = append(manifest.Fragments, snapshot.FragmentRef{
					Offset: offset,
					Length: uint64(len(blob.Data)),
					Rows:   blob.Rows,
					Sealed: blob.Sealed,
				})
			}
			in.Vectors = append(in.Vectors, manifest)
		}
		return snapshot.Build(in)
	}

	if err := db.wal.Checkpoint(build); err != nil {
		db.writeMu.Unlock()
		return err
	}

	newSnap, err := snapshot.Parse(db.cf.Snapshot())
	if err != nil {
		db.writeMu.Unlock()
		return err
	}

	var disk keyindex.DiskLookup = newSnap
	newDelta := delta.New(disk, db.vectors)

	db.mu.Lock()
	db.snap = newSnap
	db.delta = newDelta
	db.mu.Unlock()
	db.writeMu.Unlock()

	db.schema.rebuild(newSnap)
	db.clearCaches()

	log.Printf("engine: checkpoint complete in %s (nodes=%d edges=%d)", time.Since(start), newSnap.NodeCount(), newSnap.EdgeCount())
	return nil
}

func (db *DB) clearCaches() {
	if db.propCache != nil {
		db.propCache.Clear()
	}
	if db.travCache != nil {
		db.travCache.Clear()
	}
	if db.queryCache != nil {
		db.queryCache.Clear()
	}
	if db.keyCache != nil {
		db.keyCache.Clear()
	}
}

// maybeAutoCheckpoint runs after a committed write when opts.AutoCheckpoint
// is set: if the active WAL region's fill ratio has crossed
// CheckpointThreshold, or the delta's changed nodes (created, deleted,
// modified, or with added out-edges) exceed 10% of the snapshot's node+edge
// count, it either checkpoints synchronously or, when BackgroundCheckpoint
// is set, wakes the background worker.
func (db *DB) maybeAutoCheckpoint() {
	if !db.opts.AutoCheckpoint {
		return
	}
	_, length, _, tail := db.cf.Header().ActiveWal()
	if length == 0 {
		return
	}
	fillRatio := float64(tail) / float64(length)
	if fillRatio < db.opts.CheckpointThreshold {
		db.mu.RLock()
		var snapCount uint64
		if db.snap != nil {
			snapCount = db.snap.NodeCount() + db.snap.EdgeCount()
		}
		changes := uint64(len(db.delta.CreatedNodeIDs()) + len(db.delta.DeletedNodeIDs()) + len(db.delta.ModifiedNodeIDs()) + len(db.delta.OutAddedNodes()))
		db.mu.RUnlock()
		if snapCount == 0 || changes*10 <= snapCount {
			return
		}
	}
	if db.opts.BackgroundCheckpoint {
		select {
		case db.bgCheckpoint <- struct{}{}:
		default:
		}
		return
	}
	if err := db.Checkpoint(); err != nil {
		log.Printf("engine: auto-checkpoint failed: %v", err)
	}
}

// backgroundCheckpointLoop runs as a single goroutine communicating over one
// buffered channel: maybeAutoCheckpoint signals bgCheckpoint when either of
// its auto-checkpoint conditions holds, and this loop runs
// the (possibly slow) checkpoint outside the committing goroutine's path.
func (db *DB) backgroundCheckpointLoop() {
	for {
		select {
		case <-db.bgDone:
			return
		case <-db.bgCheckpoint:
			if err := db.Checkpoint(); err != nil {
				log.Printf("engine: background checkpoint failed: %v", err)
			}
		}
	}
}

// ResizeWal grows or shrinks the quiescent (currently inactive) WAL region
// to newSize bytes. The active region, still absorbing commits, is left
// untouched until the next checkpoint flips the roles.
func (db *DB) ResizeWal(newSize uint64) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	h := db.cf.Header()
	_, oldLen, _, _ := h.QuiescentWal()

	buf := make([]byte, newSize)
	newOffset, err := db.cf.AppendFree(buf)
	if err != nil {
		return err
	}

	newHeader := h.Clone()
	newHeader.SetQuiescentWal(newOffset, newSize, 0, 0)
	if err := db.cf.Flip(newHeader); err != nil {
		return err
	}

	oldOffset, _, _, _ := h.QuiescentWal()
	if oldLen > 0 {
		db.cf.Reclaim(oldOffset, oldLen)
	}
	log.Printf("engine: resized quiescent wal region to %d bytes", newSize)
	return nil
}

// Optimize retrains every vector index's IVF/PQ side structures and
// recompacts its fragment chain in one call.
func (db *DB) Optimize() error {
	for _, propKey := range db.vectors.PropKeys() {
		if err := db.vectors.BuildIndex(propKey); err != nil {
			return err
		}
		if _, _, err := db.vectors.Compact(propKey); err != nil {
			return err
		}
	}
	return db.Checkpoint()
}

// Vacuum forces a checkpoint, whose last step hands the superseded snapshot
// generation's byte range to the container's best-fit free list (see
// wal.WAL.Checkpoint). Vector fragment blobs written by earlier checkpoints
// are not added to the free list, and the file is never shrunk.
func (db *DB) Vacuum() error {
	return db.Checkpoint()
}

func copyLabelNames(m map[model.LabelID]string) map[model.LabelID]string {
	out := make(map[model.LabelID]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyEtypeNames(m map[model.ETypeID]string) map[model.ETypeID]string {
	out := make(map[model.ETypeID]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyPropNames(m map[model.PropKeyID]string) map[model.PropKeyID]string {
	out := make(map[model.PropKeyID]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
