package engine

import (
	"time"
)

// Stats is the full stats() surface (spec §6.3): snapshot generation and
// live counts, pending delta counts, WAL fill, a checkpoint-now hint, and
// (when MVCC bookkeeping is active) the write-set GC counters.
type Stats struct {
	SnapshotGen     uint64
	SnapshotNodes   uint64
	SnapshotEdges   uint64
	SnapshotMaxNode uint64

	DeltaCreatedNodes  int
	DeltaDeletedNodes  int
	DeltaModifiedNodes int
	// DeltaOutEdgeTouchedNodes counts nodes with at least one pending
	// outgoing-edge addition this epoch, not a per-edge count.
	DeltaOutEdgeTouchedNodes int

	WalActiveBytes uint64
	WalActiveLen   uint64

	RecommendCompact bool

	ActiveTxCount int
	MinActiveTs   uint64
	GCRuns        uint64
	LastGCTime    time.Time
}

// Stats reports the engine's current state for monitoring and the stats
// CLI subcommand.
func (db *DB) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var s Stats
	if db.snap != nil {
		s.SnapshotGen = db.snap.Gen()
		s.SnapshotNodes = db.snap.NodeCount()
		s.SnapshotEdges = db.snap.EdgeCount()
		for _, id := range db.snap.AllNodeIDs() {
			if uint64(id) > s.SnapshotMaxNode {
				s.SnapshotMaxNode = uint64(id)
			}
		}
	}

	s.DeltaCreatedNodes = len(db.delta.CreatedNodeIDs())
	s.DeltaDeletedNodes = len(db.delta.DeletedNodeIDs())
	s.DeltaModifiedNodes = len(db.delta.ModifiedNodeIDs())
	s.DeltaOutEdgeTouchedNodes = len(db.delta.OutAddedNodes())

	_, length, _, tail := db.cf.Header().ActiveWal()
	s.WalActiveBytes = tail
	s.WalActiveLen = length
	if length > 0 {
		s.RecommendCompact = float64(tail)/float64(length) >= db.opts.CheckpointThreshold
	}

	s.ActiveTxCount = db.mvccMgr.ActiveCount()
	s.MinActiveTs = uint64(db.mvccMgr.MinActiveTs())

	db.gcMu.Lock()
	s.GCRuns = db.gcRuns
	s.LastGCTime = db.lastGCTime
	db.gcMu.Unlock()

	return s
}

// RunGC sweeps the MVCC write-set stores of versions no longer visible to
// any active transaction. Safe to call on a timer or after every N commits
// (spec §4.7 GC policy); the engine runs it only when the caller asks —
// there is no implicit background GC goroutine separate from the
// checkpoint worker.
func (db *DB) RunGC() {
	minTs := db.mvccMgr.MinActiveTs()
	db.nodeWriteSet.GarbageCollect(minTs)
	db.edgeWriteSet.GarbageCollect(minTs)

	db.gcMu.Lock()
	db.gcRuns++
	db.lastGCTime = time.Now()
	db.gcMu.Unlock()
}
