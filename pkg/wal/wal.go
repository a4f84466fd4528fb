// Package wal implements the dual-region circular write-ahead log (spec
// §4.6): buffered per-transaction frame batches flushed contiguously on
// commit, replay-to-last-COMMIT recovery, and the checkpoint procedure that
// freezes one region while the other keeps absorbing writes.
//
// Grounded on other_examples/a40e24dc_LeeNgari-RDBMS's WAL writer: a mutex
// guarding sequential offset allocation, a fixed binary record header, and
// commit-time fsync:
package wal

import (
	"sync"

	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/container"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
	"github.com/nodalgraph/nodal/pkg/pool"
)

// SyncMode controls when a commit's bytes are guaranteed durable (spec §4.6).
type SyncMode uint8

const (
	// SyncFull fsyncs the WAL data and the header before Commit returns.
	SyncFull SyncMode = iota
	// SyncNormal fsyncs the header (cheap, fixed 4 KiB) synchronously but
	// defers the WAL data fsync to a background goroutine.
	SyncNormal
	// SyncOff performs no explicit fsync of WAL data at all, relying on OS
	// writeback; only the header (which also carries next-ID counters) is
	// kept synchronous so counters never regress on restart.
	SyncOff
)

// Sink receives replayed mutations, implemented by *pkg/delta.Delta.
type Sink interface {
	DefineLabel(id model.LabelID, name string)
	DefineEtype(id model.ETypeID, name string)
	DefinePropKey(id model.PropKeyID, name string)
	CreateNode(id model.NodeID, key string, labels []model.LabelID, props map[model.PropKeyID]model.PropValue)
	DeleteNode(id model.NodeID, key string)
	SetNodeProp(id model.NodeID, key model.PropKeyID, val model.PropValue)
	DelNodeProp(id model.NodeID, key model.PropKeyID)
	AddNodeLabel(id model.NodeID, label model.LabelID)
	RemoveNodeLabel(id model.NodeID, label model.LabelID)
	AddOutEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID)
	RemoveOutEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID)
	SetEdgeProp(e model.Edge, key model.PropKeyID, val model.PropValue)
	DelEdgeProp(e model.Edge, key model.PropKeyID)
	SetNodeVector(node model.NodeID, propKey model.PropKeyID, v []float32) error
	DeleteNodeVector(node model.NodeID, propKey model.PropKeyID) error
}

// WAL wraps a container.File's two WAL regions with transaction buffering.
type WAL struct {
	mu   sync.Mutex
	cf   *container.File
	mode SyncMode

	nextTxID uint64
	pending  map[uint64]*codec.Builder
}

// Open wraps cf's WAL regions for appends in the given sync mode.
func Open(cf *container.File, mode SyncMode) *WAL {
	return &WAL{cf: cf, mode: mode, pending: make(map[uint64]*codec.Builder)}
}

// Begin allocates a transaction buffer. Frames logged against txID are held
// in memory until Commit. The buffer's backing array is drawn from
// pkg/pool's byte-buffer pool, the one allocation every write transaction
// makes regardless of how many frames it ends up logging.
func (w *WAL) Begin() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextTxID++
	txID := w.nextTxID
	w.pending[txID] = codec.NewBuilderFromBuf(pool.GetByteBuffer())
	return txID
}

func (w *WAL) log(txID uint64, typ FrameType, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.pending[txID]
	if !ok {
		return nerr.Wrapf(nerr.ErrTransactionMisuse, "wal: unknown transaction %d", txID)
	}
	EncodeFrame(b, typ, payload)
	return nil
}

func (w *WAL) LogDefineLabel(tx uint64, id model.LabelID, name string) error {
	return w.log(tx, FrameDefineLabel, encodeNameFrame(uint32(id), name))
}
func (w *WAL) LogDefineEtype(tx uint64, id model.ETypeID, name string) error {
	return w.log(tx, FrameDefineEtype, encodeNameFrame(uint32(id), name))
}
func (w *WAL) LogDefinePropKey(tx uint64, id model.PropKeyID, name string) error {
	return w.log(tx, FrameDefinePropKey, encodeNameFrame(uint32(id), name))
}
func (w *WAL) LogCreateNode(tx uint64, id model.NodeID, key string, labels []model.LabelID, props map[model.PropKeyID]model.PropValue) error {
	return w.log(tx, FrameCreateNode, encodeCreateNodeFrame(id, key, labels, props))
}
func (w *WAL) LogDeleteNode(tx uint64, id model.NodeID, key string) error {
	return w.log(tx, FrameDeleteNode, encodeDeleteNodeFrame(id, key))
}
func (w *WAL) LogSetNodeProp(tx uint64, id model.NodeID, key model.PropKeyID, val model.PropValue) error {
	return w.log(tx, FrameSetNodeProp, encodeNodePropFrame(id, key, &val))
}
func (w *WAL) LogDelNodeProp(tx uint64, id model.NodeID, key model.PropKeyID) error {
	return w.log(tx, FrameDelNodeProp, encodeNodePropFrame(id, key, nil))
}
func (w *WAL) LogAddNodeLabel(tx uint64, id model.NodeID, label model.LabelID) error {
	return w.log(tx, FrameAddNodeLabel, encodeNodeLabelFrame(id, label))
}
func (w *WAL) LogRemoveNodeLabel(tx uint64, id model.NodeID, label model.LabelID) error {
	return w.log(tx, FrameRemoveNodeLabel, encodeNodeLabelFrame(id, label))
}
func (w *WAL) LogAddEdge(tx uint64, src model.NodeID, etype model.ETypeID, dst model.NodeID) error {
	return w.log(tx, FrameAddEdge, encodeEdgeFrame(src, etype, dst))
}
func (w *WAL) LogRemoveEdge(tx uint64, src model.NodeID, etype model.ETypeID, dst model.NodeID) error {
	return w.log(tx, FrameRemoveEdge, encodeEdgeFrame(src, etype, dst))
}
func (w *WAL) LogSetEdgeProp(tx uint64, e model.Edge, key model.PropKeyID, val model.PropValue) error {
	return w.log(tx, FrameSetEdgeProp, encodeEdgePropFrame(e, key, &val))
}
func (w *WAL) LogDelEdgeProp(tx uint64, e model.Edge, key model.PropKeyID) error {
	return w.log(tx, FrameDelEdgeProp, encodeEdgePropFrame(e, key, nil))
}
func (w *WAL) LogSetNodeVector(tx uint64, id model.NodeID, key model.PropKeyID, v []float32) error {
	return w.log(tx, FrameSetNodeVector, encodeNodeVectorFrame(id, key, v))
}
func (w *WAL) LogDelNodeVector(tx uint64, id model.NodeID, key model.PropKeyID) error {
	return w.log(tx, FrameDelNodeVector, encodeNodeVectorFrame(id, key, nil))
}
func (w *WAL) LogSealFragment(tx uint64, propKey model.PropKeyID, fragmentIndex, rows uint32) error {
	return w.log(tx, FrameSealFragment, encodeSealFragmentFrame(propKey, fragmentIndex, rows))
}
func (w *WAL) LogCompactFragments(tx uint64, propKey model.PropKeyID, before, after uint32) error {
	return w.log(tx, FrameCompactFragments, encodeCompactFragmentsFrame(propKey, before, after))
}

// Rollback discards a transaction's buffered frames without writing them.
func (w *WAL) Rollback(txID uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.pending[txID]
	delete(w.pending, txID)
	if ok {
		pool.PutByteBuffer(b.Bytes())
	}
}

// Commit appends the transaction's buffered frames followed by a synthetic
// COMMIT frame to the active region, advances the region's tail in the
// header, and fsyncs per the configured SyncMode (spec §4.6 append policy).
func (w *WAL) Commit(txID uint64) error {
	w.mu.Lock()
	b, ok := w.pending[txID]
	if !ok {
		w.mu.Unlock()
		return nerr.Wrapf(nerr.ErrTransactionMisuse, "wal: unknown transaction %d", txID)
	}
	delete(w.pending, txID)
	w.mu.Unlock()

	EncodeFrame(b, FrameCommit, nil)
	frames := b.Bytes()

	h := w.cf.Header()
	regionOff, regionLen, head, tail := h.ActiveWal()
	if tail+uint64(len(frames)) > regionLen {
		return nerr.Wrapf(nerr.ErrWalFull, "wal: active region full (tail=%d len=%d cap=%d)", tail, len(frames), regionLen)
	}

	if err := w.cf.WriteAt(int64(regionOff+tail), frames); err != nil {
		return err
	}
	// frames is now durably copied into the container's page cache; the
	// backing array can be recycled immediately.
	pool.PutByteBuffer(frames)
	if w.mode == SyncFull {
		if err := w.cf.Sync(); err != nil {
			return err
		}
	} else if w.mode == SyncNormal {
		go w.cf.Sync()
	}

	h.SetActiveWal(head, tail+uint64(len(frames)))
	return w.cf.Flip(h)
}

// Replay parses both WAL regions — the quiescent region first (it holds the
// older, pre-switch frames), then the active region — folding every
// transaction up to its last complete COMMIT into sink. A region's trailing
// bytes after the last COMMIT (an in-flight transaction at crash time) are
// discarded. Replay returns the highest NodeID/LabelID/ETypeID/PropKeyID
// frame it observed, so the engine can fast-forward its ID counters past
// them even if the header's counters were not flushed before a crash.
type ReplayResult struct {
	MaxNodeID    model.NodeID
	MaxLabelID   model.LabelID
	MaxEtypeID   model.ETypeID
	MaxPropKeyID model.PropKeyID
}

func (w *WAL) Replay(sink Sink) (ReplayResult, error) {
	var result ReplayResult
	h := w.cf.Header()

	qOff, _, _, qTail := h.QuiescentWal()
	if err := w.replayRegion(qOff, qTail, sink, &result); err != nil {
		return result, err
	}
	aOff, _, _, aTail := h.ActiveWal()
	if err := w.replayRegion(aOff, aTail, sink, &result); err != nil {
		return result, err
	}
	return result, nil
}

func (w *WAL) replayRegion(regionOff, tail uint64, sink Sink, result *ReplayResult) error {
	if tail == 0 {
		return nil
	}
	buf, err := w.cf.ReadAt(int64(regionOff), int(tail))
	if err != nil {
		return err
	}

	type rawFrame struct {
		typ     FrameType
		payload []byte
	}
	var pendingFrames []rawFrame
	pos := 0
	for pos < len(buf) {
		typ, payload, consumed, ok := DecodeFrame(buf[pos:])
		if !ok {
			break // truncated tail: incomplete final transaction, discard
		}
		if typ == FrameCommit {
			for _, fr := range pendingFrames {
				applyFrame(sink, fr.typ, fr.payload, result)
			}
			pendingFrames = pendingFrames[:0]
		} else {
			pendingFrames = append(pendingFrames, rawFrame{typ, payload})
		}
		pos += consumed
	}
	return nil
}

func applyFrame(sink Sink, typ FrameType, payload []byte, result *ReplayResult) {
	switch typ {
	case FrameDefineLabel:
		id, name := decodeNameFrame(payload)
		sink.DefineLabel(model.LabelID(id), name)
		bumpLabel(result, model.LabelID(id))
	case FrameDefineEtype:
		id, name := decodeNameFrame(payload)
		sink.DefineEtype(model.ETypeID(id), name)
		bumpEtype(result, model.ETypeID(id))
	case FrameDefinePropKey:
		id, name := decodeNameFrame(payload)
		sink.DefinePropKey(model.PropKeyID(id), name)
		bumpPropKey(result, model.PropKeyID(id))
	case FrameCreateNode:
		id, key, labels, props, ok := decodeCreateNodeFrame(payload)
		if !ok {
			return
		}
		sink.CreateNode(id, key, labels, props)
		bumpNode(result, id)
	case FrameDeleteNode:
		id, key := decodeDeleteNodeFrame(payload)
		sink.DeleteNode(id, key)
	case FrameSetNodeProp:
		id, key, val, ok := decodeNodePropFrame(payload)
		if !ok {
			return
		}
		sink.SetNodeProp(id, key, val)
	case FrameDelNodeProp:
		id, key := decodeNodeIDPropKeyFrame(payload)
		sink.DelNodeProp(id, key)
	case FrameAddNodeLabel:
		id, label := decodeNodeLabelFrame(payload)
		sink.AddNodeLabel(id, label)
		bumpLabel(result, label)
	case FrameRemoveNodeLabel:
		id, label := decodeNodeLabelFrame(payload)
		sink.RemoveNodeLabel(id, label)
	case FrameAddEdge:
		e := decodeEdgeFrame(payload)
		sink.AddOutEdge(e.Src, e.Etype, e.Dst)
	case FrameRemoveEdge:
		e := decodeEdgeFrame(payload)
		sink.RemoveOutEdge(e.Src, e.Etype, e.Dst)
	case FrameSetEdgeProp:
		e, key, val, ok := decodeEdgePropFrame(payload)
		if !ok {
			return
		}
		sink.SetEdgeProp(e, key, val)
	case FrameDelEdgeProp:
		e, key := decodeEdgePropKeyFrame(payload)
		sink.DelEdgeProp(e, key)
	case FrameSetNodeVector:
		id, key, v := decodeNodeVectorFrame(payload)
		sink.SetNodeVector(id, key, v)
	case FrameDelNodeVector:
		id, key, _ := decodeNodeVectorFrame(payload)
		sink.DeleteNodeVector(id, key)
	case FrameSealFragment, FrameCompactFragments:
		// No-op: see the FrameSealFragment doc comment in frame.go.
	}
}

func bumpNode(r *ReplayResult, id model.NodeID) {
	if id > r.MaxNodeID {
		r.MaxNodeID = id
	}
}
func bumpLabel(r *ReplayResult, id model.LabelID) {
	if id > r.MaxLabelID {
		r.MaxLabelID = id
	}
}
func bumpEtype(r *ReplayResult, id model.ETypeID) {
	if id > r.MaxEtypeID {
		r.MaxEtypeID = id
	}
}
func bumpPropKey(r *ReplayResult, id model.PropKeyID) {
	if id > r.MaxPropKeyID {
		r.MaxPropKeyID = id
	}
}

// Checkpoint implements spec §4.6's six-step procedure. build produces the
// merged snapshot bytes from the current snapshot plus the frozen region's
// content (normally pkg/snapshot.Build fed by the engine's merged view).
// Checkpoint returns once the new header is durable; on any failure before
// the final header flip, the prior snapshot and a non-empty WAL remain
// authoritative.
func (w *WAL) Checkpoint(build func() []byte) error {
	w.mu.Lock()
	h := w.cf.Header()
	w.mu.Unlock()

	frozenRegion := h.ActiveWalRegion
	newActive := h.OtherWalRegion()

	snapshotBytes := build()
	offset, err := w.cf.AppendFree(snapshotBytes)
	if err != nil {
		return err
	}

	newHeader := h.Clone()
	oldSnapOff, oldSnapLen := newHeader.ActiveSnapshotOffset, newHeader.ActiveSnapshotLength
	newHeader.ActiveSnapshotOffset = offset
	newHeader.ActiveSnapshotLength = uint64(len(snapshotBytes))
	newHeader.ActiveSnapshotGen++
	newHeader.ActiveWalRegion = newActive
	if frozenRegion == 0 {
		newHeader.Wal0Head, newHeader.Wal0Tail = 0, 0
	} else {
		newHeader.Wal1Head, newHeader.Wal1Tail = 0, 0
	}

	if err := w.cf.Flip(newHeader); err != nil {
		return err
	}

	if oldSnapLen > 0 {
		w.cf.Reclaim(oldSnapOff, oldSnapLen)
	}
	return nil
}
