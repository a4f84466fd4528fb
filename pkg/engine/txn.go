package engine

import (
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/mvcc"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// Txn is a single transaction against a DB. Obtain one with DB.Begin; every
// mutating method logs its operation to the WAL's per-transaction buffer
// immediately (invisible to any other reader until Commit) and defers the
// corresponding delta mutation to Commit time, after the MVCC conflict
// check passes and the WAL frames are durable (spec §4.6/§4.7).
//
// A read-write Txn is exclusive: DB.Begin(false) fails while one is already
// open (spec §5 "write transactions serialize at commit"). Read-only
// transactions never conflict and may run concurrently with the one writer.
type Txn struct {
	db       *DB
	mvccTxn  *mvcc.Txn
	walTxID  uint64
	readOnly bool
	done     bool
	pending  []func()
	touched  []func() // cache invalidations, run alongside pending on commit

	// nodeTouches/edgeTouches record every entity this transaction's own
	// writes have created/deleted, so txView and ListNodes/ListEdges can
	// union in writes the live snap/delta view won't show until Commit
	// applies them.
	nodeTouches []model.NodeID
	edgeTouches []model.Edge
}

// Begin starts a transaction. When readOnly is false, Begin fails with
// nerr.ErrTransactionMisuse if a write transaction is already open, or
// nerr.ErrReadOnly if the DB itself was opened read-only.
func (db *DB) Begin(readOnly bool) (*Txn, error) {
	if !readOnly {
		if db.opts.ReadOnly {
			return nil, nerr.Wrapf(nerr.ErrReadOnly, "engine: database opened read-only")
		}
		db.writeMu.Lock()
		if db.writeTxn != nil {
			db.writeMu.Unlock()
			return nil, nerr.Wrapf(nerr.ErrTransactionMisuse, "engine: a write transaction is already open")
		}
	}

	t := &Txn{db: db, mvccTxn: db.mvccMgr.Begin(), readOnly: readOnly}
	if !readOnly {
		t.walTxID = db.wal.Begin()
		db.writeTxn = t
		db.writeMu.Unlock()
	}
	return t, nil
}

func (t *Txn) requireWritable() error {
	if t.done {
		return nerr.Wrapf(nerr.ErrTransactionMisuse, "engine: transaction already finished")
	}
	if t.readOnly {
		return nerr.Wrapf(nerr.ErrReadOnly, "engine: transaction is read-only")
	}
	return nil
}

func (t *Txn) defer_(apply func(), invalidate func()) {
	t.pending = append(t.pending, apply)
	t.touched = append(t.touched, invalidate)
}

// Commit checks the transaction's write set for conflicts, durably persists
// its buffered WAL frames, then applies every deferred mutation to the
// shared delta and invalidates caches. Read-only transactions skip the WAL
// and delta steps entirely.
func (t *Txn) Commit() error {
	if t.done {
		return nerr.Wrapf(nerr.ErrTransactionMisuse, "engine: transaction already finished")
	}
	if t.readOnly {
		t.mvccTxn.Abort() // a read-only txn never wrote to the write-set stores
		t.done = true
		return nil
	}

	db := t.db
	defer func() {
		db.writeMu.Lock()
		db.writeTxn = nil
		db.writeMu.Unlock()
	}()

	if _, err := t.mvccTxn.Commit(); err != nil {
		db.wal.Rollback(t.walTxID)
		t.done = true
		return err
	}
	if err := db.wal.Commit(t.walTxID); err != nil {
		t.done = true
		return err
	}

	db.mu.Lock()
	for _, apply := range t.pending {
		apply()
	}
	db.mu.Unlock()
	for _, invalidate := range t.touched {
		invalidate()
	}
	t.done = true

	db.maybeAutoCheckpoint()
	return nil
}

// Rollback discards the transaction's buffered WAL frames and write-set
// registrations without touching the delta, since nothing was applied to it
// yet.
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	db := t.db
	if !t.readOnly {
		db.wal.Rollback(t.walTxID)
		db.writeMu.Lock()
		db.writeTxn = nil
		db.writeMu.Unlock()
	}
	t.mvccTxn.Abort()
	t.done = true
}

// CreateNode allocates a new NodeID, logs its creation, and defers the
// delta insert to Commit. The returned ID is valid (and never reused) even
// if the transaction is later rolled back.
func (t *Txn) CreateNode(key string, labels []model.LabelID, props map[model.PropKeyID]model.PropValue) (model.NodeID, error) {
	if err := t.requireWritable(); err != nil {
		return 0, err
	}
	db := t.db
	db.idMu.Lock()
	id := db.nextNodeID
	db.nextNodeID++
	db.idMu.Unlock()

	if key != "" {
		if _, exists := db.delta.Keys().Lookup(key); exists {
			return 0, nerr.Wrapf(nerr.ErrInvalidArgument, "engine: key %q already in use", key)
		}
	}

	if err := db.wal.LogCreateNode(t.walTxID, id, key, labels, props); err != nil {
		return 0, err
	}
	db.nodeWriteSet.Put(t.mvccTxn, id, Node{ID: id, Key: key, Labels: append([]model.LabelID(nil), labels...), Props: copyPropMap(props)})
	t.nodeTouches = append(t.nodeTouches, id)
	t.defer_(func() {
		db.delta.CreateNode(id, key, labels, props)
	}, func() {
		db.invalidateNode(id)
		if db.keyCache != nil && key != "" {
			db.keyCache.Put(key, uint64(id))
		}
	})
	return id, nil
}

// DeleteNode tombstones id. key must be the node's current key (or "" if it
// has none) so the key-index overlay can be updated consistently.
func (t *Txn) DeleteNode(id model.NodeID, key string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogDeleteNode(t.walTxID, id, key); err != nil {
		return err
	}
	db.ensureNodeBaseline(id)
	db.nodeWriteSet.Delete(t.mvccTxn, id)
	t.nodeTouches = append(t.nodeTouches, id)
	t.defer_(func() {
		db.delta.DeleteNode(id, key)
	}, func() {
		db.invalidateNode(id)
		if db.keyCache != nil && key != "" {
			db.keyCache.Invalidate(key)
		}
	})
	return nil
}

// SetNodeProp sets key=val on id.
func (t *Txn) SetNodeProp(id model.NodeID, key model.PropKeyID, val model.PropValue) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogSetNodeProp(t.walTxID, id, key, val); err != nil {
		return err
	}
	db.ensureNodeBaseline(id)
	before, _ := t.txnNode(id)
	after := before
	after.ID = id
	after.Props = copyPropMap(before.Props)
	after.Props[key] = val
	db.nodeWriteSet.Put(t.mvccTxn, id, after)
	t.defer_(func() {
		db.delta.SetNodeProp(id, key, val)
	}, func() {
		db.invalidateNode(id)
	})
	return nil
}

// DelNodeProp removes key from id.
func (t *Txn) DelNodeProp(id model.NodeID, key model.PropKeyID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogDelNodeProp(t.walTxID, id, key); err != nil {
		return err
	}
	db.ensureNodeBaseline(id)
	before, _ := t.txnNode(id)
	after := before
	after.ID = id
	after.Props = copyPropMap(before.Props)
	delete(after.Props, key)
	db.nodeWriteSet.Put(t.mvccTxn, id, after)
	t.defer_(func() {
		db.delta.DelNodeProp(id, key)
	}, func() {
		db.invalidateNode(id)
	})
	return nil
}

// AddNodeLabel and RemoveNodeLabel patch id's label set.
func (t *Txn) AddNodeLabel(id model.NodeID, label model.LabelID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogAddNodeLabel(t.walTxID, id, label); err != nil {
		return err
	}
	db.ensureNodeBaseline(id)
	before, _ := t.txnNode(id)
	after := before
	after.ID = id
	after.Labels = applyLabelPatch(before.Labels, []model.LabelID{label}, nil)
	after.Props = copyPropMap(before.Props)
	db.nodeWriteSet.Put(t.mvccTxn, id, after)
	t.defer_(func() {
		db.delta.AddNodeLabel(id, label)
	}, func() {
		db.invalidateNode(id)
	})
	return nil
}

func (t *Txn) RemoveNodeLabel(id model.NodeID, label model.LabelID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogRemoveNodeLabel(t.walTxID, id, label); err != nil {
		return err
	}
	db.ensureNodeBaseline(id)
	before, _ := t.txnNode(id)
	after := before
	after.ID = id
	after.Labels = applyLabelPatch(before.Labels, nil, []model.LabelID{label})
	after.Props = copyPropMap(before.Props)
	db.nodeWriteSet.Put(t.mvccTxn, id, after)
	t.defer_(func() {
		db.delta.RemoveNodeLabel(id, label)
	}, func() {
		db.invalidateNode(id)
	})
	return nil
}

// AddEdge records src-etype->dst. At most one edge exists per (src, etype,
// dst) triple (spec §3); re-adding one already present is a no-op at apply
// time since delta.AddOutEdge is idempotent for identical triples.
func (t *Txn) AddEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogAddEdge(t.walTxID, src, etype, dst); err != nil {
		return err
	}
	e := model.Edge{Src: src, Etype: etype, Dst: dst}
	db.ensureEdgeBaseline(e)
	before, existed := t.txnEdge(e)
	props := before.props
	if !existed {
		props = map[model.PropKeyID]model.PropValue{}
	}
	db.edgeWriteSet.Put(t.mvccTxn, e, edgeVersion{props: props})
	t.edgeTouches = append(t.edgeTouches, e)
	t.defer_(func() {
		db.delta.AddOutEdge(src, etype, dst)
	}, func() {
		db.invalidateNode(src)
		db.invalidateNode(dst)
		db.invalidateEdge(e)
	})
	return nil
}

// DeleteEdge removes src-etype->dst.
func (t *Txn) DeleteEdge(src model.NodeID, etype model.ETypeID, dst model.NodeID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogRemoveEdge(t.walTxID, src, etype, dst); err != nil {
		return err
	}
	e := model.Edge{Src: src, Etype: etype, Dst: dst}
	db.ensureEdgeBaseline(e)
	db.edgeWriteSet.Delete(t.mvccTxn, e)
	t.edgeTouches = append(t.edgeTouches, e)
	t.defer_(func() {
		db.delta.RemoveOutEdge(src, etype, dst)
	}, func() {
		db.invalidateNode(src)
		db.invalidateNode(dst)
		db.invalidateEdge(e)
	})
	return nil
}

// SetEdgeProp and DelEdgeProp patch an edge's property map.
func (t *Txn) SetEdgeProp(e model.Edge, key model.PropKeyID, val model.PropValue) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogSetEdgeProp(t.walTxID, e, key, val); err != nil {
		return err
	}
	db.ensureEdgeBaseline(e)
	before, _ := t.txnEdge(e)
	props := copyPropMap(before.props)
	props[key] = val
	db.edgeWriteSet.Put(t.mvccTxn, e, edgeVersion{props: props})
	t.defer_(func() {
		db.delta.SetEdgeProp(e, key, val)
	}, func() {
		db.invalidateEdge(e)
	})
	return nil
}

func (t *Txn) DelEdgeProp(e model.Edge, key model.PropKeyID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogDelEdgeProp(t.walTxID, e, key); err != nil {
		return err
	}
	db.ensureEdgeBaseline(e)
	before, _ := t.txnEdge(e)
	props := copyPropMap(before.props)
	delete(props, key)
	db.edgeWriteSet.Put(t.mvccTxn, e, edgeVersion{props: props})
	t.defer_(func() {
		db.delta.DelEdgeProp(e, key)
	}, func() {
		db.invalidateEdge(e)
	})
	return nil
}

// SetNodeVector and DeleteNodeVector forward to the vector store (spec
// §4.5, §4.10): the WAL frame is logged first, and the vector store call is
// deferred to Commit like every other mutation, since pkg/vector's fragment
// store has no concept of uncommitted state. The vector content itself is
// not version-chained.
func (t *Txn) SetNodeVector(id model.NodeID, propKey model.PropKeyID, v []float32) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogSetNodeVector(t.walTxID, id, propKey, v); err != nil {
		return err
	}
	// Vectors live outside Node.Props (applied to pkg/vector at Commit, not
	// version-chained — see the doc comment above), so registering this
	// write just re-puts whatever content id already carries in the write
	// set, to flag it as touched for conflict detection without disturbing
	// that content.
	db.ensureNodeBaseline(id)
	before, _ := t.txnNode(id)
	db.nodeWriteSet.Put(t.mvccTxn, id, before)
	t.defer_(func() {
		db.delta.SetNodeVector(id, propKey, v)
	}, func() {
		db.invalidateNode(id)
	})
	return nil
}

func (t *Txn) DeleteNodeVector(id model.NodeID, propKey model.PropKeyID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	db := t.db
	if err := db.wal.LogDelNodeVector(t.walTxID, id, propKey); err != nil {
		return err
	}
	db.ensureNodeBaseline(id)
	before, _ := t.txnNode(id)
	db.nodeWriteSet.Put(t.mvccTxn, id, before)
	t.defer_(func() {
		db.delta.DeleteNodeVector(id, propKey)
	}, func() {
		db.invalidateNode(id)
	})
	return nil
}
