// Package engine wires every storage-engine layer — container, WAL,
// snapshot, delta, MVCC, cache, graph, vector — behind a single façade type,
// DB, the way the teacher's pkg/nornicdb/db.go sits in front of its
// pkg/storage engine. DB owns the container file and is the only type
// application code using this module needs to import directly.
package engine

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nodalgraph/nodal/pkg/cache"
	"github.com/nodalgraph/nodal/pkg/config"
	"github.com/nodalgraph/nodal/pkg/container"
	"github.com/nodalgraph/nodal/pkg/delta"
	"github.com/nodalgraph/nodal/pkg/keyindex"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/mvcc"
	"github.com/nodalgraph/nodal/pkg/snapshot"
	"github.com/nodalgraph/nodal/pkg/vector"
	"github.com/nodalgraph/nodal/pkg/wal"
)

// DB is the embedded database handle returned by Open. All exported methods
// are safe for concurrent use unless documented otherwise.
type DB struct {
	opts *config.Options

	cf  *container.File
	wal *wal.WAL

	// mu guards snap/delta swap (a checkpoint replaces both atomically) and
	// every read against them; it is not the write-transaction lock.
	mu    sync.RWMutex
	snap  *snapshot.Reader // nil before the first checkpoint
	delta *delta.Delta

	vectors *vector.Store

	// mvccMgr assigns timestamps; nodeWriteSet/edgeWriteSet version-chain the
	// actual content (not just write-set membership) of every node/edge a
	// transaction has ever touched, so reads can be pinned to a transaction's
	// startTs (spec invariant 10, §4.7 visibility) instead of only reading
	// live snap/delta state. See ensureNodeBaseline/ensureEdgeBaseline and
	// Txn's read methods in mvccread.go.
	mvccMgr      *mvcc.Manager
	nodeWriteSet *mvcc.Store[model.NodeID, Node]
	edgeWriteSet *mvcc.Store[model.Edge, edgeVersion]

	schema *schemaRegistry

	idMu          sync.Mutex
	nextNodeID    model.NodeID
	nextLabelID   model.LabelID
	nextEtypeID   model.ETypeID
	nextPropKeyID model.PropKeyID

	propCache  *cache.PropCache
	travCache  *cache.TraversalCache
	queryCache *cache.QueryCache
	keyCache   *cache.KeyLookupCache

	writeMu  sync.Mutex
	writeTxn *Txn

	bgCheckpoint chan struct{}
	bgDone       chan struct{}

	gcMu       sync.Mutex
	gcRuns     uint64
	lastGCTime time.Time

	closed bool
}

// Open opens (or creates, per opts.CreateIfMissing) the container at path
// and returns a ready DB: the active snapshot parsed, both WAL regions
// replayed into the delta, and every vector index rehydrated from the
// snapshot's vector manifest.
func Open(path string, opts *config.Options) (*DB, error) {
	if opts == nil {
		opts = config.Defaults()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cf, err := container.Open(path, opts.CreateIfMissing, opts.PageSize, opts.WalSize)
	if err != nil {
		return nil, err
	}

	var snap *snapshot.Reader
	if buf := cf.Snapshot(); len(buf) > 0 {
		snap, err = snapshot.Parse(buf)
		if err != nil {
			cf.Close()
			return nil, err
		}
	}

	vectors := vector.NewStore()
	if snap != nil {
		if err := rehydrateVectors(cf, snap, vectors); err != nil {
			cf.Close()
			return nil, err
		}
	}

	var disk keyindex.DiskLookup
	if snap != nil {
		disk = snap
	}
	dl := delta.New(disk, vectors)

	w := wal.Open(cf, toWalSyncMode(opts.SyncMode))
	replay, err := w.Replay(dl)
	if err != nil {
		cf.Close()
		return nil, err
	}
	log.Printf("engine: wal recovery complete (max node id %d)", replay.MaxNodeID)

	db := &DB{
		opts:         opts,
		cf:           cf,
		wal:          w,
		snap:         snap,
		delta:        dl,
		vectors:      vectors,
		mvccMgr:      mvcc.NewManager(),
		schema:       newSchemaRegistry(snap, dl),
		bgCheckpoint: make(chan struct{}, 1),
		bgDone:       make(chan struct{}),
	}
	db.nodeWriteSet = mvcc.NewStore[model.NodeID, Node](db.mvccMgr)
	db.edgeWriteSet = mvcc.NewStore[model.Edge, edgeVersion](db.mvccMgr)

	h := cf.Header()
	db.nextNodeID = model.NodeID(h.NextNodeID)
	if replay.MaxNodeID+1 > db.nextNodeID {
		db.nextNodeID = replay.MaxNodeID + 1
	}
	db.nextLabelID = model.LabelID(h.NextLabelID)
	if replay.MaxLabelID+1 > db.nextLabelID {
		db.nextLabelID = replay.MaxLabelID + 1
	}
	db.nextEtypeID = model.ETypeID(h.NextEtypeID)
	if replay.MaxEtypeID+1 > db.nextEtypeID {
		db.nextEtypeID = replay.MaxEtypeID + 1
	}
	db.nextPropKeyID = model.PropKeyID(h.NextPropkeyID)
	if replay.MaxPropKeyID+1 > db.nextPropKeyID {
		db.nextPropKeyID = replay.MaxPropKeyID + 1
	}

	if opts.CacheEnabled {
		db.propCache = cache.NewPropCache(opts.CacheMaxNodeProps, opts.CacheMaxEdgeProps)
		db.travCache = cache.NewTraversalCache(opts.CacheMaxTraversalEntries, 0)
		db.queryCache = cache.NewQueryCache(opts.CacheMaxQueryEntries, time.Duration(opts.CacheQueryTtlMs)*time.Millisecond)
		db.keyCache = cache.NewKeyLookupCache(opts.CacheMaxKeyLookup)
	}

	if opts.AutoCheckpoint && opts.BackgroundCheckpoint {
		go db.backgroundCheckpointLoop()
	}

	return db, nil
}

// rehydrateVectors reconstructs every vector index declared in snap's
// manifest, reading each fragment's bytes back from the container file at
// the offsets the prior checkpoint recorded.
func rehydrateVectors(cf *container.File, snap *snapshot.Reader, store *vector.Store) error {
	for _, manifest := range snap.Vectors() {
		cfg := vector.IndexConfig{
			Dim:                manifest.Dim,
			Metric:             vector.Metric(manifest.Metric),
			Normalized:         manifest.Normalized,
			RowGroupSize:       manifest.RowGroupSize,
			FragmentTargetSize: manifest.FragmentTargetSize,
		}
		blobs := make([][]byte, len(manifest.Fragments))
		compressed := make([]bool, len(manifest.Fragments))
		for i, ref := range manifest.Fragments {
			buf, err := cf.ReadAt(int64(ref.Offset), int(ref.Length))
			if err != nil {
				return err
			}
			blobs[i] = buf
			compressed[i] = ref.Sealed
		}
		if err := store.LoadIndex(manifest.PropKey, cfg, blobs, compressed); err != nil {
			return err
		}
	}
	return nil
}

func toWalSyncMode(m config.SyncMode) wal.SyncMode {
	switch m {
	case config.SyncNormal:
		return wal.SyncNormal
	case config.SyncOff:
		return wal.SyncOff
	default:
		return wal.SyncFull
	}
}

// Close stops the background checkpoint worker (if running) and closes the
// underlying container file. Close is not safe to call concurrently with an
// in-flight transaction.
func (db *DB) Close() error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	if db.opts.BackgroundCheckpoint {
		close(db.bgDone)
	}
	return db.cf.Close()
}

func (db *DB) invalidateNode(id model.NodeID) {
	if db.propCache != nil {
		db.propCache.InvalidateNode(id)
	}
	if db.travCache != nil {
		db.travCache.InvalidateNode(id)
	}
	if db.queryCache != nil {
		db.queryCache.Clear()
	}
}

func (db *DB) invalidateEdge(e model.Edge) {
	if db.propCache != nil {
		db.propCache.InvalidateEdge(e)
	}
	if db.travCache != nil {
		db.travCache.InvalidateEdge(e.Src, e.Etype, e.Dst)
	}
	if db.queryCache != nil {
		db.queryCache.Clear()
	}
}

// sortedNodeIDs is a small helper used by stats/list operations that need a
// deterministic node ordering.
func sortedNodeIDs(ids []model.NodeID) []model.NodeID {
	out := append([]model.NodeID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
