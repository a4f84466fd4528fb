package engine

import (
	"sync"

	"github.com/nodalgraph/nodal/pkg/delta"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
	"github.com/nodalgraph/nodal/pkg/snapshot"
)

// schemaRegistry is the in-memory mirror of the three append-only
// ID<->name tables (spec invariant 6: dense from 1, 0 reserved), merging a
// snapshot's resolved names with any pending registrations the delta has
// buffered since the last checkpoint.
type schemaRegistry struct {
	mu sync.RWMutex

	labelNames map[model.LabelID]string
	labelIDs   map[string]model.LabelID
	etypeNames map[model.ETypeID]string
	etypeIDs   map[string]model.ETypeID
	propNames  map[model.PropKeyID]string
	propIDs    map[string]model.PropKeyID
}

func newSchemaRegistry(snap *snapshot.Reader, dl *delta.Delta) *schemaRegistry {
	r := &schemaRegistry{
		labelNames: make(map[model.LabelID]string),
		labelIDs:   make(map[string]model.LabelID),
		etypeNames: make(map[model.ETypeID]string),
		etypeIDs:   make(map[string]model.ETypeID),
		propNames:  make(map[model.PropKeyID]string),
		propIDs:    make(map[string]model.PropKeyID),
	}
	if snap != nil {
		s := snap.Schema()
		for id, name := range s.Labels {
			r.labelNames[id] = name
			r.labelIDs[name] = id
		}
		for id, name := range s.Etypes {
			r.etypeNames[id] = name
			r.etypeIDs[name] = id
		}
		for id, name := range s.PropKeys {
			r.propNames[id] = name
			r.propIDs[name] = id
		}
	}
	for id, name := range dl.NewLabels() {
		r.labelNames[id] = name
		r.labelIDs[name] = id
	}
	for id, name := range dl.NewEtypes() {
		r.etypeNames[id] = name
		r.etypeIDs[name] = id
	}
	for id, name := range dl.NewPropKeys() {
		r.propNames[id] = name
		r.propIDs[name] = id
	}
	return r
}

// rebuild replaces the registry's contents with the freshly checkpointed
// snapshot's schema, called once a checkpoint retires the delta's pending
// registrations into the new snapshot.
func (r *schemaRegistry) rebuild(snap *snapshot.Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labelNames = make(map[model.LabelID]string)
	r.labelIDs = make(map[string]model.LabelID)
	r.etypeNames = make(map[model.ETypeID]string)
	r.etypeIDs = make(map[string]model.ETypeID)
	r.propNames = make(map[model.PropKeyID]string)
	r.propIDs = make(map[string]model.PropKeyID)
	s := snap.Schema()
	for id, name := range s.Labels {
		r.labelNames[id] = name
		r.labelIDs[name] = id
	}
	for id, name := range s.Etypes {
		r.etypeNames[id] = name
		r.etypeIDs[name] = id
	}
	for id, name := range s.PropKeys {
		r.propNames[id] = name
		r.propIDs[name] = id
	}
}

// GetOrCreateLabel resolves name to its LabelID, registering a new one (and
// logging+applying it as its own durable, auto-committed operation) if name
// has not been seen before. Schema registration never conflicts under the
// single-writer discipline, so it bypasses the Txn/MVCC machinery entirely.
func (db *DB) GetOrCreateLabel(name string) (model.LabelID, error) {
	if db.opts.ReadOnly {
		return 0, nerr.Wrapf(nerr.ErrReadOnly, "engine: read-only")
	}
	db.schema.mu.Lock()
	if id, ok := db.schema.labelIDs[name]; ok {
		db.schema.mu.Unlock()
		return id, nil
	}
	db.schema.mu.Unlock()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	db.schema.mu.Lock()
	if id, ok := db.schema.labelIDs[name]; ok {
		db.schema.mu.Unlock()
		return id, nil
	}
	db.schema.mu.Unlock()

	db.idMu.Lock()
	id := db.nextLabelID
	db.nextLabelID++
	db.idMu.Unlock()

	txID := db.wal.Begin()
	if err := db.wal.LogDefineLabel(txID, id, name); err != nil {
		db.wal.Rollback(txID)
		return 0, err
	}
	if err := db.wal.Commit(txID); err != nil {
		return 0, err
	}
	db.delta.DefineLabel(id, name)
	db.schema.mu.Lock()
	db.schema.labelNames[id] = name
	db.schema.labelIDs[name] = id
	db.schema.mu.Unlock()
	return id, nil
}

// GetOrCreateEtype resolves name to its ETypeID, registering a new one if
// necessary.
func (db *DB) GetOrCreateEtype(name string) (model.ETypeID, error) {
	if db.opts.ReadOnly {
		return 0, nerr.Wrapf(nerr.ErrReadOnly, "engine: read-only")
	}
	db.schema.mu.Lock()
	if id, ok := db.schema.etypeIDs[name]; ok {
		db.schema.mu.Unlock()
		return id, nil
	}
	db.schema.mu.Unlock()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	db.schema.mu.Lock()
	if id, ok := db.schema.etypeIDs[name]; ok {
		db.schema.mu.Unlock()
		return id, nil
	}
	db.schema.mu.Unlock()

	db.idMu.Lock()
	id := db.nextEtypeID
	db.nextEtypeID++
	db.idMu.Unlock()

	txID := db.wal.Begin()
	if err := db.wal.LogDefineEtype(txID, id, name); err != nil {
		db.wal.Rollback(txID)
		return 0, err
	}
	if err := db.wal.Commit(txID); err != nil {
		return 0, err
	}
	db.delta.DefineEtype(id, name)
	db.schema.mu.Lock()
	db.schema.etypeNames[id] = name
	db.schema.etypeIDs[name] = id
	db.schema.mu.Unlock()
	return id, nil
}

// GetOrCreatePropKey resolves name to its PropKeyID, registering a new one
// if necessary.
func (db *DB) GetOrCreatePropKey(name string) (model.PropKeyID, error) {
	if db.opts.ReadOnly {
		return 0, nerr.Wrapf(nerr.ErrReadOnly, "engine: read-only")
	}
	db.schema.mu.Lock()
	if id, ok := db.schema.propIDs[name]; ok {
		db.schema.mu.Unlock()
		return id, nil
	}
	db.schema.mu.Unlock()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	db.schema.mu.Lock()
	if id, ok := db.schema.propIDs[name]; ok {
		db.schema.mu.Unlock()
		return id, nil
	}
	db.schema.mu.Unlock()

	db.idMu.Lock()
	id := db.nextPropKeyID
	db.nextPropKeyID++
	db.idMu.Unlock()

	txID := db.wal.Begin()
	if err := db.wal.LogDefinePropKey(txID, id, name); err != nil {
		db.wal.Rollback(txID)
		return 0, err
	}
	if err := db.wal.Commit(txID); err != nil {
		return 0, err
	}
	db.delta.DefinePropKey(id, name)
	db.schema.mu.Lock()
	db.schema.propNames[id] = name
	db.schema.propIDs[name] = id
	db.schema.mu.Unlock()
	return id, nil
}

// LabelName, EtypeName, and PropKeyName resolve a schema ID back to its
// registered name.
func (db *DB) LabelName(id model.LabelID) (string, bool) {
	db.schema.mu.RLock()
	defer db.schema.mu.RUnlock()
	name, ok := db.schema.labelNames[id]
	return name, ok
}

func (db *DB) EtypeName(id model.ETypeID) (string, bool) {
	db.schema.mu.RLock()
	defer db.schema.mu.RUnlock()
	name, ok := db.schema.etypeNames[id]
	return name, ok
}

func (db *DB) PropKeyName(id model.PropKeyID) (string, bool) {
	db.schema.mu.RLock()
	defer db.schema.mu.RUnlock()
	name, ok := db.schema.propNames[id]
	return name, ok
}

// LabelID, EtypeID, and PropKeyID resolve a registered name back to its ID
// without creating one if absent.
func (db *DB) LabelID(name string) (model.LabelID, bool) {
	db.schema.mu.RLock()
	defer db.schema.mu.RUnlock()
	id, ok := db.schema.labelIDs[name]
	return id, ok
}

func (db *DB) EtypeID(name string) (model.ETypeID, bool) {
	db.schema.mu.RLock()
	defer db.schema.mu.RUnlock()
	id, ok := db.schema.etypeIDs[name]
	return id, ok
}

func (db *DB) PropKeyID(name string) (model.PropKeyID, bool) {
	db.schema.mu.RLock()
	defer db.schema.mu.RUnlock()
	id, ok := db.schema.propIDs[name]
	return id, ok
}
