package vector

import (
	"sync"

	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// Stats is the per-index slice of the stats() surface (spec §6.3).
type Stats struct {
	PropKey        model.PropKeyID
	Dim            uint32
	Metric         Metric
	LiveVectors    int
	FragmentCount  int
	SealedFragment int
	IVFTrained     bool
	PQTrained      bool
}

// Store owns every vector index, one per PropKeyID, and is the concrete
// delta.VectorIntentSink the engine wires into pkg/delta.New so that
// replayed SetNodeVector/DeleteNodeVector WAL frames land here (spec §4.5,
// §4.10).
type Store struct {
	mu      sync.RWMutex
	indexes map[model.PropKeyID]*Index
}

// NewStore returns a Store with no indexes; createVectorIndex populates one
// per PropKeyID as schemas declare vector properties.
func NewStore() *Store {
	return &Store{indexes: make(map[model.PropKeyID]*Index)}
}

// CreateIndex declares a vector index for propKey. Returns
// nerr.ErrInvalidArgument if one already exists.
func (s *Store) CreateIndex(propKey model.PropKeyID, cfg IndexConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indexes[propKey]; exists {
		return nerr.Wrapf(nerr.ErrInvalidArgument, "vector index already exists for propkey %d", propKey)
	}
	s.indexes[propKey] = NewIndex(cfg)
	return nil
}

func (s *Store) index(propKey model.PropKeyID) (*Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indexes[propKey]
	if !ok {
		return nil, nerr.Wrapf(nerr.ErrInvalidArgument, "no vector index for propkey %d", propKey)
	}
	return ix, nil
}

// SetNodeVector implements delta.VectorIntentSink: set or replace node's
// vector under propKey.
func (s *Store) SetNodeVector(node model.NodeID, propKey model.PropKeyID, v []float32) error {
	ix, err := s.index(propKey)
	if err != nil {
		return err
	}
	return ix.Insert(node, v)
}

// DeleteNodeVector implements delta.VectorIntentSink.
func (s *Store) DeleteNodeVector(node model.NodeID, propKey model.PropKeyID) error {
	ix, err := s.index(propKey)
	if err != nil {
		return err
	}
	return ix.Delete(node)
}

// GetNodeVector returns node's current vector under propKey.
func (s *Store) GetNodeVector(propKey model.PropKeyID, node model.NodeID) ([]float32, error) {
	ix, err := s.index(propKey)
	if err != nil {
		return nil, err
	}
	v, ok := ix.Get(node)
	if !ok {
		return nil, nerr.Wrapf(nerr.ErrNotFound, "no vector for node %d", node)
	}
	return v, nil
}

// Search runs a k-NN query against propKey's index.
func (s *Store) Search(propKey model.PropKeyID, query []float32, k int, opts SearchOptions) ([]Result, error) {
	ix, err := s.index(propKey)
	if err != nil {
		return nil, err
	}
	return ix.Search(query, k, opts)
}

// BuildIndex trains propKey's IVF/PQ side structures from its current live
// vectors.
func (s *Store) BuildIndex(propKey model.PropKeyID) error {
	ix, err := s.index(propKey)
	if err != nil {
		return err
	}
	return ix.BuildIndex()
}

// Compact fuses propKey's fragments, discarding tombstoned rows.
func (s *Store) Compact(propKey model.PropKeyID) (before, after int, err error) {
	ix, err := s.index(propKey)
	if err != nil {
		return 0, 0, err
	}
	b, a := ix.Compact()
	return b, a, nil
}

// DrainSealed returns and clears propKey's pending seal events.
func (s *Store) DrainSealed(propKey model.PropKeyID) ([]int, error) {
	ix, err := s.index(propKey)
	if err != nil {
		return nil, err
	}
	return ix.DrainSealed(), nil
}

// PropKeys returns every declared vector propkey, for the checkpointer to
// iterate when assembling a snapshot's vector manifest section.
func (s *Store) PropKeys() []model.PropKeyID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PropKeyID, 0, len(s.indexes))
	for k := range s.indexes {
		out = append(out, k)
	}
	return out
}

// ExportFragments returns propKey's fragments encoded for persistence.
func (s *Store) ExportFragments(propKey model.PropKeyID) ([]FragmentBlob, error) {
	ix, err := s.index(propKey)
	if err != nil {
		return nil, err
	}
	return ix.ExportFragments(), nil
}

// LoadIndex declares propKey with cfg and replaces its fragment chain with
// the decoded contents of blobs, used when reopening a container whose
// snapshot already carries a vector manifest for this propkey. compressed[i]
// marks which blobs need zstd decompression (sealed fragments written by a
// prior ExportFragments).
func (s *Store) LoadIndex(propKey model.PropKeyID, cfg IndexConfig, blobs [][]byte, compressed []bool) error {
	s.mu.Lock()
	ix, exists := s.indexes[propKey]
	if !exists {
		ix = NewIndex(cfg)
		s.indexes[propKey] = ix
	}
	s.mu.Unlock()
	return ix.LoadFragments(blobs, compressed)
}

// Stats reports every index's live counters for the stats() surface.
func (s *Store) Stats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stats, 0, len(s.indexes))
	for propKey, ix := range s.indexes {
		ix.mu.RLock()
		sealed := 0
		for _, f := range ix.fragments {
			if f.sealed {
				sealed++
			}
		}
		out = append(out, Stats{
			PropKey:        propKey,
			Dim:            ix.cfg.Dim,
			Metric:         ix.cfg.Metric,
			LiveVectors:    len(ix.byNode),
			FragmentCount:  len(ix.fragments),
			SealedFragment: sealed,
			IVFTrained:     ix.ivf != nil && ix.ivf.trained,
			PQTrained:      ix.pq != nil && ix.pq.trained,
		})
		ix.mu.RUnlock()
	}
	return out
}
