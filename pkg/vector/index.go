package vector

import (
	"container/heap"
	"sync"

	simvec "github.com/nodalgraph/nodal/pkg/math/vector"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// Result is one ranked hit of a vector search: Node and its Score, always
// oriented so that a higher Score is a better match regardless of metric
// (cosine and dot similarity are used as-is; Euclidean is converted via the
// teacher's 1/(1+distance) similarity so all three metrics sort the same
// way).
type Result struct {
	Node  model.NodeID
	Score float64
}

// SearchMode selects which algorithm serves a query.
type SearchMode int

const (
	// ModeAuto picks PQ if trained, else IVF if trained, else brute force.
	ModeAuto SearchMode = iota
	ModeBruteForce
	ModeIVF
	ModeIVFPQ
)

// SearchOptions is the search(query, {k, nProbe?, threshold?}) argument
// (spec §6.2).
type SearchOptions struct {
	Mode   SearchMode
	NProbe int // overrides the trained IVFConfig.NProbe when > 0
}

type location struct {
	fragment int
	row      int
}

// Index holds every live vector for one PropKeyID across its fragment chain,
// plus any trained IVF/PQ side structures.
type Index struct {
	mu  sync.RWMutex
	cfg IndexConfig

	fragments []*fragment
	byNode    map[model.NodeID]location

	sealedEvents []int // fragment indices sealed since the last DrainSealed

	ivf *ivfState
	pq  *pqState
}

// NewIndex constructs an index for a freshly created vector propkey.
func NewIndex(cfg IndexConfig) *Index {
	cfg.fillDefaults()
	return &Index{
		cfg:    cfg,
		byNode: make(map[model.NodeID]location),
	}
}

func (ix *Index) Config() IndexConfig {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.cfg
}

// Insert sets node's vector, appending to (or replacing within) the open
// fragment. A vector already present is deleted from its old row first —
// fragments only grow, so updates always land in the current open fragment.
func (ix *Index) Insert(node model.NodeID, vec []float32) error {
	if err := checkDim(ix.cfg, vec); err != nil {
		return err
	}
	var stored []float32
	if ix.cfg.Normalized {
		stored = simvec.Normalize(vec)
	} else {
		stored = append([]float32(nil), vec...)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if loc, ok := ix.byNode[node]; ok {
		ix.fragments[loc.fragment].delete(node)
		delete(ix.byNode, node)
	}

	open := ix.openFragmentLocked()
	row := open.insert(node, stored)
	fragIdx := len(ix.fragments) - 1
	ix.byNode[node] = location{fragment: fragIdx, row: row}

	if open.full() {
		open.sealed = true
		ix.sealedEvents = append(ix.sealedEvents, fragIdx)
	}
	return nil
}

func (ix *Index) openFragmentLocked() *fragment {
	if n := len(ix.fragments); n > 0 && !ix.fragments[n-1].sealed {
		return ix.fragments[n-1]
	}
	f := newFragment(int(ix.cfg.Dim), int(ix.cfg.FragmentTargetSize))
	ix.fragments = append(ix.fragments, f)
	return f
}

// Delete removes node's vector. Returns nerr.ErrNotFound if it has none.
func (ix *Index) Delete(node model.NodeID) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	loc, ok := ix.byNode[node]
	if !ok {
		return nerr.Wrapf(nerr.ErrNotFound, "no vector for node %d", node)
	}
	ix.fragments[loc.fragment].delete(node)
	delete(ix.byNode, node)
	return nil
}

// Get returns a copy of node's current vector.
func (ix *Index) Get(node model.NodeID) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	loc, ok := ix.byNode[node]
	if !ok {
		return nil, false
	}
	v := ix.fragments[loc.fragment].vectorAt(loc.row)
	return append([]float32(nil), v...), true
}

// Len reports the number of live vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byNode)
}

// DrainSealed returns the fragment indices sealed since the last call and
// clears the pending list. A seal is visible as soon as Insert fills the
// fragment; the engine does not drain these events and writes no
// SEAL_FRAGMENT WAL record.
func (ix *Index) DrainSealed() []int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := ix.sealedEvents
	ix.sealedEvents = nil
	return out
}

// Compact fuses every fragment's live rows into a fresh set of fragments,
// discarding tombstoned rows. Returns the fragment count before and after.
// The engine's callers write no COMPACT_FRAGMENTS WAL record for it.
func (ix *Index) Compact() (before, after int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	before = len(ix.fragments)
	capacity := int(ix.cfg.FragmentTargetSize)
	var fresh []*fragment
	byNode := make(map[model.NodeID]location, len(ix.byNode))

	cur := newFragment(int(ix.cfg.Dim), capacity)
	fresh = append(fresh, cur)
	for _, f := range ix.fragments {
		f.forEachLive(func(node model.NodeID, vec []float32) {
			if cur.full() {
				cur.sealed = true
				cur = newFragment(int(ix.cfg.Dim), capacity)
				fresh = append(fresh, cur)
			}
			row := cur.insert(node, vec)
			byNode[node] = location{fragment: len(fresh) - 1, row: row}
		})
	}

	ix.fragments = fresh
	ix.byNode = byNode
	ix.sealedEvents = nil
	after = len(fresh)
	return before, after
}

// BuildIndex trains the configured IVF (and, if configured, IVF-PQ) side
// structures from the current set of live vectors (spec §6.2's buildIndex
// op). A nil IVFConfig means the index stays brute-force-only.
func (ix *Index) BuildIndex() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.cfg.IVF == nil {
		return nerr.Wrapf(nerr.ErrInvalidArgument, "index has no ivf configuration")
	}
	if err := ix.trainIVFLocked(); err != nil {
		return err
	}
	if ix.cfg.PQ != nil {
		if err := ix.trainPQLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Search dispatches to the requested algorithm, falling back to brute force
// when the requested trained structure does not exist.
func (ix *Index) Search(query []float32, k int, opts SearchOptions) ([]Result, error) {
	if err := checkDim(ix.cfg, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	q := query
	if ix.cfg.Normalized {
		q = simvec.Normalize(query)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	mode := opts.Mode
	if mode == ModeAuto {
		switch {
		case ix.pq != nil && ix.pq.trained:
			mode = ModeIVFPQ
		case ix.ivf != nil && ix.ivf.trained:
			mode = ModeIVF
		default:
			mode = ModeBruteForce
		}
	}

	switch mode {
	case ModeIVFPQ:
		if ix.pq != nil && ix.pq.trained {
			return ix.searchPQLocked(q, k, opts)
		}
		fallthrough
	case ModeIVF:
		if ix.ivf != nil && ix.ivf.trained {
			return ix.searchIVFLocked(q, k, opts)
		}
		fallthrough
	default:
		return ix.bruteForceLocked(q, k)
	}
}

func (ix *Index) score(a, b []float32) float64 {
	switch ix.cfg.Metric {
	case Euclidean:
		return simvec.EuclideanSimilarity(a, b)
	case Dot:
		return simvec.DotProduct(a, b)
	default:
		return simvec.CosineSimilarity(a, b)
	}
}

// bruteForceLocked iterates every live row across every fragment, keeping
// the top k via a min-heap keyed on score — ground truth for small stores
// (spec §4.10), grounded on pkg/graph/dijkstra.go's container/heap shape.
func (ix *Index) bruteForceLocked(q []float32, k int) ([]Result, error) {
	h := &resultHeap{}
	heap.Init(h)
	for _, f := range ix.fragments {
		f.forEachLive(func(node model.NodeID, vec []float32) {
			s := ix.score(q, vec)
			if h.Len() < k {
				heap.Push(h, Result{Node: node, Score: s})
			} else if h.Len() > 0 && s > (*h)[0].Score {
				heap.Pop(h)
				heap.Push(h, Result{Node: node, Score: s})
			}
		})
	}
	return h.sorted(), nil
}

// resultHeap is a min-heap on Score, used to keep the top-k highest scores
// seen so far while discarding the rest in O(log k) per candidate.
type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// sorted drains the heap, leaving it empty, into descending-score order:
// each heap.Pop yields the lowest remaining score, so filling the result
// from the back yields descending order.
func (h *resultHeap) sorted() []Result {
	n := h.Len()
	out := make([]Result, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Result)
	}
	return out
}
