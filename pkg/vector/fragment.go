package vector

import "github.com/nodalgraph/nodal/pkg/model"

// fragment is one dense row-group of a vector index (spec §4.10): a
// row-major f32 matrix sized capacity*dim (capacity is the index's
// FragmentTargetSize in rows), a liveness bitmap, and the
// NodeID<->row-index mapping. Inserts append; deletes only flip the bitmap,
// leaving the row's bytes in place until a compaction rewrites them.
type fragment struct {
	dim      int
	capacity int
	data     []float32
	live     []bool
	nodeOf   []model.NodeID
	rowOf    map[model.NodeID]int
	rows     int // next free row, i.e. number of rows ever inserted
	liveN    int
	sealed   bool
}

func newFragment(dim, capacity int) *fragment {
	return &fragment{
		dim:      dim,
		capacity: capacity,
		data:     make([]float32, 0, dim*capacity),
		live:     make([]bool, 0, capacity),
		nodeOf:   make([]model.NodeID, 0, capacity),
		rowOf:    make(map[model.NodeID]int, capacity),
	}
}

func (f *fragment) full() bool { return f.rows >= f.capacity }

// insert appends vec as a new live row for node. Callers must check full()
// first; insert itself does not check capacity and keeps appending past it.
func (f *fragment) insert(node model.NodeID, vec []float32) int {
	row := f.rows
	f.data = append(f.data, vec...)
	f.live = append(f.live, true)
	f.nodeOf = append(f.nodeOf, node)
	f.rowOf[node] = row
	f.rows++
	f.liveN++
	return row
}

// delete flips node's liveness bit off. Reports false if node has no row in
// this fragment.
func (f *fragment) delete(node model.NodeID) bool {
	row, ok := f.rowOf[node]
	if !ok || !f.live[row] {
		return false
	}
	f.live[row] = false
	delete(f.rowOf, node)
	f.liveN--
	return true
}

func (f *fragment) vectorAt(row int) []float32 {
	return f.data[row*f.dim : (row+1)*f.dim]
}

// forEachLive calls fn for every live row in row order.
func (f *fragment) forEachLive(fn func(node model.NodeID, vec []float32)) {
	for row := 0; row < f.rows; row++ {
		if f.live[row] {
			fn(f.nodeOf[row], f.vectorAt(row))
		}
	}
}
