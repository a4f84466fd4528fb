package vector

import (
	"container/heap"
	"math"

	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// pqState is the trained product-quantization side-structure (spec §4.10):
// the vector space is split into subCount equal subspaces, each with its own
// codebook of centroidsPerSub entries trained on residuals-to-centroid, and
// every live vector is encoded as one codebook index per subspace.
type pqState struct {
	subCount int
	subDim   int
	// codebooks[s][c] is the subDim-wide centroid c of subspace s.
	codebooks [][][]float32
	codes     map[model.NodeID][]byte
	trained   bool
}

// trainPQLocked trains subspace codebooks on the residuals of every live
// vector relative to its IVF cluster centroid, and encodes every live
// vector. Requires IVF to already be trained, since residual reconstruction
// is additive on top of the assigned cluster centroid. Callers hold ix.mu
// for writing.
func (ix *Index) trainPQLocked() error {
	if ix.ivf == nil || !ix.ivf.trained {
		return nerr.Wrapf(nerr.ErrInvalidArgument, "pq training requires a trained ivf index")
	}
	cfg := ix.cfg.PQ
	dim := int(ix.cfg.Dim)
	if dim%cfg.SubspaceCount != 0 {
		return nerr.Wrapf(nerr.ErrInvalidArgument, "dim %d not divisible by subspace count %d", dim, cfg.SubspaceCount)
	}
	subDim := dim / cfg.SubspaceCount

	var nodes []model.NodeID
	var residuals [][]float32
	for _, f := range ix.fragments {
		f.forEachLive(func(node model.NodeID, vec []float32) {
			c := ix.ivf.assign[node]
			centroid := ix.ivf.centroids[c]
			r := make([]float32, dim)
			for d := 0; d < dim; d++ {
				r[d] = vec[d] - centroid[d]
			}
			nodes = append(nodes, node)
			residuals = append(residuals, r)
		})
	}
	if len(residuals) < cfg.TrainingThreshold {
		return nerr.Wrapf(nerr.ErrInvalidArgument, "pq training needs %d samples, have %d", cfg.TrainingThreshold, len(residuals))
	}

	codebooks := make([][][]float32, cfg.SubspaceCount)
	subAssignments := make([][]int, cfg.SubspaceCount)
	for s := 0; s < cfg.SubspaceCount; s++ {
		sub := make([][]float32, len(residuals))
		for i, r := range residuals {
			sub[i] = r[s*subDim : (s+1)*subDim]
		}
		centroids, assignments := trainKMeans(sub, cfg.CentroidsPerSubspace, Euclidean)
		codebooks[s] = centroids
		subAssignments[s] = assignments
	}

	codes := make(map[model.NodeID][]byte, len(nodes))
	for i, node := range nodes {
		code := make([]byte, cfg.SubspaceCount)
		for s := 0; s < cfg.SubspaceCount; s++ {
			code[s] = byte(subAssignments[s][i])
		}
		codes[node] = code
	}

	ix.pq = &pqState{
		subCount:  cfg.SubspaceCount,
		subDim:    subDim,
		codebooks: codebooks,
		codes:     codes,
		trained:   true,
	}
	return nil
}

// searchPQLocked probes the nProbe nearest IVF clusters, building a
// per-cluster asymmetric distance table from the query to each subspace's
// codebook, then scores every probed candidate by summing the table entries
// its code selects (spec §4.10's ADC search). Callers hold ix.mu for reading.
func (ix *Index) searchPQLocked(q []float32, k int, opts SearchOptions) ([]Result, error) {
	nProbe := ix.ivf.nProbe
	if opts.NProbe > 0 {
		nProbe = opts.NProbe
	}
	clusters := ix.ivf.nearestClusters(q, ix.cfg.Metric, nProbe)

	h := &resultHeap{}
	heap.Init(h)
	for _, c := range clusters {
		centroid := ix.ivf.centroids[c]
		table, baseDot := ix.pq.adcTable(q, centroid, ix.cfg.Metric)
		for _, node := range ix.ivf.lists[c] {
			code, ok := ix.pq.codes[node]
			if !ok {
				continue
			}
			s := ix.pq.approxScore(code, table, baseDot, ix.cfg.Metric)
			if h.Len() < k {
				heap.Push(h, Result{Node: node, Score: s})
			} else if h.Len() > 0 && s > (*h)[0].Score {
				heap.Pop(h)
				heap.Push(h, Result{Node: node, Score: s})
			}
		}
	}
	return h.sorted(), nil
}

// adcTable builds the per-subspace lookup table for one query against one
// cluster's centroid. For Euclidean it holds squared distances from the
// query's residual to each codebook entry; for Cosine/Dot it holds the dot
// product of the query's own subspace slice against each codebook entry,
// since dot(q, centroid+residual) decomposes additively over subspaces.
func (st *pqState) adcTable(q, centroid []float32, metric Metric) (table [][]float64, baseDot float64) {
	table = make([][]float64, st.subCount)
	if metric == Euclidean {
		for s := 0; s < st.subCount; s++ {
			qs := q[s*st.subDim : (s+1)*st.subDim]
			cs := centroid[s*st.subDim : (s+1)*st.subDim]
			qResidual := make([]float32, st.subDim)
			for d := range qResidual {
				qResidual[d] = qs[d] - cs[d]
			}
			row := make([]float64, len(st.codebooks[s]))
			for c, entry := range st.codebooks[s] {
				var sum float64
				for d := range entry {
					diff := float64(qResidual[d] - entry[d])
					sum += diff * diff
				}
				row[c] = sum
			}
			table[s] = row
		}
		return table, 0
	}

	for d := range q {
		baseDot += float64(q[d]) * float64(centroid[d])
	}
	for s := 0; s < st.subCount; s++ {
		qs := q[s*st.subDim : (s+1)*st.subDim]
		row := make([]float64, len(st.codebooks[s]))
		for c, entry := range st.codebooks[s] {
			var dot float64
			for d := range entry {
				dot += float64(qs[d]) * float64(entry[d])
			}
			row[c] = dot
		}
		table[s] = row
	}
	return table, baseDot
}

func (st *pqState) approxScore(code []byte, table [][]float64, baseDot float64, metric Metric) float64 {
	if metric == Euclidean {
		var sqDist float64
		for s, c := range code {
			sqDist += table[s][c]
		}
		return 1.0 / (1.0 + math.Sqrt(sqDist))
	}
	approxDot := baseDot
	for s, c := range code {
		approxDot += table[s][c]
	}
	return approxDot
}
