package vector

import (
	"container/heap"
	"math/rand"

	simvec "github.com/nodalgraph/nodal/pkg/math/vector"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// ivfState is the trained clustering side-structure for IVF search (spec
// §4.10): centroids from k-means, each live vector assigned to its nearest
// centroid, and the resulting inverted lists.
type ivfState struct {
	centroids [][]float32
	assign    map[model.NodeID]int
	lists     map[int][]model.NodeID
	nProbe    int
	trained   bool
}

const kmeansIterations = 25

// kmeansSeed makes centroid initialization reproducible: the corpus carries
// no clustering library (DESIGN.md), so this is a plain Lloyd's-algorithm
// k-means over the index's own metric, seeded deterministically rather than
// from crypto/time so BuildIndex is repeatable given the same input set.
const kmeansSeed = 1469598103934665603

// trainKMeans partitions vectors into k clusters under metric, returning the
// trained centroids and each input's cluster assignment.
func trainKMeans(vectors [][]float32, k int, metric Metric) (centroids [][]float32, assignments []int) {
	n := len(vectors)
	if k > n {
		k = n
	}
	dim := len(vectors[0])
	rng := rand.New(rand.NewSource(kmeansSeed))
	perm := rng.Perm(n)
	centroids = make([][]float32, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float32(nil), vectors[perm[i]]...)
	}
	assignments = make([]int, n)

	scoreFn := metricScorer(metric)
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestScore := 0, scoreFn(v, centroids[0])
			for c := 1; c < k; c++ {
				if s := scoreFn(v, centroids[c]); s > bestScore {
					best, bestScore = c, s
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += float64(v[d])
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			nc := make([]float32, dim)
			for d := 0; d < dim; d++ {
				nc[d] = float32(sums[c][d] / float64(counts[c]))
			}
			centroids[c] = nc
		}
		if !changed && iter > 0 {
			break
		}
	}
	return centroids, assignments
}

func metricScorer(m Metric) func(a, b []float32) float64 {
	switch m {
	case Euclidean:
		return simvec.EuclideanSimilarity
	case Dot:
		return simvec.DotProduct
	default:
		return simvec.CosineSimilarity
	}
}

// trainIVFLocked rebuilds the IVF side-structure from every currently live
// vector. Callers hold ix.mu for writing.
func (ix *Index) trainIVFLocked() error {
	cfg := ix.cfg.IVF
	var nodes []model.NodeID
	var vectors [][]float32
	for _, f := range ix.fragments {
		f.forEachLive(func(node model.NodeID, vec []float32) {
			nodes = append(nodes, node)
			vectors = append(vectors, append([]float32(nil), vec...))
		})
	}
	if len(vectors) < cfg.TrainingThreshold {
		return nerr.Wrapf(nerr.ErrInvalidArgument, "ivf training needs %d samples, have %d", cfg.TrainingThreshold, len(vectors))
	}

	centroids, assignments := trainKMeans(vectors, cfg.NumClusters, ix.cfg.Metric)
	st := &ivfState{
		centroids: centroids,
		assign:    make(map[model.NodeID]int, len(nodes)),
		lists:     make(map[int][]model.NodeID),
		nProbe:    cfg.NProbe,
		trained:   true,
	}
	for i, node := range nodes {
		c := assignments[i]
		st.assign[node] = c
		st.lists[c] = append(st.lists[c], node)
	}
	ix.ivf = st
	return nil
}

// nearestClusters returns the nProbe cluster ids closest to q, best first.
func (st *ivfState) nearestClusters(q []float32, metric Metric, nProbe int) []int {
	scoreFn := metricScorer(metric)
	type cand struct {
		id    int
		score float64
	}
	cands := make([]cand, len(st.centroids))
	for i, c := range st.centroids {
		cands[i] = cand{id: i, score: scoreFn(q, c)}
	}
	// simple selection: nProbe is normally small relative to NumClusters.
	if nProbe > len(cands) {
		nProbe = len(cands)
	}
	out := make([]int, 0, nProbe)
	used := make(map[int]bool, nProbe)
	for len(out) < nProbe {
		best, bestScore := -1, 0.0
		for i, c := range cands {
			if used[i] {
				continue
			}
			if best == -1 || c.score > bestScore {
				best, bestScore = i, c.score
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		out = append(out, cands[best].id)
	}
	return out
}

// searchIVFLocked scans the nProbe nearest clusters and refines with exact
// scores (spec §4.10). Callers hold ix.mu for reading.
func (ix *Index) searchIVFLocked(q []float32, k int, opts SearchOptions) ([]Result, error) {
	nProbe := ix.ivf.nProbe
	if opts.NProbe > 0 {
		nProbe = opts.NProbe
	}
	clusters := ix.ivf.nearestClusters(q, ix.cfg.Metric, nProbe)

	h := &resultHeap{}
	heap.Init(h)
	for _, c := range clusters {
		for _, node := range ix.ivf.lists[c] {
			vec, ok := ix.getLocked(node)
			if !ok {
				continue
			}
			s := ix.score(q, vec)
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

func (ix *Index) getLocked(node model.NodeID) ([]float32, bool) {
	loc, ok := ix.byNode[node]
	if !ok {
		return nil, false
	}
	return ix.fragments[loc.fragment].vectorAt(loc.row), true
}
