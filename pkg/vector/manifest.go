// Package vector implements the per-PropKeyID vector index subsystem (spec
// §4.10): a columnar fragment store of dense f32 rows with a liveness
// bitmap and NodeID->row map, brute-force top-k search as ground truth, and
// trained IVF / IVF-PQ search modes for larger stores. Distance math is
// grounded on the teacher's pkg/math/vector/similarity.go.
package vector

import (
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
)

// Metric identifies the distance function an index scores with. The numeric
// values match the on-disk encoding in pkg/snapshot.VectorManifestRecord.Metric.
type Metric uint8

const (
	Cosine Metric = iota
	Euclidean
	Dot
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case Euclidean:
		return "euclidean"
	case Dot:
		return "dot"
	default:
		return "unknown"
	}
}

// IVFConfig parameterizes IVF training and search.
type IVFConfig struct {
	NumClusters       int
	NProbe            int
	TrainingThreshold int // minimum live vectors required before BuildIndex trains IVF
}

// PQConfig parameterizes product quantization on top of IVF residuals.
type PQConfig struct {
	SubspaceCount        int
	CentroidsPerSubspace int
	TrainingThreshold    int
}

// IndexConfig is the createVectorIndex(propkey, {dim, metric, ivf?, pq?})
// argument (spec §6.2).
type IndexConfig struct {
	Dim                uint32
	Metric             Metric
	Normalized         bool
	RowGroupSize       uint32
	FragmentTargetSize uint32
	IVF                *IVFConfig
	PQ                 *PQConfig
}

const (
	defaultRowGroupSize       = 1024
	defaultFragmentTargetSize = 4096
)

func (c *IndexConfig) fillDefaults() {
	if c.RowGroupSize == 0 {
		c.RowGroupSize = defaultRowGroupSize
	}
	if c.FragmentTargetSize == 0 {
		c.FragmentTargetSize = defaultFragmentTargetSize
	}
}

// Manifest is the live counterpart of pkg/snapshot.VectorManifestRecord,
// minus the fragment byte offsets a checkpoint assigns.
type Manifest struct {
	PropKey            model.PropKeyID
	Dim                uint32
	Metric             Metric
	Normalized         bool
	RowGroupSize       uint32
	FragmentTargetSize uint32
}

func checkDim(cfg IndexConfig, v []float32) error {
	if len(v) != int(cfg.Dim) {
		return nerr.Wrapf(nerr.ErrInvalidArgument, "vector dimension %d, want %d", len(v), cfg.Dim)
	}
	return nil
}
