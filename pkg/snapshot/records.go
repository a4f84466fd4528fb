// Package snapshot implements the immutable on-disk representation of
// committed graph state: the node-id table, out/in CSR adjacency, per-entity
// property blocks, the vector manifest table, and the hash-bucketed key
// index (spec §4.2, §4.3, §6.1).
//
// A snapshot is built once per checkpoint from the merge of the previous
// snapshot and the delta, then read many times; the writer and reader in
// this package are deliberately separate: Build takes fully-resolved
// records and produces bytes, Reader takes bytes (normally a memory-mapped
// region from pkg/container) and answers point queries against them without
// copying.
package snapshot

import "github.com/nodalgraph/nodal/pkg/model"

// NodeRecord is one node's full resolved state, as the checkpointer
// assembles it from the merge of the previous snapshot and the delta.
type NodeRecord struct {
	ID     model.NodeID
	Key    string // "" means the node has no key
	Labels []model.LabelID
	Props  map[model.PropKeyID]model.PropValue
}

// EdgeRecord is one resolved edge. Props are keyed by the same (src, etype,
// dst) triple as the edge itself.
type EdgeRecord struct {
	Src   model.NodeID
	Etype model.ETypeID
	Dst   model.NodeID
	Props map[model.PropKeyID]model.PropValue
}

// SchemaNames resolves every schema ID namespace to its append-only name
// table (spec invariant 6: dense from 1, 0 reserved).
type SchemaNames struct {
	Labels   map[model.LabelID]string
	Etypes   map[model.ETypeID]string
	PropKeys map[model.PropKeyID]string
}

// FragmentRef points at one sealed (or open) vector fragment's bytes,
// written by pkg/vector elsewhere in the container file.
type FragmentRef struct {
	Offset uint64
	Length uint64
	Rows   uint32
	Sealed bool
}

// VectorManifestRecord is the per-PropKeyID vector index manifest (spec
// §4.10): dimension, metric, normalization, row-group sizing, and the list
// of fragments holding the actual vector data.
type VectorManifestRecord struct {
	PropKey            model.PropKeyID
	Dim                uint32
	Metric             uint8 // 0=cosine 1=euclidean 2=dot
	Normalized         bool
	RowGroupSize       uint32
	FragmentTargetSize uint32
	Fragments          []FragmentRef
}

// Build's full input: the merged, checkpoint-ready graph state.
type BuildInput struct {
	Nodes    []NodeRecord
	Edges    []EdgeRecord
	Schema   SchemaNames
	Vectors  []VectorManifestRecord
	Gen      uint64
}
