package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalgraph/nodal/pkg/model"
)

func sampleInput() BuildInput {
	return BuildInput{
		Gen: 7,
		Nodes: []NodeRecord{
			{ID: 1, Key: "alice", Labels: []model.LabelID{1}, Props: map[model.PropKeyID]model.PropValue{
				1: model.String("Alice"),
				2: model.Int64(30),
			}},
			{ID: 2, Key: "bob", Labels: []model.LabelID{1}, Props: map[model.PropKeyID]model.PropValue{
				1: model.String("Bob"),
			}},
			{ID: 3, Labels: nil, Props: map[model.PropKeyID]model.PropValue{
				3: model.Float64(3.5),
				4: model.Bool(true),
			}},
		},
		Edges: []EdgeRecord{
			{Src: 1, Etype: 1, Dst: 2, Props: map[model.PropKeyID]model.PropValue{10: model.Float64(2.5)}},
			{Src: 1, Etype: 2, Dst: 3, Props: nil},
			{Src: 2, Etype: 1, Dst: 3, Props: map[model.PropKeyID]model.PropValue{10: model.Float64(1.0)}},
		},
		Schema: SchemaNames{
			Labels:   map[model.LabelID]string{1: "Person"},
			Etypes:   map[model.ETypeID]string{1: "KNOWS", 2: "FOLLOWS"},
			PropKeys: map[model.PropKeyID]string{1: "name", 2: "age", 3: "score", 4: "active", 10: "weight"},
		},
		Vectors: []VectorManifestRecord{
			{PropKey: 20, Dim: 4, Metric: 0, Normalized: true, RowGroupSize: 1024, FragmentTargetSize: 1 << 20,
				Fragments: []FragmentRef{{Offset: 4096, Length: 2048, Rows: 10, Sealed: true}}},
		},
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	in := sampleInput()
	buf := Build(in)

	r, err := Parse(buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), r.Gen())
	assert.Equal(t, uint64(3), r.NodeCount())
	assert.Equal(t, uint64(3), r.EdgeCount())

	phys, ok := r.findNodePhys(1)
	require.True(t, ok)
	assert.Equal(t, "alice", r.NodeKey(phys))

	id, ok := r.KeyLookup("bob")
	require.True(t, ok)
	assert.Equal(t, model.NodeID(2), id)

	_, ok = r.KeyLookup("carol")
	assert.False(t, ok)

	labels, props, ok := r.nodeProps(phys)
	require.True(t, ok)
	assert.Equal(t, []model.LabelID{1}, labels)
	assert.True(t, props[1].Equal(model.String("Alice")))
	assert.True(t, props[2].Equal(model.Int64(30)))

	dst, etype := r.outAdjacencySlice(phys)
	require.Len(t, dst, 2)
	assert.Equal(t, model.ETypeID(1), etype[0])
	assert.Equal(t, model.NodeID(2), dst[0])
	assert.Equal(t, model.ETypeID(2), etype[1])
	assert.Equal(t, model.NodeID(3), dst[1])

	slot, ok := r.findEdgeIndex(phys, 1, 2)
	require.True(t, ok)
	eprops, ok := r.edgePropsAt(slot)
	require.True(t, ok)
	assert.True(t, eprops[10].Equal(model.Float64(2.5)))

	bobPhys, ok := r.findNodePhys(2)
	require.True(t, ok)
	src, inEtype := r.inAdjacencySlice(bobPhys)
	require.Len(t, src, 1)
	assert.Equal(t, model.NodeID(1), src[0])
	assert.Equal(t, model.ETypeID(1), inEtype[0])

	assert.Equal(t, "Person", r.Schema().Labels[1])
	assert.Equal(t, "KNOWS", r.Schema().Etypes[1])
	assert.Equal(t, "weight", r.Schema().PropKeys[10])

	require.Len(t, r.Vectors(), 1)
	assert.Equal(t, uint32(4), r.Vectors()[0].Dim)
	assert.True(t, r.Vectors()[0].Normalized)
	assert.Equal(t, uint32(10), r.Vectors()[0].Fragments[0].Rows)
}

func TestBuildDeterministicByteIdentical(t *testing.T) {
	in := sampleInput()
	a := Build(in)
	b := Build(in)
	assert.Equal(t, a, b)
}

func TestParseRejectsTruncatedBuffer(t *testing.T) {
	buf := Build(sampleInput())
	_, err := Parse(buf[:len(buf)-10])
	assert.Error(t, err)
}

func TestParseRejectsCorruptSection(t *testing.T) {
	buf := Build(sampleInput())
	buf[4] ^= 0xFF
	_, err := Parse(buf)
	assert.Error(t, err)
}

func TestUnkeyedNodeHasNoKey(t *testing.T) {
	r, err := Parse(Build(sampleInput()))
	require.NoError(t, err)
	phys, ok := r.findNodePhys(3)
	require.True(t, ok)
	assert.Equal(t, "", r.NodeKey(phys))
}

func TestEdgeWithNoPropsDecodesEmptyMap(t *testing.T) {
	r, err := Parse(Build(sampleInput()))
	require.NoError(t, err)
	phys, ok := r.findNodePhys(1)
	require.True(t, ok)
	slot, ok := r.findEdgeIndex(phys, 2, 3)
	require.True(t, ok)
	props, ok := r.edgePropsAt(slot)
	require.True(t, ok)
	assert.Empty(t, props)
}
