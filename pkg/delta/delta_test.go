package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalgraph/nodal/pkg/model"
)

type fakeVectors struct {
	set    map[model.NodeID]map[model.PropKeyID][]float32
	delCnt int
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{set: make(map[model.NodeID]map[model.PropKeyID][]float32)}
}

func (f *fakeVectors) SetNodeVector(node model.NodeID, propKey model.PropKeyID, v []float32) error {
	if f.set[node] == nil {
		f.set[node] = make(map[model.PropKeyID][]float32)
	}
	f.set[node][propKey] = v
	return nil
}

func (f *fakeVectors) DeleteNodeVector(node model.NodeID, propKey model.PropKeyID) error {
	f.delCnt++
	delete(f.set[node], propKey)
	return nil
}

func TestCreateNodeRegistersKey(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.CreateNode(1, "alice", []model.LabelID{1}, map[model.PropKeyID]model.PropValue{1: model.String("Alice")})

	n, ok := d.CreatedNode(1)
	require.True(t, ok)
	assert.Equal(t, "alice", n.Key)

	id, ok := d.Keys().Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, model.NodeID(1), id)
}

func TestDeleteCreatedNodeDiscardsRatherThanTombstones(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.CreateNode(1, "alice", nil, nil)
	d.DeleteNode(1, "alice")

	_, ok := d.CreatedNode(1)
	assert.False(t, ok)
	assert.False(t, d.IsNodeDeleted(1))

	_, ok = d.Keys().Lookup("alice")
	assert.False(t, ok)
}

func TestDeleteSnapshotNodeTombstones(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.DeleteNode(5, "")
	assert.True(t, d.IsNodeDeleted(5))
}

func TestSetNodePropOnCreatedNodeMutatesInPlace(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.CreateNode(1, "", nil, nil)
	d.SetNodeProp(1, 2, model.Int64(42))

	n, ok := d.CreatedNode(1)
	require.True(t, ok)
	assert.True(t, n.Props[2].Equal(model.Int64(42)))

	_, modified := d.ModifiedNode(1)
	assert.False(t, modified)
}

func TestSetNodePropOnSnapshotNodeRecordsPatch(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.SetNodeProp(7, 3, model.Float64(1.5))

	m, ok := d.ModifiedNode(7)
	require.True(t, ok)
	require.Contains(t, m.PropPatches, model.PropKeyID(3))
	assert.True(t, m.PropPatches[3].Equal(model.Float64(1.5)))
}

func TestDelNodePropRecordsNilPatch(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.DelNodeProp(7, 3)

	m, ok := d.ModifiedNode(7)
	require.True(t, ok)
	assert.Nil(t, m.PropPatches[3])
}

func TestAddThenRemoveLabelOnSnapshotNodeCancels(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.AddNodeLabel(7, 1)
	d.RemoveNodeLabel(7, 1)

	m, ok := d.ModifiedNode(7)
	require.True(t, ok)
	assert.NotContains(t, m.LabelAdds, model.LabelID(1))
	assert.Contains(t, m.LabelRemoves, model.LabelID(1))
}

func TestAddOutEdgeUpdatesBothDirections(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.AddOutEdge(1, 10, 2)

	assert.Equal(t, []model.Neighbor{{Etype: 10, Other: 2}}, d.OutAdd(1))
	assert.Equal(t, []model.Neighbor{{Etype: 10, Other: 1}}, d.InAdd(2))
}

func TestRemoveOutEdgeAfterAddCancelsWithinSameDelta(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.AddOutEdge(1, 10, 2)
	d.RemoveOutEdge(1, 10, 2)

	assert.Empty(t, d.OutAdd(1))
	assert.Equal(t, []model.Neighbor{{Etype: 10, Other: 2}}, d.OutDel(1))
	assert.Empty(t, d.InAdd(2))
	assert.Equal(t, []model.Neighbor{{Etype: 10, Other: 1}}, d.InDel(2))
}

func TestReAddEdgeDeletedEarlierCancelsDeletion(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.RemoveOutEdge(1, 10, 2)
	d.AddOutEdge(1, 10, 2)

	assert.Empty(t, d.OutDel(1))
	assert.Equal(t, []model.Neighbor{{Etype: 10, Other: 2}}, d.OutAdd(1))
}

func TestMergeNeighborsAppliesDeleteThenAdd(t *testing.T) {
	disk := []model.Neighbor{{Etype: 1, Other: 2}, {Etype: 1, Other: 3}}
	add := []model.Neighbor{{Etype: 1, Other: 4}}
	del := []model.Neighbor{{Etype: 1, Other: 2}}

	merged := MergeNeighbors(disk, add, del)
	assert.ElementsMatch(t, []model.Neighbor{{Etype: 1, Other: 3}, {Etype: 1, Other: 4}}, merged)
}

func TestSetEdgePropThenDelEdgePropRecordsNilPatch(t *testing.T) {
	d := New(nil, newFakeVectors())
	e := model.Edge{Src: 1, Etype: 2, Dst: 3}
	d.SetEdgeProp(e, 5, model.Int64(1))
	d.DelEdgeProp(e, 5)

	patch, ok := d.EdgePropPatch(e)
	require.True(t, ok)
	assert.Nil(t, patch[5])
}

func TestRemoveOutEdgeClearsEdgePropPatch(t *testing.T) {
	d := New(nil, newFakeVectors())
	e := model.Edge{Src: 1, Etype: 2, Dst: 3}
	d.SetEdgeProp(e, 5, model.Int64(1))
	d.RemoveOutEdge(1, 2, 3)

	_, ok := d.EdgePropPatch(e)
	assert.False(t, ok)
}

func TestDefineSchemaNames(t *testing.T) {
	d := New(nil, newFakeVectors())
	d.DefineLabel(9, "Widget")
	d.DefineEtype(4, "OWNS")
	d.DefinePropKey(2, "sku")

	assert.Equal(t, "Widget", d.NewLabels()[9])
	assert.Equal(t, "OWNS", d.NewEtypes()[4])
	assert.Equal(t, "sku", d.NewPropKeys()[2])
}

func TestVectorIntentsForwardToSink(t *testing.T) {
	fv := newFakeVectors()
	d := New(nil, fv)

	require.NoError(t, d.SetNodeVector(1, 20, []float32{1, 2, 3}))
	assert.Equal(t, []float32{1, 2, 3}, fv.set[1][20])

	require.NoError(t, d.DeleteNodeVector(1, 20))
	assert.Equal(t, 1, fv.delCnt)
	_, ok := fv.set[1][20]
	assert.False(t, ok)
}
