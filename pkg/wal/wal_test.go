package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalgraph/nodal/pkg/container"
	"github.com/nodalgraph/nodal/pkg/delta"
	"github.com/nodalgraph/nodal/pkg/model"
)

type fakeVectors struct {
	set map[model.NodeID]map[model.PropKeyID][]float32
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
	delete(f.set[node], propKey)
	return nil
}

func openTestContainer(t *testing.T) *container.File {
	t.Helper()
	dir := t.TempDir()
	cf, err := container.Open(filepath.Join(dir, "t.nodal"), true, 4096, 64*1024)
	require.NoError(t, err)
	t.Cleanup(func() { cf.Close() })
	return cf
}

func TestCommitThenReplayAppliesAllFrames(t *testing.T) {
	cf := openTestContainer(t)
	w := Open(cf, SyncFull)

	tx := w.Begin()
	require.NoError(t, w.LogDefineLabel(tx, 1, "Person"))
	require.NoError(t, w.LogCreateNode(tx, 1, "alice", []model.LabelID{1}, map[model.PropKeyID]model.PropValue{2: model.String("Alice")}))
	require.NoError(t, w.LogAddEdge(tx, 1, 5, 2))
	require.NoError(t, w.LogSetNodeVector(tx, 1, 9, []float32{1, 2, 3}))
	require.NoError(t, w.Commit(tx))

	d := delta.New(nil, newFakeVectors())
	result, err := w.Replay(d)
	require.NoError(t, err)

	assert.Equal(t, model.NodeID(1), result.MaxNodeID)
	assert.Equal(t, model.LabelID(1), result.MaxLabelID)

	n, ok := d.CreatedNode(1)
	require.True(t, ok)
	assert.Equal(t, "alice", n.Key)
	assert.True(t, n.Props[2].Equal(model.String("Alice")))
	assert.Equal(t, []model.Neighbor{{Etype: 5, Other: 2}}, d.OutAdd(1))
}

func TestRollbackDiscardsBufferedFrames(t *testing.T) {
	cf := openTestContainer(t)
	w := Open(cf, SyncFull)

	tx := w.Begin()
	require.NoError(t, w.LogCreateNode(tx, 1, "alice", nil, nil))
	w.Rollback(tx)

	err := w.Commit(tx)
	assert.Error(t, err)
}

func TestReplayDiscardsIncompleteTrailingTransaction(t *testing.T) {
	cf := openTestContainer(t)
	w := Open(cf, SyncFull)

	tx1 := w.Begin()
	require.NoError(t, w.LogCreateNode(tx1, 1, "alice", nil, nil))
	require.NoError(t, w.Commit(tx1))

	// Simulate a crash mid-transaction: log frames but never commit, so no
	// COMMIT frame is ever written for tx2.
	tx2 := w.Begin()
	require.NoError(t, w.LogCreateNode(tx2, 2, "bob", nil, nil))
	b := w.pending[tx2]
	h := cf.Header()
	off, _, _, tail := h.ActiveWal()
	require.NoError(t, cf.WriteAt(int64(off+tail), b.Bytes()))
	h.SetActiveWal(0, tail+uint64(len(b.Bytes())))
	require.NoError(t, cf.Flip(h))

	d := delta.New(nil, newFakeVectors())
	result, err := w.Replay(d)
	require.NoError(t, err)

	_, ok := d.CreatedNode(1)
	assert.True(t, ok)
	_, ok = d.CreatedNode(2)
	assert.False(t, ok)
	assert.Equal(t, model.NodeID(1), result.MaxNodeID)
}

func TestCommitRejectsUnknownTransaction(t *testing.T) {
	cf := openTestContainer(t)
	w := Open(cf, SyncFull)
	err := w.Commit(999)
	assert.Error(t, err)
}

func TestCheckpointClearsFrozenRegionAndFlipsSnapshot(t *testing.T) {
	cf := openTestContainer(t)
	w := Open(cf, SyncFull)

	tx := w.Begin()
	require.NoError(t, w.LogCreateNode(tx, 1, "alice", nil, nil))
	require.NoError(t, w.Commit(tx))

	before := cf.Header()
	assert.Equal(t, uint8(0), before.ActiveWalRegion)

	require.NoError(t, w.Checkpoint(func() []byte { return []byte("snapshot-bytes") }))

	after := cf.Header()
	assert.Equal(t, uint8(1), after.ActiveWalRegion)
	assert.Equal(t, uint64(0), after.Wal0Tail)
	assert.Equal(t, uint64(1), after.ActiveSnapshotGen)
	assert.Equal(t, uint64(len("snapshot-bytes")), after.ActiveSnapshotLength)
}
