package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalgraph/nodal/pkg/nerr"
)

func TestSerialFastPathMutatesInPlace(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	tx1 := mgr.Begin()
	store.Put(tx1, "a", 1)
	_, err := tx1.Commit()
	require.NoError(t, err)

	tx2 := mgr.Begin()
	store.Put(tx2, "a", 2)
	v, ok := store.Get(tx2, "a")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	// Only tx2 is active, so the write reused the existing node rather than
	// chaining a new one.
	assert.Nil(t, store.heads["a"].next)
	_, err = tx2.Commit()
	require.NoError(t, err)
}

func TestConcurrentWritersChainNewVersion(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	tx1 := mgr.Begin()
	store.Put(tx1, "a", 1)
	_, err := tx1.Commit()
	require.NoError(t, err)

	tx2 := mgr.Begin()
	tx3 := mgr.Begin() // two active transactions now

	store.Put(tx2, "a", 2)
	head := store.heads["a"]
	require.NotNil(t, head.next)

	_, err = tx2.Commit()
	require.NoError(t, err)
	tx3.Abort()
}

func TestVisibilitySnapshotIsolation(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	writer := mgr.Begin()
	store.Put(writer, "a", 1)
	_, err := writer.Commit()
	require.NoError(t, err)

	reader := mgr.Begin()
	writer2 := mgr.Begin()
	store.Put(writer2, "a", 2)
	_, err = writer2.Commit()
	require.NoError(t, err)

	v, ok := store.Get(reader, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v, "reader's snapshot predates writer2's commit")

	reader.Abort()
}

func TestOwnWritesAreVisibleBeforeCommit(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	tx := mgr.Begin()
	store.Put(tx, "a", 99)

	v, ok := store.Get(tx, "a")
	require.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestFirstCommitterWinsSecondConflicts(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	base := mgr.Begin()
	store.Put(base, "a", 0)
	_, err := base.Commit()
	require.NoError(t, err)

	tx1 := mgr.Begin()
	tx2 := mgr.Begin()

	store.Put(tx1, "a", 1)
	store.Put(tx2, "a", 2)

	_, err = tx1.Commit()
	require.NoError(t, err)

	_, err = tx2.Commit()
	require.Error(t, err)
	assert.Equal(t, nerr.KindConflict, nerr.KindOf(err))
}

func TestAbortedWriteIsInvisibleAndChainRestored(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	base := mgr.Begin()
	store.Put(base, "a", 7)
	_, err := base.Commit()
	require.NoError(t, err)

	tx1 := mgr.Begin()
	tx2 := mgr.Begin()

	store.Put(tx1, "a", 100)
	tx1.Abort()

	v, ok := store.Get(tx2, "a")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestDeleteTombstonesValue(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	tx1 := mgr.Begin()
	store.Put(tx1, "a", 1)
	_, err := tx1.Commit()
	require.NoError(t, err)

	tx2 := mgr.Begin()
	store.Delete(tx2, "a")
	_, err = tx2.Commit()
	require.NoError(t, err)

	tx3 := mgr.Begin()
	_, ok := store.Get(tx3, "a")
	assert.False(t, ok)
}

func TestMinActiveTsWithNoActiveTransactionsAllowsFullGC(t *testing.T) {
	mgr := NewManager()
	tx := mgr.Begin()
	_, err := tx.Commit()
	require.NoError(t, err)

	assert.Equal(t, 0, mgr.ActiveCount())
	assert.Equal(t, Timestamp(3), mgr.MinActiveTs())
}

func TestGarbageCollectTrimsOldVersionsKeepingWatermark(t *testing.T) {
	mgr := NewManager()
	store := NewStore[string, int](mgr)

	tx1 := mgr.Begin()
	store.Put(tx1, "a", 1)
	_, err := tx1.Commit()
	require.NoError(t, err)

	reader := mgr.Begin()

	tx2 := mgr.Begin()
	store.Put(tx2, "a", 2)
	_, err = tx2.Commit()
	require.NoError(t, err)

	store.GarbageCollect(mgr.MinActiveTs())

	// reader's startTs is still < tx2's commitTs, so version 1 must survive.
	v, ok := store.Get(reader, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	reader.Abort()
	store.GarbageCollect(mgr.MinActiveTs())

	tx3 := mgr.Begin()
	v, ok = store.Get(tx3, "a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCommitTwiceIsTransactionMisuse(t *testing.T) {
	mgr := NewManager()
	tx := mgr.Begin()
	_, err := tx.Commit()
	require.NoError(t, err)

	_, err = tx.Commit()
	require.Error(t, err)
	assert.Equal(t, nerr.KindTransactionMisuse, nerr.KindOf(err))
}
