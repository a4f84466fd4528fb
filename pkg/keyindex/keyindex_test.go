package keyindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodalgraph/nodal/pkg/model"
)

type fakeDisk map[string]model.NodeID

func (f fakeDisk) KeyLookup(key string) (model.NodeID, bool) {
	id, ok := f[key]
	return id, ok
}

func TestLookupFallsThroughToDisk(t *testing.T) {
	ix := New(fakeDisk{"alice": 1})
	id, ok := ix.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, model.NodeID(1), id)
}

func TestLookupPrefersDeltaAddition(t *testing.T) {
	ix := New(fakeDisk{"alice": 1})
	ix.Put("alice", 99)
	id, ok := ix.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, model.NodeID(99), id)
}

func TestTombstoneHidesDiskEntry(t *testing.T) {
	ix := New(fakeDisk{"alice": 1})
	ix.Delete("alice")
	_, ok := ix.Lookup("alice")
	assert.False(t, ok)
}

func TestRecreateAfterDeleteWithinSameDelta(t *testing.T) {
	ix := New(fakeDisk{"alice": 1})
	ix.Delete("alice")
	ix.Put("alice", 2)
	id, ok := ix.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, model.NodeID(2), id)
}

func TestDeleteAfterPutWithoutDiskEntry(t *testing.T) {
	ix := New(fakeDisk{})
	ix.Put("new-key", 5)
	ix.Delete("new-key")
	_, ok := ix.Lookup("new-key")
	assert.False(t, ok)
}

func TestResetClearsOverlayAndRebindsDisk(t *testing.T) {
	ix := New(fakeDisk{"alice": 1})
	ix.Put("bob", 2)
	ix.Delete("alice")

	ix.Reset(fakeDisk{"alice": 1, "bob": 2})

	id, ok := ix.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, model.NodeID(1), id)
	id, ok = ix.Lookup("bob")
	assert.True(t, ok)
	assert.Equal(t, model.NodeID(2), id)
}

func TestLookupWithNilDisk(t *testing.T) {
	ix := New(nil)
	_, ok := ix.Lookup("anything")
	assert.False(t, ok)
	ix.Put("anything", 1)
	id, ok := ix.Lookup("anything")
	assert.True(t, ok)
	assert.Equal(t, model.NodeID(1), id)
}
