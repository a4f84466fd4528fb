package strtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternDeduplicates(t *testing.T) {
	b := NewBuilder()
	id1 := b.Intern("alice")
	id2 := b.Intern("bob")
	id3 := b.Intern("alice")
	assert.Equal(t, id1, id3)
	assert.NotEqual(t, id1, id2)
}

func TestBuildAndLookup(t *testing.T) {
	b := NewBuilder()
	pAlice := b.Intern("alice")
	pBob := b.Intern("bob")

	data, remap := b.Build()
	table := NewTable(data)

	assert.Equal(t, "alice", table.Get(remap[pAlice]))
	assert.Equal(t, "bob", table.Get(remap[pBob]))
}

func TestInBounds(t *testing.T) {
	b := NewBuilder()
	p := b.Intern("hello")
	data, remap := b.Build()
	table := NewTable(data)

	assert.True(t, table.InBounds(remap[p]))
	assert.False(t, table.InBounds(StringID{Offset: uint32(len(data) + 100)}))
}
