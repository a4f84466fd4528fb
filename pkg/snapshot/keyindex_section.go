package snapshot

import (
	"sort"

	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/strtab"
)

// bucketEntry is one (hash64, stringId, NodeID) triple in the key index
// (spec §4.4).
type bucketEntry struct {
	hash   uint64
	strID  strtab.StringID
	nodeID uint64
}

// buildKeyIndex hashes every keyed node into bucketCount buckets, sorts each
// bucket's entries by (hash64, stringId), and serializes the two parallel
// sections: a (bucketCount+1)-entry offset table and the flat entries array.
func buildKeyIndex(nodes []NodeRecord, bucketCount uint32, sr *writerStrRef) (buckets, entries []byte) {
	byBucket := make(map[uint32][]bucketEntry)
	for _, n := range nodes {
		if n.Key == "" {
			continue
		}
		h := codec.XXHash64([]byte(n.Key))
		b := uint32(h % uint64(bucketCount))
		byBucket[b] = append(byBucket[b], bucketEntry{hash: h, strID: sr.id(n.Key), nodeID: uint64(n.ID)})
	}
	for _, es := range byBucket {
		sort.Slice(es, func(i, j int) bool {
			if es[i].hash != es[j].hash {
				return es[i].hash < es[j].hash
			}
			return es[i].strID.Offset < es[j].strID.Offset
		})
	}

	bucketB := codec.NewBuilder(int(bucketCount+1) * 4)
	entryB := codec.NewBuilder(0)
	var cursor uint32
	for i := uint32(0); i < bucketCount; i++ {
		bucketB.PutU32(cursor)
		for _, e := range byBucket[i] {
			entryB.PutU64(e.hash)
			entryB.PutU32(e.strID.Offset)
			entryB.PutU32(e.strID.Length)
			entryB.PutU64(e.nodeID)
			cursor++
		}
	}
	bucketB.PutU32(cursor)
	return bucketB.Bytes(), entryB.Bytes()
}

// KeyIndexEntrySize is the fixed byte width of one serialized bucket entry:
// hash64(8) + stringId offset(4) + length(4) + NodeID(8).
const KeyIndexEntrySize = 24

// KeyIndexReader answers string-key lookups against the serialized bucket
// and entries sections of a snapshot.
type KeyIndexReader struct {
	buckets     []byte
	entries     []byte
	bucketCount uint32
	strings     *strtab.Table
}

// NewKeyIndexReader wraps the raw bucket-offset and entries sections.
func NewKeyIndexReader(buckets, entries []byte, strings *strtab.Table) *KeyIndexReader {
	return &KeyIndexReader{buckets: buckets, entries: entries, bucketCount: uint32(len(buckets)/4 - 1), strings: strings}
}

// Lookup computes bucket = xxHash64(key) mod B, scans the bucket's entries
// for a matching hash, and verifies string equality byte-for-byte before
// returning the NodeID (spec §4.4).
func (r *KeyIndexReader) Lookup(key string) (uint64, bool) {
	if r.bucketCount == 0 {
		return 0, false
	}
	h := codec.XXHash64([]byte(key))
	b := uint32(h % uint64(r.bucketCount))
	start := codec.U32(r.buckets[b*4:])
	end := codec.U32(r.buckets[(b+1)*4:])
	for i := start; i < end; i++ {
		off := int(i) * KeyIndexEntrySize
		entryHash := codec.U64(r.entries[off:])
		if entryHash != h {
			continue
		}
		strID := strtab.StringID{Offset: codec.U32(r.entries[off+8:]), Length: codec.U32(r.entries[off+12:])}
		if r.strings.Get(strID) == key {
			return codec.U64(r.entries[off+16:]), true
		}
	}
	return 0, false
}

// BucketSlice returns the raw entries belonging to bucket i, for diagnostics
// and the stats surface.
func (r *KeyIndexReader) BucketSlice(i uint32) []byte {
	start := codec.U32(r.buckets[i*4:])
	end := codec.U32(r.buckets[(i+1)*4:])
	return r.entries[start*KeyIndexEntrySize : end*KeyIndexEntrySize]
}

func (r *KeyIndexReader) BucketCount() uint32 { return r.bucketCount }
