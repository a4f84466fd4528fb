package snapshot

import (
	"sort"

	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/nerr"
	"github.com/nodalgraph/nodal/pkg/strtab"
)

// Reader answers point queries against a parsed snapshot without copying the
// underlying bytes (normally a memory-mapped region owned by pkg/container).
// Every accessor is read-only and safe for concurrent use by multiple
// goroutines, matching the immutability invariant of a sealed snapshot
// (spec §4.2, §6.1).
type Reader struct {
	gen       uint64
	nodeCount uint64
	edgeCount uint64

	nodeIds    []byte // nodeCount * 8
	nodeKeys   []byte // nodeCount * 8 (offset u32, length u32)
	outOffsets []byte // (nodeCount+1) * 8
	outDst     []byte // edgeCount * 8
	outEtype   []byte // edgeCount * 4
	inOffsets  []byte
	inSrc      []byte
	inEtype    []byte

	nodePropsOffsets []byte // (nodeCount+1) * 4
	nodePropsData    []byte
	edgePropsOffsets []byte // (edgeCount+1) * 4
	edgePropsData    []byte

	vectors []VectorManifestRecord
	keyIdx  *KeyIndexReader
	schema  SchemaNames
	strings *strtab.Table
}

// Parse validates and wraps a snapshot byte buffer. It returns
// nerr.ErrCorruption if any of the len(sectionOrder) sections is missing,
// truncated, or fails its trailing CRC32C check. Sections are identified by
// position only, and bytes after the last section are not examined.
func Parse(buf []byte) (*Reader, error) {
	c := codec.NewCursor(buf)
	sections := make([][]byte, len(sectionOrder))
	for i := range sectionOrder {
		payload, ok := readSectionSafe(c)
		if !ok {
			return nil, nerr.Wrapf(nerr.ErrCorruption, "snapshot: section %d (%s) failed CRC check", i, sectionOrder[i])
		}
		sections[i] = payload
	}

	hc := codec.NewCursor(sections[0])
	r := &Reader{
		gen:              hc.U64(),
		nodeCount:        hc.U64(),
		edgeCount:        hc.U64(),
		nodeIds:          sections[1],
		nodeKeys:         sections[2],
		outOffsets:       sections[3],
		outDst:           sections[4],
		outEtype:         sections[5],
		inOffsets:        sections[6],
		inSrc:            sections[7],
		inEtype:          sections[8],
		strings:          strtab.NewTable(sections[15]),
	}

	npC := codec.NewCursor(sections[9])
	r.nodePropsOffsets = npC.Raw(int(r.nodeCount+1) * 4)
	r.nodePropsData = npC.Raw(npC.Remaining())

	epC := codec.NewCursor(sections[10])
	r.edgePropsOffsets = epC.Raw(int(r.edgeCount+1) * 4)
	r.edgePropsData = epC.Raw(epC.Remaining())

	vectors, ok := decodeVectorManifests(sections[11])
	if !ok {
		return nil, nerr.Wrapf(nerr.ErrCorruption, "snapshot: vector manifest section is malformed")
	}
	r.vectors = vectors
	r.keyIdx = NewKeyIndexReader(sections[12], sections[13], r.strings)

	schema, ok := decodeSchemaBlock(sections[14], r.strings)
	if !ok {
		return nil, nerr.Wrapf(nerr.ErrCorruption, "snapshot: schema section is malformed")
	}
	r.schema = schema

	return r, nil
}

func readSectionSafe(c *codec.Cursor) (payload []byte, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			payload, ok = nil, false
		}
	}()
	return c.Section()
}

func (r *Reader) Gen() uint64       { return r.gen }
func (r *Reader) NodeCount() uint64 { return r.nodeCount }
func (r *Reader) EdgeCount() uint64 { return r.edgeCount }
func (r *Reader) Schema() SchemaNames { return r.schema }
func (r *Reader) Vectors() []VectorManifestRecord { return r.vectors }

// getNodeIdByPhys returns the NodeID stored at physical row i.
func (r *Reader) getNodeIdByPhys(i uint32) model.NodeID {
	return model.NodeID(codec.U64(r.nodeIds[uint64(i)*8:]))
}

// findNodePhys binary-searches the sorted node-id table for id, since Build
// always sorts nodes by NodeID (spec invariant: physical rows sorted by id).
func (r *Reader) findNodePhys(id model.NodeID) (uint32, bool) {
	n := int(r.nodeCount)
	i := sort.Search(n, func(i int) bool { return r.getNodeIdByPhys(uint32(i)) >= id })
	if i < n && r.getNodeIdByPhys(uint32(i)) == id {
		return uint32(i), true
	}
	return 0, false
}

// getStringById resolves a StringID against the snapshot's string table.
func (r *Reader) getStringById(id strtab.StringID) string {
	return r.strings.Get(id)
}

// KeyLookup resolves a node key to its NodeID via the hash-bucketed key
// index (spec §4.4).
func (r *Reader) KeyLookup(key string) (model.NodeID, bool) {
	id, ok := r.keyIdx.Lookup(key)
	return model.NodeID(id), ok
}

// NodeKey returns the key of the node at physical row i, or "" if unkeyed.
func (r *Reader) NodeKey(phys uint32) string {
	off := codec.U32(r.nodeKeys[uint64(phys)*8:])
	if off == ^uint32(0) {
		return ""
	}
	length := codec.U32(r.nodeKeys[uint64(phys)*8+4:])
	return r.strings.Get(strtab.StringID{Offset: off, Length: length})
}

// outAdjacencySlice returns the destination/etype slices for physical row i's
// outgoing edges, already sorted by (etype, dst) per spec invariant 2.
func (r *Reader) outAdjacencySlice(phys uint32) (dst []model.NodeID, etype []model.ETypeID) {
	start := codec.U64(r.outOffsets[uint64(phys)*8:])
	end := codec.U64(r.outOffsets[uint64(phys+1)*8:])
	return r.decodeNeighbors(r.outDst, r.outEtype, start, end)
}

// inAdjacencySlice returns the source/etype slices for physical row i's
// incoming edges.
func (r *Reader) inAdjacencySlice(phys uint32) (src []model.NodeID, etype []model.ETypeID) {
	start := codec.U64(r.inOffsets[uint64(phys)*8:])
	end := codec.U64(r.inOffsets[uint64(phys+1)*8:])
	return r.decodeNeighbors(r.inSrc, r.inEtype, start, end)
}

func (r *Reader) decodeNeighbors(others, etypes []byte, start, end uint64) ([]model.NodeID, []model.ETypeID) {
	n := end - start
	out := make([]model.NodeID, n)
	et := make([]model.ETypeID, n)
	for i := uint64(0); i < n; i++ {
		out[i] = model.NodeID(codec.U64(others[(start+i)*8:]))
		et[i] = model.ETypeID(codec.U32(etypes[(start+i)*4:]))
	}
	return out, et
}

// findEdgeIndex binary-searches physical row srcPhys's out-adjacency for
// (etype, dstPhys) and returns its global out-CSR slot, used to index
// edgeProps. Adjacency is sorted by (etype, other) so dst here must be the
// raw NodeID, matching what was encoded (spec invariant 2).
func (r *Reader) findEdgeIndex(srcPhys uint32, etype model.ETypeID, dst model.NodeID) (uint32, bool) {
	start := codec.U64(r.outOffsets[uint64(srcPhys)*8:])
	end := codec.U64(r.outOffsets[uint64(srcPhys+1)*8:])
	lo, hi := uint64(start), uint64(end)
	for lo < hi {
		mid := (lo + hi) / 2
		midEtype := model.ETypeID(codec.U32(r.outEtype[mid*4:]))
		midDst := model.NodeID(codec.U64(r.outDst[mid*8:]))
		if midEtype < etype || (midEtype == etype && midDst < dst) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < end {
		if model.ETypeID(codec.U32(r.outEtype[lo*4:])) == etype && model.NodeID(codec.U64(r.outDst[lo*8:])) == dst {
			return uint32(lo), true
		}
	}
	return 0, false
}

// nodeProps decodes physical row i's labels and property map.
func (r *Reader) nodeProps(phys uint32) (labels []model.LabelID, props map[model.PropKeyID]model.PropValue, ok bool) {
	start := codec.U32(r.nodePropsOffsets[uint64(phys)*4:])
	end := codec.U32(r.nodePropsOffsets[uint64(phys+1)*4:])
	c := codec.NewCursor(r.nodePropsData[start:end])
	return decodeNodeBlock(c, readerStrRef{r.strings})
}

// edgePropsAt decodes the property map at a global out-CSR slot, as returned
// by findEdgeIndex.
func (r *Reader) edgePropsAt(slot uint32) (props map[model.PropKeyID]model.PropValue, ok bool) {
	start := codec.U32(r.edgePropsOffsets[uint64(slot)*4:])
	end := codec.U32(r.edgePropsOffsets[uint64(slot+1)*4:])
	c := codec.NewCursor(r.edgePropsData[start:end])
	return decodeEdgeBlock(c, readerStrRef{r.strings})
}

// keyIndexBucketSlice exposes the raw entries of bucket i for diagnostics.
func (r *Reader) keyIndexBucketSlice(i uint32) []byte { return r.keyIdx.BucketSlice(i) }

type readerStrRef struct{ t *strtab.Table }

func (r readerStrRef) id(string) strtab.StringID { panic("reader does not intern strings") }
func (r readerStrRef) get(id strtab.StringID) string { return r.t.Get(id) }
