package snapshot

import (
	"sort"

	"github.com/nodalgraph/nodal/pkg/codec"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/strtab"
)

// sectionOrder documents spec §4.2/§6.1's fixed section sequence. Build
// emits sections in exactly this order.
var sectionOrder = []string{
	"header", "nodeIds", "nodeKeys", "outOffsets", "outDst", "outEtype",
	"inOffsets", "inSrc", "inEtype", "nodeProps", "edgeProps",
	"vectorManifests", "keyIndexBuckets", "keyIndexEntries", "schema", "stringTable",
}

// keyIndexLoadFactor targets ~50% bucket occupancy (spec §4.4).
const keyIndexLoadFactor = 2

type writerStrRef struct {
	b     *strtab.Builder
	remap map[strtab.StringID]strtab.StringID
}

func (w *writerStrRef) id(s string) strtab.StringID  { return w.remap[w.b.Intern(s)] }
func (w *writerStrRef) get(strtab.StringID) string   { panic("writer does not read strings back") }

// Build serializes in into the snapshot wire format and returns the bytes.
// Nodes need not be pre-sorted; Build sorts them by NodeID to produce the
// node-id table the binary search in findNodePhys depends on.
//
// Build runs two passes over the input: the first interns every string
// (node keys, schema names, string property values) into the string table
// so every reference can be written as a final (offset,length) StringID;
// the second encodes the CSR/property sections against that finished table.
func Build(in BuildInput) []byte {
	nodes := append([]NodeRecord(nil), in.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	physOf := make(map[model.NodeID]uint32, len(nodes))
	for i, n := range nodes {
		physOf[n.ID] = uint32(i)
	}

	strings := strtab.NewBuilder()
	for _, n := range nodes {
		if n.Key != "" {
			strings.Intern(n.Key)
		}
		for _, v := range n.Props {
			if v.Kind == model.KindString {
				strings.Intern(v.S)
			}
		}
	}
	for _, e := range in.Edges {
		for _, v := range e.Props {
			if v.Kind == model.KindString {
				strings.Intern(v.S)
			}
		}
	}
	for _, name := range in.Schema.Labels {
		strings.Intern(name)
	}
	for _, name := range in.Schema.Etypes {
		strings.Intern(name)
	}
	for _, name := range in.Schema.PropKeys {
		strings.Intern(name)
	}

	stringData, remap := strings.Build()
	sr := &writerStrRef{b: strings, remap: remap}

	// node-id table: phys index -> NodeID
	nodeIds := codec.NewBuilder(len(nodes) * 8)
	for _, n := range nodes {
		nodeIds.PutU64(uint64(n.ID))
	}

	// node-key stringIds, one per node; offset=^0 marks "no key".
	nodeKeys := codec.NewBuilder(len(nodes) * 8)
	for _, n := range nodes {
		if n.Key != "" {
			id := sr.id(n.Key)
			nodeKeys.PutU32(id.Offset)
			nodeKeys.PutU32(id.Length)
		} else {
			nodeKeys.PutU32(^uint32(0))
			nodeKeys.PutU32(0)
		}
	}

	// Bucket edges per source/dest node, sorted by (etype, other) within
	// each node's slice (spec invariant 2).
	outByNode := make(map[uint32][]model.Neighbor, len(nodes))
	inByNode := make(map[uint32][]model.Neighbor, len(nodes))
	edgeByTriple := make(map[model.Edge]map[model.PropKeyID]model.PropValue, len(in.Edges))
	for _, e := range in.Edges {
		sp, dp := physOf[e.Src], physOf[e.Dst]
		outByNode[sp] = append(outByNode[sp], model.Neighbor{Etype: e.Etype, Other: e.Dst})
		inByNode[dp] = append(inByNode[dp], model.Neighbor{Etype: e.Etype, Other: e.Src})
		edgeByTriple[model.Edge{Src: e.Src, Etype: e.Etype, Dst: e.Dst}] = e.Props
	}
	for _, nb := range outByNode {
		sort.Slice(nb, func(i, j int) bool { return nb[i].Less(nb[j]) })
	}
	for _, nb := range inByNode {
		sort.Slice(nb, func(i, j int) bool { return nb[i].Less(nb[j]) })
	}

	outOffsets := codec.NewBuilder((len(nodes) + 1) * 8)
	outDst := codec.NewBuilder(len(in.Edges) * 8)
	outEtype := codec.NewBuilder(len(in.Edges) * 4)
	edgeIndexOf := make(map[model.Edge]uint32, len(in.Edges))
	var cursor uint32
	for i := range nodes {
		outOffsets.PutU64(uint64(cursor))
		for _, nb := range outByNode[uint32(i)] {
			edgeIndexOf[model.Edge{Src: nodes[i].ID, Etype: nb.Etype, Dst: nb.Other}] = cursor
			outDst.PutU64(uint64(nb.Other))
			outEtype.PutU32(uint32(nb.Etype))
			cursor++
		}
	}
	outOffsets.PutU64(uint64(cursor))

	inOffsets := codec.NewBuilder((len(nodes) + 1) * 8)
	inSrc := codec.NewBuilder(len(in.Edges) * 8)
	inEtype := codec.NewBuilder(len(in.Edges) * 4)
	var inCursor uint32
	for i := range nodes {
		inOffsets.PutU64(uint64(inCursor))
		for _, nb := range inByNode[uint32(i)] {
			inSrc.PutU64(uint64(nb.Other))
			inEtype.PutU32(uint32(nb.Etype))
			inCursor++
		}
	}
	inOffsets.PutU64(uint64(inCursor))

	// nodeProps: offset table (N+1 x u32) + block data.
	nodeBlocks := codec.NewBuilder(0)
	nodePropsOffsets := codec.NewBuilder((len(nodes) + 1) * 4)
	for _, n := range nodes {
		nodePropsOffsets.PutU32(uint32(nodeBlocks.Len()))
		labels := append([]model.LabelID(nil), n.Labels...)
		sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
		encodeNodeBlock(nodeBlocks, labels, n.Props, sr)
	}
	nodePropsOffsets.PutU32(uint32(nodeBlocks.Len()))
	nodeProps := codec.NewBuilder(0)
	nodeProps.PutRaw(nodePropsOffsets.Bytes())
	nodeProps.PutRaw(nodeBlocks.Bytes())

	// edgeProps: indexed by the global out-CSR slot computed above.
	edgeBlocks := codec.NewBuilder(0)
	edgePropsOffsets := codec.NewBuilder((int(cursor) + 1) * 4)
	slots := make([]map[model.PropKeyID]model.PropValue, cursor)
	for triple, props := range edgeByTriple {
		if idx, ok := edgeIndexOf[triple]; ok {
			slots[idx] = props
		}
	}
	for _, props := range slots {
		edgePropsOffsets.PutU32(uint32(edgeBlocks.Len()))
		encodeEdgeBlock(edgeBlocks, props, sr)
	}
	edgePropsOffsets.PutU32(uint32(edgeBlocks.Len()))
	edgeProps := codec.NewBuilder(0)
	edgeProps.PutRaw(edgePropsOffsets.Bytes())
	edgeProps.PutRaw(edgeBlocks.Bytes())

	vectorManifests := buildVectorManifests(in.Vectors)

	keyCount := 0
	for _, n := range nodes {
		if n.Key != "" {
			keyCount++
		}
	}
	bucketCount := nextPow2(uint32(keyCount)*keyIndexLoadFactor + 1)
	buckets, entries := buildKeyIndex(nodes, bucketCount, sr)

	schemaBlock := buildSchemaBlock(in.Schema, sr)

	out := codec.NewBuilder(0)
	out.PutSection(encodeHeader(in.Gen, uint64(len(nodes)), uint64(cursor)))
	out.PutSection(nodeIds.Bytes())
	out.PutSection(nodeKeys.Bytes())
	out.PutSection(outOffsets.Bytes())
	out.PutSection(outDst.Bytes())
	out.PutSection(outEtype.Bytes())
	out.PutSection(inOffsets.Bytes())
	out.PutSection(inSrc.Bytes())
	out.PutSection(inEtype.Bytes())
	out.PutSection(nodeProps.Bytes())
	out.PutSection(edgeProps.Bytes())
	out.PutSection(vectorManifests)
	out.PutSection(buckets)
	out.PutSection(entries)
	out.PutSection(schemaBlock)
	out.PutSection(stringData)
	return out.Bytes()
}

func nextPow2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

func encodeHeader(gen, nodeCount, edgeCount uint64) []byte {
	b := codec.NewBuilder(24)
	b.PutU64(gen)
	b.PutU64(nodeCount)
	b.PutU64(edgeCount)
	return b.Bytes()
}
