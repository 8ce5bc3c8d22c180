package mst

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// EmptyRootHash is the root hash of a tree with no entries.
var EmptyRootHash = blake3.Sum256(nil)

// leaf is one key's position in the tree: its value hash and the
// layer it was deterministically assigned to.
type leaf struct {
	key   string
	value [32]byte
	layer int
}

// nodeEntry is one key held directly at a node's layer, together with
// the subtree (always one layer lower) holding keys between it and
// the next entry.
type nodeEntry struct {
	Key   string
	Value [32]byte
	Right *node
}

// node is one layer of the tree. Left holds the subtree for keys
// below the first entry; each entry's Right holds the subtree for
// keys between it and the following entry (or the end, for the last
// entry).
type node struct {
	Left    *node
	Entries []nodeEntry
	hash    [32]byte
}

func childHash(n *node) [32]byte {
	if n == nil {
		return EmptyRootHash
	}
	return n.hash
}

// computeHash derives this node's hash from its canonical encoding:
//
//	uvarint(entry count)
//	child hash of Left
//	for each entry: uvarint(len(key)) || key || 32-byte value || child hash of Right
//
// The encoding depends only on the node's content, never on how it was
// built, so identical key sets always hash identically.
func (n *node) computeHash() {
	var buf []byte
	var scratch [binary.MaxVarintLen64]byte

	w := binary.PutUvarint(scratch[:], uint64(len(n.Entries)))
	buf = append(buf, scratch[:w]...)

	left := childHash(n.Left)
	buf = append(buf, left[:]...)

	for _, e := range n.Entries {
		w := binary.PutUvarint(scratch[:], uint64(len(e.Key)))
		buf = append(buf, scratch[:w]...)
		buf = append(buf, e.Key...)
		buf = append(buf, e.Value[:]...)
		right := childHash(e.Right)
		buf = append(buf, right[:]...)
	}

	n.hash = blake3.Sum256(buf)
}

// buildTree builds the full tree from a key-sorted, duplicate-free
// slice of leaves and returns its root node (nil for an empty tree).
func buildTree(leaves []leaf) *node {
	if len(leaves) == 0 {
		return nil
	}
	top := leaves[0].layer
	for _, l := range leaves {
		if l.layer > top {
			top = l.layer
		}
	}
	return buildAtLayer(leaves, top)
}

// buildAtLayer builds the subtree covering leaves at exactly layer
// (and, via recursion, every leaf below it). leaves must be sorted by
// key and contain no entry with layer greater than layer.
func buildAtLayer(leaves []leaf, layer int) *node {
	if len(leaves) == 0 {
		return nil
	}
	if layer < 0 {
		// Every remaining leaf claims a layer below zero, which never
		// happens by construction; treat as a single bottom layer.
		layer = 0
	}

	i := 0
	n := &node{}

	var below []leaf
	for i < len(leaves) && leaves[i].layer < layer {
		below = append(below, leaves[i])
		i++
	}
	n.Left = buildAtLayer(below, layer-1)

	for i < len(leaves) {
		l := leaves[i]
		i++
		e := nodeEntry{Key: l.key, Value: l.value}

		var seg []leaf
		for i < len(leaves) && leaves[i].layer < layer {
			seg = append(seg, leaves[i])
			i++
		}
		e.Right = buildAtLayer(seg, layer-1)
		n.Entries = append(n.Entries, e)
	}

	n.computeHash()
	return n
}
