// Package btree implements the persistent, disk-resident B+-tree index
// (spec §4.3): an order-parameterised tree keyed by string, with
// record-identifier-list values, point and range lookups, and a
// bulk-load mode for pre-sorted input.
//
// The node/split/iterator shape here is grounded on
// _examples/intellect4all-storage-engines/btree (Page/Cell-oriented
// B-tree with its own Pager and a seek/Next range iterator), adapted to
// spec's exact on-disk layout (§4.3), its string-keyed RID-list leaves
// (rather than a generic key/value cell store), and to run over this
// repository's own buffer.Manager rather than a private pager.
package btree

import "github.com/jgodjo/imdbdb/rid"

// noParent is the sentinel parent page id for the root.
const noParent = -1

// noNextLeaf is the sentinel "no next leaf" forward link.
const noNextLeaf = -1

// node is the in-memory representation of one B+-tree page: either an
// internal node (keys + children) or a leaf (keys + RID lists +
// forward link). Exactly one node occupies one page (spec §4.3).
type node struct {
	pageId   int
	parentId int
	isLeaf   bool

	// internal: len(children) == len(keys)+1
	keys     []string
	children []int

	// leaf
	rids     [][]rid.RID // parallel to keys
	nextLeaf int
}

func newLeaf(pageId, parentId int) *node {
	return &node{pageId: pageId, parentId: parentId, isLeaf: true, nextLeaf: noNextLeaf}
}

func newInternal(pageId, parentId int) *node {
	return &node{pageId: pageId, parentId: parentId, isLeaf: false}
}

// findChild returns the index of the child to descend into for key, per
// spec §4.3: pick child i such that key < separator[i], else the last
// child.
func (n *node) findChild(key string) int {
	for i, sep := range n.keys {
		if key < sep {
			return i
		}
	}
	return len(n.children) - 1
}

// leafKeyIndex returns the index of key in a leaf's ascending key list, or
// the insertion point and false if absent.
func (n *node) leafKeyIndex(key string) (int, bool) {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if n.keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(n.keys) && n.keys[lo] == key {
		return lo, true
	}
	return lo, false
}
