package btree

import "github.com/jgodjo/imdbdb/rid"

// Iterator yields RIDs in ascending key order. The zero value is a valid,
// already-exhausted iterator (used for empty Search/RangeSearch results).
type Iterator struct {
	tree *Tree

	// pending services Search: a pre-collected list of RIDs for a single key.
	pending []rid.RID

	// the following service RangeSearch: a live walk across the leaf chain.
	leaf      *node
	idx       int
	ridCursor int
	hi        string
	bounded   bool
	done      bool
}

// Next returns the next RID and true, or the zero RID and false once
// exhausted.
func (it *Iterator) Next() (rid.RID, bool) {
	if len(it.pending) > 0 {
		r := it.pending[0]
		it.pending = it.pending[1:]
		return r, true
	}
	if !it.bounded || it.done || it.tree == nil {
		return rid.RID{}, false
	}
	for {
		if it.leaf == nil {
			it.done = true
			return rid.RID{}, false
		}
		if it.idx >= len(it.leaf.keys) {
			if it.leaf.nextLeaf == noNextLeaf {
				it.done = true
				return rid.RID{}, false
			}
			next, err := it.tree.loadNode(it.leaf.nextLeaf)
			if err != nil {
				it.done = true
				return rid.RID{}, false
			}
			it.leaf = next
			it.idx = 0
			continue
		}
		key := it.leaf.keys[it.idx]
		if key > it.hi {
			it.done = true
			return rid.RID{}, false
		}
		rids := it.leaf.rids[it.idx]
		if it.ridCursor >= len(rids) {
			it.idx++
			it.ridCursor = 0
			continue
		}
		r := rids[it.ridCursor]
		it.ridCursor++
		return r, true
	}
}
