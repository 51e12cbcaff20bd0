package btree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/jgodjo/imdbdb/buffer"
	"github.com/jgodjo/imdbdb/config"
	"github.com/jgodjo/imdbdb/rid"
)

// rootPageId is fixed: page 0 always holds the root, even across splits.
// Rather than relocating the root pointer on a root split (spec's "allocate
// a new root page"), this implementation keeps page 0's identity stable by
// migrating the *old* root's content out to two freshly allocated pages and
// rewriting page 0 as the new internal separator node. This satisfies
// spec §4.3's persistence rule verbatim ("on open, page 0 is probed for a
// valid header and treated as the root") without needing a separate
// root-pointer record.
const rootPageId = 0

// ErrUnsortedBulkLoad is a ProgrammerError (spec §7): bulk-load insertion
// received a key smaller than the previous one.
var ErrUnsortedBulkLoad = errors.New("btree: bulk-load keys must be non-decreasing")

// ErrModeConflict signals Insert/InsertBulk misuse: a tree commits to one
// mode on its first insert.
var ErrModeConflict = errors.New("btree: cannot mix Insert and InsertBulk on the same tree")

type mode int

const (
	modeUnset mode = iota
	modeNormal
	modeBulk
)

// Tree is a persistent B+-tree index keyed by string, with one file shared
// with the rest of the engine's buffer pool.
type Tree struct {
	bm    *buffer.Manager
	file  string
	order int // M: max keys per node before splitting (normal mode)
	log   *logrus.Logger

	mode        mode
	hasLastKey  bool
	lastBulkKey string
}

// Open opens (or lazily creates) the B+-tree index stored in file, sharing
// bm's frame pool. order is the M parameter of spec §4.3 (typical value
// 200).
func Open(bm *buffer.Manager, file string, order int, log *logrus.Logger) (*Tree, error) {
	if order < 3 {
		return nil, fmt.Errorf("btree: order must be >= 3, got %d", order)
	}
	if log == nil {
		log = logrus.New()
	}
	t := &Tree{bm: bm, file: file, order: order, log: log}

	fr, err := bm.GetPage(file, rootPageId)
	if err != nil {
		return nil, err
	}
	if fr == nil {
		// fresh file: create an empty leaf root.
		root, err := bm.CreatePage(file)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, buffer.ErrNoVictim
		}
		leaf := newLeaf(rootPageId, noParent)
		copy(root.Data, marshal(leaf))
		bm.MarkDirty(file, rootPageId)
		bm.UnpinPage(file, rootPageId)
		if err := bm.Force(file); err != nil {
			return nil, err
		}
		return t, nil
	}
	if !looksLikeValidHeader(fr.Data) {
		bm.UnpinPage(file, rootPageId)
		t.log.WithField("component", "btree").Warn("page 0 failed header sanity check; treating as corrupt")
		return nil, fmt.Errorf("btree: %w: invalid root page header in %s", errCorruptHeader, file)
	}
	bm.UnpinPage(file, rootPageId)
	return t, nil
}

var errCorruptHeader = errors.New("corrupt page")

func (t *Tree) loadNode(pageId int) (*node, error) {
	fr, err := t.bm.GetPage(t.file, pageId)
	if err != nil {
		return nil, err
	}
	if fr == nil {
		return nil, buffer.ErrNoVictim
	}
	n := unmarshal(pageId, fr.Data)
	t.bm.UnpinPage(t.file, pageId)
	return n, nil
}

func (t *Tree) storeNode(n *node) error {
	fr, err := t.bm.GetPage(t.file, n.pageId)
	if err != nil {
		return err
	}
	if fr == nil {
		return buffer.ErrNoVictim
	}
	copy(fr.Data, marshal(n))
	t.bm.MarkDirty(t.file, n.pageId)
	t.bm.UnpinPage(t.file, n.pageId)
	return nil
}

func (t *Tree) allocPage() (int, error) {
	fr, err := t.bm.CreatePage(t.file)
	if err != nil {
		return 0, err
	}
	if fr == nil {
		return 0, buffer.ErrNoVictim
	}
	pid := fr.PageId
	t.bm.UnpinPage(t.file, pid)
	return pid, nil
}

func (t *Tree) setParent(childId, parentId int) error {
	n, err := t.loadNode(childId)
	if err != nil {
		return err
	}
	n.parentId = parentId
	return t.storeNode(n)
}

// splitThreshold returns the key-count limit for the tree's current mode
// (order in normal mode, order-1 in bulk mode, so a rightmost bulk leaf is
// never left over-full).
func (t *Tree) splitThreshold() int {
	if t.mode == modeBulk {
		return t.order - 1
	}
	return t.order
}

// overflows reports whether n must split before being stored. The order
// parameter alone is not sufficient to guarantee a node fits in one
// config.PageSize page (a leaf of order 200 holding 30-byte title keys
// serializes well past 4096 bytes long before 200 keys accumulate), so the
// serialized byte size (nodeByteSize, format.go) is the decisive check;
// the key-count threshold only bounds degenerate cases of very short keys.
func (t *Tree) overflows(n *node) bool {
	return len(n.keys) >= t.splitThreshold() || nodeByteSize(n) > config.PageSize
}

// Insert adds rid under key in normal mode (spec §4.3), creating the key
// if absent.
func (t *Tree) Insert(key string, r rid.RID) error {
	if t.mode == modeBulk {
		return ErrModeConflict
	}
	t.mode = modeNormal

	pageId := rootPageId
	for {
		n, err := t.loadNode(pageId)
		if err != nil {
			return err
		}
		if n.isLeaf {
			return t.insertIntoLeaf(n, key, r)
		}
		pageId = n.children[n.findChild(key)]
	}
}

func (t *Tree) insertIntoLeaf(leaf *node, key string, r rid.RID) error {
	idx, found := leaf.leafKeyIndex(key)
	if found {
		leaf.rids[idx] = append(leaf.rids[idx], r)
	} else {
		leaf.keys = append(leaf.keys, "")
		copy(leaf.keys[idx+1:], leaf.keys[idx:])
		leaf.keys[idx] = key

		leaf.rids = append(leaf.rids, nil)
		copy(leaf.rids[idx+1:], leaf.rids[idx:])
		leaf.rids[idx] = []rid.RID{r}
	}
	if !t.overflows(leaf) {
		return t.storeNode(leaf)
	}
	return t.splitLeaf(leaf)
}

// InsertBulk adds rid under key assuming keys arrive in non-decreasing
// order (spec §4.3 bulk-load mode): it navigates only to the rightmost
// leaf and splits with threshold order-1 so the final leaf is never
// over-full.
func (t *Tree) InsertBulk(key string, r rid.RID) error {
	if t.mode == modeNormal {
		return ErrModeConflict
	}
	if t.hasLastKey && key < t.lastBulkKey {
		return fmt.Errorf("%w: got %q after %q", ErrUnsortedBulkLoad, key, t.lastBulkKey)
	}
	t.mode = modeBulk
	t.hasLastKey = true
	t.lastBulkKey = key

	pageId := rootPageId
	for {
		n, err := t.loadNode(pageId)
		if err != nil {
			return err
		}
		if n.isLeaf {
			return t.appendToRightmostLeaf(n, key, r)
		}
		pageId = n.children[len(n.children)-1]
	}
}

func (t *Tree) appendToRightmostLeaf(leaf *node, key string, r rid.RID) error {
	if len(leaf.keys) > 0 && leaf.keys[len(leaf.keys)-1] == key {
		leaf.rids[len(leaf.rids)-1] = append(leaf.rids[len(leaf.rids)-1], r)
	} else {
		leaf.keys = append(leaf.keys, key)
		leaf.rids = append(leaf.rids, []rid.RID{r})
	}
	if !t.overflows(leaf) {
		return t.storeNode(leaf)
	}
	return t.splitLeaf(leaf)
}

// splitLeaf splits an over-full leaf at floor(size/2), promoting the
// sibling's first key to the parent (spec §4.3 "Leaf split").
func (t *Tree) splitLeaf(leaf *node) error {
	mid := len(leaf.keys) / 2
	rightKeys := append([]string(nil), leaf.keys[mid:]...)
	rightRids := append([][]rid.RID(nil), leaf.rids[mid:]...)
	leftKeys := append([]string(nil), leaf.keys[:mid]...)
	leftRids := append([][]rid.RID(nil), leaf.rids[:mid]...)
	oldNext := leaf.nextLeaf

	if leaf.pageId == rootPageId {
		leftId, err := t.allocPage()
		if err != nil {
			return err
		}
		rightId, err := t.allocPage()
		if err != nil {
			return err
		}
		left := newLeaf(leftId, rootPageId)
		left.keys, left.rids, left.nextLeaf = leftKeys, leftRids, rightId
		right := newLeaf(rightId, rootPageId)
		right.keys, right.rids, right.nextLeaf = rightKeys, rightRids, oldNext
		if err := t.storeNode(left); err != nil {
			return err
		}
		if err := t.storeNode(right); err != nil {
			return err
		}
		newRoot := newInternal(rootPageId, noParent)
		newRoot.keys = []string{rightKeys[0]}
		newRoot.children = []int{leftId, rightId}
		return t.storeNode(newRoot)
	}

	siblingId, err := t.allocPage()
	if err != nil {
		return err
	}
	leaf.keys, leaf.rids = leftKeys, leftRids
	sibling := newLeaf(siblingId, leaf.parentId)
	sibling.keys, sibling.rids, sibling.nextLeaf = rightKeys, rightRids, oldNext
	leaf.nextLeaf = siblingId
	if err := t.storeNode(leaf); err != nil {
		return err
	}
	if err := t.storeNode(sibling); err != nil {
		return err
	}
	return t.insertIntoParent(leaf.parentId, rightKeys[0], leaf.pageId, siblingId)
}

// insertIntoParent inserts separator key with right child newChildId,
// positioned immediately after leftChildId, splitting the parent if it
// overflows.
func (t *Tree) insertIntoParent(parentId int, key string, leftChildId, newChildId int) error {
	parent, err := t.loadNode(parentId)
	if err != nil {
		return err
	}
	pos := 0
	for i, c := range parent.children {
		if c == leftChildId {
			pos = i
			break
		}
	}
	parent.keys = append(parent.keys, "")
	copy(parent.keys[pos+1:], parent.keys[pos:])
	parent.keys[pos] = key

	parent.children = append(parent.children, 0)
	copy(parent.children[pos+2:], parent.children[pos+1:])
	parent.children[pos+1] = newChildId

	if !t.overflows(parent) {
		return t.storeNode(parent)
	}
	return t.splitInternal(parent)
}

// splitInternal splits an over-full internal node at floor(size/2); the
// middle key is promoted to the parent (not duplicated), and moved
// children's parent pointers are reassigned (spec §4.3 "Internal split").
func (t *Tree) splitInternal(n *node) error {
	mid := len(n.keys) / 2
	promoted := n.keys[mid]
	leftKeys := append([]string(nil), n.keys[:mid]...)
	leftChildren := append([]int(nil), n.children[:mid+1]...)
	rightKeys := append([]string(nil), n.keys[mid+1:]...)
	rightChildren := append([]int(nil), n.children[mid+1:]...)

	if n.pageId == rootPageId {
		leftId, err := t.allocPage()
		if err != nil {
			return err
		}
		rightId, err := t.allocPage()
		if err != nil {
			return err
		}
		left := newInternal(leftId, rootPageId)
		left.keys, left.children = leftKeys, leftChildren
		right := newInternal(rightId, rootPageId)
		right.keys, right.children = rightKeys, rightChildren
		if err := t.storeNode(left); err != nil {
			return err
		}
		if err := t.storeNode(right); err != nil {
			return err
		}
		for _, c := range leftChildren {
			if err := t.setParent(c, leftId); err != nil {
				return err
			}
		}
		for _, c := range rightChildren {
			if err := t.setParent(c, rightId); err != nil {
				return err
			}
		}
		newRoot := newInternal(rootPageId, noParent)
		newRoot.keys = []string{promoted}
		newRoot.children = []int{leftId, rightId}
		return t.storeNode(newRoot)
	}

	siblingId, err := t.allocPage()
	if err != nil {
		return err
	}
	n.keys, n.children = leftKeys, leftChildren
	sibling := newInternal(siblingId, n.parentId)
	sibling.keys, sibling.children = rightKeys, rightChildren
	if err := t.storeNode(n); err != nil {
		return err
	}
	if err := t.storeNode(sibling); err != nil {
		return err
	}
	for _, c := range rightChildren {
		if err := t.setParent(c, siblingId); err != nil {
			return err
		}
	}
	return t.insertIntoParent(n.parentId, promoted, n.pageId, siblingId)
}

// Search returns an iterator over the RIDs stored for key, empty if key is
// absent.
func (t *Tree) Search(key string) (*Iterator, error) {
	leaf, _, err := t.descendToLeaf(key)
	if err != nil {
		return nil, err
	}
	if i, found := leaf.leafKeyIndex(key); found {
		return &Iterator{pending: append([]rid.RID(nil), leaf.rids[i]...)}, nil
	}
	return &Iterator{}, nil
}

// RangeSearch returns an iterator over every RID for every key in [lo,
// hi], ascending by key (spec §4.3). lo > hi yields an empty iterator.
func (t *Tree) RangeSearch(lo, hi string) (*Iterator, error) {
	if lo > hi {
		return &Iterator{}, nil
	}
	leaf, idx, err := t.descendToLeaf(lo)
	if err != nil {
		return nil, err
	}
	return &Iterator{tree: t, leaf: leaf, idx: idx, hi: hi, bounded: true}, nil
}

// descendToLeaf walks from the root to the leaf that would contain key,
// returning the leaf and the index of the first key >= key within it.
func (t *Tree) descendToLeaf(key string) (*node, int, error) {
	pageId := rootPageId
	for {
		n, err := t.loadNode(pageId)
		if err != nil {
			return nil, 0, err
		}
		if n.isLeaf {
			idx, _ := n.leafKeyIndex(key)
			return n, idx, nil
		}
		pageId = n.children[n.findChild(key)]
	}
}

// Close flushes the index file to disk. After a logical batch (end of
// bulk load, end of query) the owning file should be force-flushed (spec
// §4.3 Persistence).
func (t *Tree) Close() error {
	return t.bm.Force(t.file)
}

// sortedKeys is a small test/debug helper that walks the leaf chain from
// the leftmost leaf and returns every key in ascending order.
func (t *Tree) sortedKeys() ([]string, error) {
	pageId := rootPageId
	for {
		n, err := t.loadNode(pageId)
		if err != nil {
			return nil, err
		}
		if n.isLeaf {
			break
		}
		pageId = n.children[0]
	}
	var out []string
	for pageId != noNextLeaf {
		n, err := t.loadNode(pageId)
		if err != nil {
			return nil, err
		}
		out = append(out, n.keys...)
		pageId = n.nextLeaf
	}
	if !sort.StringsAreSorted(out) {
		return out, fmt.Errorf("btree: leaf chain is not sorted: %v", out)
	}
	return out, nil
}
