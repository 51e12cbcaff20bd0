package btree_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jgodjo/imdbdb/buffer"
	"github.com/jgodjo/imdbdb/btree"
	"github.com/jgodjo/imdbdb/diskio"
	"github.com/jgodjo/imdbdb/rid"
)

const indexFile = "idx.bin"

func newTree(t *testing.T, order int) *btree.Tree {
	t.Helper()
	dio := diskio.NewManager(t.TempDir())
	bm := buffer.NewManager(dio, 64, nil)
	tr, err := btree.Open(bm, indexFile, order, nil)
	require.NoError(t, err)
	return tr
}

func drain(t *testing.T, it *btree.Iterator) []rid.RID {
	t.Helper()
	var out []rid.RID
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out
}

func TestSearchMissingKeyIsEmpty(t *testing.T) {
	tr := newTree(t, 4)
	it, err := tr.Search("nope")
	require.NoError(t, err)
	require.Empty(t, drain(t, it))
}

func TestInsertThenSearchRoundTrips(t *testing.T) {
	tr := newTree(t, 4)
	require.NoError(t, tr.Insert("tt0001", rid.RID{PageId: 1, SlotId: 0}))
	require.NoError(t, tr.Insert("tt0002", rid.RID{PageId: 1, SlotId: 1}))

	it, err := tr.Search("tt0001")
	require.NoError(t, err)
	require.Equal(t, []rid.RID{{PageId: 1, SlotId: 0}}, drain(t, it))
}

func TestInsertDuplicateKeyAccumulatesRIDs(t *testing.T) {
	tr := newTree(t, 4)
	require.NoError(t, tr.Insert("tt0001", rid.RID{PageId: 1, SlotId: 0}))
	require.NoError(t, tr.Insert("tt0001", rid.RID{PageId: 1, SlotId: 1}))

	it, err := tr.Search("tt0001")
	require.NoError(t, err)
	require.ElementsMatch(t, []rid.RID{{PageId: 1, SlotId: 0}, {PageId: 1, SlotId: 1}}, drain(t, it))
}

func TestInsertForcesSplitsAndStaysSearchable(t *testing.T) {
	tr := newTree(t, 4)
	const n = 50
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%04d", i)
		require.NoError(t, tr.Insert(key, rid.RID{PageId: i, SlotId: 0}))
	}
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%04d", i)
		it, err := tr.Search(key)
		require.NoError(t, err)
		got := drain(t, it)
		require.Len(t, got, 1, "key %s", key)
		require.Equal(t, i, got[0].PageId)
	}
}

func TestRangeSearchReturnsAscendingInclusiveBounds(t *testing.T) {
	tr := newTree(t, 4)
	const n = 30
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%04d", i)
		require.NoError(t, tr.Insert(key, rid.RID{PageId: i, SlotId: 0}))
	}
	it, err := tr.RangeSearch("tt0005", "tt0010")
	require.NoError(t, err)
	got := drain(t, it)
	require.Len(t, got, 6)
	for i, r := range got {
		require.Equal(t, 5+i, r.PageId)
	}
}

func TestRangeSearchEmptyWhenLoGreaterThanHi(t *testing.T) {
	tr := newTree(t, 4)
	require.NoError(t, tr.Insert("tt0001", rid.RID{PageId: 1, SlotId: 0}))
	it, err := tr.RangeSearch("z", "a")
	require.NoError(t, err)
	require.Empty(t, drain(t, it))
}

func TestBulkLoadRejectsDecreasingKeys(t *testing.T) {
	tr := newTree(t, 4)
	require.NoError(t, tr.InsertBulk("tt0002", rid.RID{PageId: 1, SlotId: 0}))
	err := tr.InsertBulk("tt0001", rid.RID{PageId: 2, SlotId: 0})
	require.ErrorIs(t, err, btree.ErrUnsortedBulkLoad)
}

func TestBulkLoadBuildsSearchableTree(t *testing.T) {
	tr := newTree(t, 4)
	const n = 60
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%04d", i)
		require.NoError(t, tr.InsertBulk(key, rid.RID{PageId: i, SlotId: 0}))
	}
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%04d", i)
		it, err := tr.Search(key)
		require.NoError(t, err)
		got := drain(t, it)
		require.Len(t, got, 1, "key %s", key)
		require.Equal(t, i, got[0].PageId)
	}
}

// TestBulkLoadAtProductionOrderWithMaxWidthKeysStaysSearchable guards
// against a node splitting on key count alone while its serialized form
// overflows config.PageSize: at catalog.TitleIndexOrder (200) with
// 30-byte title-width keys, a leaf holding anywhere near 200 entries does
// not fit in one page, so every split must be driven by the node's actual
// serialized size, not just len(keys) < order.
func TestBulkLoadAtProductionOrderWithMaxWidthKeysStaysSearchable(t *testing.T) {
	tr := newTree(t, 200)
	const n = 1000
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%030d", i) // 30 bytes, ascending lexically and numerically
		require.NoError(t, tr.InsertBulk(key, rid.RID{PageId: i, SlotId: 0}))
	}
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%030d", i)
		it, err := tr.Search(key)
		require.NoError(t, err)
		got := drain(t, it)
		require.Len(t, got, 1, "key %s", key)
		require.Equal(t, i, got[0].PageId)
	}

	lo := fmt.Sprintf("%030d", 0)
	hi := fmt.Sprintf("%030d", n-1)
	it, err := tr.RangeSearch(lo, hi)
	require.NoError(t, err)
	got := drain(t, it)
	require.Len(t, got, n)
	seen := make(map[int]bool, n)
	for _, r := range got {
		seen[r.PageId] = true
	}
	require.Len(t, seen, n, "every distinct RID must be returned exactly once")
}

func TestInsertAfterBulkLoadIsRejected(t *testing.T) {
	tr := newTree(t, 4)
	require.NoError(t, tr.InsertBulk("tt0001", rid.RID{PageId: 1, SlotId: 0}))
	err := tr.Insert("tt0002", rid.RID{PageId: 2, SlotId: 0})
	require.ErrorIs(t, err, btree.ErrModeConflict)
}

func TestTreeSurvivesReopenAfterForce(t *testing.T) {
	dir := t.TempDir()
	dio := diskio.NewManager(dir)
	bm := buffer.NewManager(dio, 64, nil)
	tr, err := btree.Open(bm, indexFile, 4, nil)
	require.NoError(t, err)

	const n = 40
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%04d", i)
		require.NoError(t, tr.Insert(key, rid.RID{PageId: i, SlotId: 0}))
	}
	require.NoError(t, tr.Close())

	dio2 := diskio.NewManager(dir)
	bm2 := buffer.NewManager(dio2, 64, nil)
	reopened, err := btree.Open(bm2, indexFile, 4, nil)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("tt%04d", i)
		it, err := reopened.Search(key)
		require.NoError(t, err)
		got := drain(t, it)
		require.Len(t, got, 1, "key %s", key)
		require.Equal(t, i, got[0].PageId)
	}
}
