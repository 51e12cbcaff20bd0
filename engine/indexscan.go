package engine

import (
	"github.com/jgodjo/imdbdb/btree"
	"github.com/jgodjo/imdbdb/buffer"
	"github.com/jgodjo/imdbdb/record"
	"github.com/jgodjo/imdbdb/tuple"
)

// IndexScan is the index scan operator (spec §4.4.2): it produces every
// tuple whose indexed key lies in [lo, hi], ascending by key, by walking
// the underlying B+-tree's range iterator and fetching one row per RID.
type IndexScan struct {
	bm      *buffer.Manager
	file    string
	table   record.Table
	columns []string
	tree    *btree.Tree
	lo, hi  string

	it *btree.Iterator
}

// NewIndexScan constructs an index scan over tree, reading rows from
// file via bm.
func NewIndexScan(bm *buffer.Manager, file string, table record.Table, columns []string, tree *btree.Tree, lo, hi string) *IndexScan {
	return &IndexScan{bm: bm, file: file, table: table, columns: columns, tree: tree, lo: lo, hi: hi}
}

// Open starts (or restarts) the range search.
func (s *IndexScan) Open() error {
	it, err := s.tree.RangeSearch(s.lo, s.hi)
	if err != nil {
		return err
	}
	s.it = it
	return nil
}

// Next fetches the row for the next matching RID, silently skipping
// RIDs whose page fetch fails (spec §4.4.2: "a missing page is not
// fatal to an index scan").
func (s *IndexScan) Next() (tuple.Tuple, bool, error) {
	for {
		r, ok := s.it.Next()
		if !ok {
			return tuple.Tuple{}, false, nil
		}
		fr, err := s.bm.GetPage(s.file, r.PageId)
		if err != nil || fr == nil {
			continue
		}
		p, err := record.LoadFromBytes(s.table, r.PageId, fr.Data)
		if err != nil {
			s.bm.UnpinPage(s.file, r.PageId)
			continue
		}
		row, ok := p.GetRow(r.SlotId)
		s.bm.UnpinPage(s.file, r.PageId)
		if !ok {
			continue
		}
		return tuple.New(s.columns, row.Values), true, nil
	}
}

// Close is a no-op: the range iterator holds no pinned pages of its own.
func (s *IndexScan) Close() error {
	return nil
}
