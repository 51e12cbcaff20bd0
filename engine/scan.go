package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/jgodjo/imdbdb/buffer"
	"github.com/jgodjo/imdbdb/record"
	"github.com/jgodjo/imdbdb/tuple"
)

// Scan is the sequential scan operator (spec §4.4.1): it produces every
// row of file in (pageId, slotId) order, keeping at most one page pinned
// at a time.
type Scan struct {
	bm      *buffer.Manager
	file    string
	table   record.Table
	columns []string
	log     *logrus.Logger

	pageId  int
	page    *record.Page
	slot    int
	pinned  bool
}

// NewScan constructs a sequential scan over file, decoding rows as
// table and labelling tuple fields with columns (in schema order). A nil
// log falls back to a default logrus.Logger.
func NewScan(bm *buffer.Manager, file string, table record.Table, columns []string, log *logrus.Logger) *Scan {
	if log == nil {
		log = logrus.New()
	}
	return &Scan{bm: bm, file: file, table: table, columns: columns, log: log}
}

// Open resets the scan to its first page. Idempotent before Close.
func (s *Scan) Open() error {
	s.closePage()
	s.pageId = 0
	s.slot = 0
	s.page = nil
	return nil
}

// Next returns the next row as a tuple, or (zero, false, nil) once the
// file is exhausted.
func (s *Scan) Next() (tuple.Tuple, bool, error) {
	for {
		if s.page == nil {
			fr, err := s.bm.GetPage(s.file, s.pageId)
			if err != nil {
				return tuple.Tuple{}, false, err
			}
			if fr == nil {
				return tuple.Tuple{}, false, nil // end of file (spec §4.4.1)
			}
			p, err := record.LoadFromBytes(s.table, s.pageId, fr.Data)
			if err != nil {
				s.bm.UnpinPage(s.file, s.pageId)
				// CorruptPage (spec §7): log and degrade rather than abort
				// the whole scan, matching IndexScan's skip-and-continue.
				s.log.WithError(err).WithFields(logrus.Fields{
					"component": "scan", "file": s.file, "pageId": s.pageId,
				}).Warn("skipping corrupt page")
				s.pageId++
				continue
			}
			s.page = p
			s.pinned = true
			s.slot = 0
		}
		if s.slot >= s.page.RowCount() {
			s.closePage()
			s.pageId++
			continue
		}
		row, ok := s.page.GetRow(s.slot)
		s.slot++
		if !ok {
			continue
		}
		return tuple.New(s.columns, row.Values), true, nil
	}
}

func (s *Scan) closePage() {
	if s.pinned {
		s.bm.UnpinPage(s.file, s.pageId)
		s.pinned = false
	}
	s.page = nil
}

// Close releases whatever page is currently pinned.
func (s *Scan) Close() error {
	s.closePage()
	return nil
}
