package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jgodjo/imdbdb/config"
)

// headerSize is the 8-byte page header: 4-byte page identifier followed
// by a 4-byte row count (spec §3).
const headerSize = 8

// ErrCorrupt is returned when a page's embedded identifier disagrees with
// the identifier it was fetched under (spec §3 invariant, §7 CorruptPage).
var ErrCorrupt = errors.New("record: corrupt page")

// Row is a single decoded record: one string value per column of its
// table, in schema order.
type Row struct {
	Table  Table
	Values []string
}

// Page is one 4 KiB block of fixed-width rows for a single table,
// appended in insertion order. Pages never shrink; rows are never deleted
// (spec §3).
type Page struct {
	table Table
	data  []byte // exactly config.PageSize bytes
}

// MaxRowsPerPage returns floor((PageSize-headerSize)/rowSize) for t.
func MaxRowsPerPage(t Table) int {
	return (config.PageSize - headerSize) / RowSize(t)
}

// NewPage creates a fresh, empty page for table t stamped with pageId.
func NewPage(t Table, pageId int) *Page {
	p := &Page{table: t, data: make([]byte, config.PageSize)}
	binary.BigEndian.PutUint32(p.data[0:4], uint32(pageId))
	binary.BigEndian.PutUint32(p.data[4:8], 0)
	return p
}

// LoadFromBytes wraps an existing 4 KiB buffer (e.g. a buffer pool
// frame's Data) as a page of table t, without copying. If expectedPageId
// disagrees with the page id embedded in the header, ErrCorrupt is
// returned (spec §3 invariant).
func LoadFromBytes(t Table, expectedPageId int, b []byte) (*Page, error) {
	if len(b) != config.PageSize {
		return nil, fmt.Errorf("record: page buffer must be %d bytes, got %d", config.PageSize, len(b))
	}
	p := &Page{table: t, data: b}
	if p.PageId() != expectedPageId {
		return nil, ErrCorrupt
	}
	if p.RowCount() < 0 || p.RowCount() > MaxRowsPerPage(t) {
		return nil, ErrCorrupt
	}
	return p, nil
}

// PageId returns the page identifier embedded in the header.
func (p *Page) PageId() int {
	return int(int32(binary.BigEndian.Uint32(p.data[0:4])))
}

// RowCount returns the number of rows currently stored.
func (p *Page) RowCount() int {
	return int(int32(binary.BigEndian.Uint32(p.data[4:8])))
}

func (p *Page) setRowCount(n int) {
	binary.BigEndian.PutUint32(p.data[4:8], uint32(n))
}

// IsFull reports whether the page has no room for another row.
func (p *Page) IsFull() bool {
	return p.RowCount() >= MaxRowsPerPage(p.table)
}

// RawBytes returns the page's backing buffer.
func (p *Page) RawBytes() []byte {
	return p.data
}

func (p *Page) slotOffset(slot int) int {
	return headerSize + slot*RowSize(p.table)
}

// GetRow returns the row at slotId, or (Row{}, false) if slotId is out of
// range (spec §4.1: constant-time access, offset = header + slot*rowSize).
func (p *Page) GetRow(slotId int) (Row, bool) {
	if slotId < 0 || slotId >= p.RowCount() {
		return Row{}, false
	}
	widths := ColumnWidths[p.table]
	off := p.slotOffset(slotId)
	values := make([]string, len(widths))
	for i, w := range widths {
		values[i] = decodeField(p.data[off : off+w])
		off += w
	}
	return Row{Table: p.table, Values: values}, true
}

// InsertRow appends row at the next slot and returns its slot id. It
// returns (0, false) when the page is full (spec §4.1 FULL sentinel,
// never mutating the page).
func (p *Page) InsertRow(row Row) (int, bool) {
	if p.IsFull() {
		return 0, false
	}
	widths := ColumnWidths[p.table]
	if len(row.Values) != len(widths) {
		panic(fmt.Sprintf("record: table %s expects %d columns, got %d", p.table, len(widths), len(row.Values)))
	}
	slot := p.RowCount()
	off := p.slotOffset(slot)
	for i, w := range widths {
		encodeField(p.data[off:off+w], row.Values[i])
		off += w
	}
	p.setRowCount(slot + 1)
	return slot, true
}

// encodeField writes s into buf, right space-padded, truncating if s is
// longer than buf (spec §3).
func encodeField(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = ' '
	}
}

// decodeField trims the trailing space padding of buf.
func decodeField(buf []byte) string {
	end := len(buf)
	for end > 0 && buf[end-1] == ' ' {
		end--
	}
	return string(buf[:end])
}
