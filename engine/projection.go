package engine

import (
	"errors"

	"github.com/jgodjo/imdbdb/buffer"
	"github.com/jgodjo/imdbdb/diskio"
	"github.com/jgodjo/imdbdb/record"
	"github.com/jgodjo/imdbdb/tuple"
)

// errOversizeMaterializedRow signals that a single projected row could
// not fit in a freshly-created page — unreachable in practice since
// record.Movies pages always hold at least one row, but guarded rather
// than silently dropped.
var errOversizeMaterializedRow = errors.New("engine: materialized row does not fit in a fresh page")

// ColumnMapping renames an input column to an output column (spec
// §4.4.4).
type ColumnMapping struct {
	In  string
	Out string
}

// MaterializeField describes one fixed-width field of the materialised
// row format, used for every output column except the designated
// identifier column (spec §4.4.4).
type MaterializeField struct {
	Column string
	Width  int
}

// Projection wraps a child operator and rearranges/renames its fields
// (spec §4.4.4). Constructed in pipelining mode by NewProjection, or in
// materialising mode by NewMaterializingProjection.
type Projection struct {
	child   Operator
	mapping []ColumnMapping

	materialize bool
	bm          *buffer.Manager
	dio         *diskio.Manager
	file        string
	idField     MaterializeField
	restFields  []MaterializeField

	started bool
	reader  *materializedReader
}

// NewProjection builds a pipelining-mode Projection: on each Next, it
// pulls one child tuple and rearranges it per mapping.
func NewProjection(child Operator, mapping []ColumnMapping) *Projection {
	return &Projection{child: child, mapping: mapping}
}

// NewMaterializingProjection builds a materialising-mode Projection. On
// its first Next, it drains child into file (created fresh via bm/dio),
// then rewinds and streams its own output back. idField is the
// designated identifier column (stored verbatim in the 9-byte movieId
// field of the backing Movies-shaped page); restFields are the other
// projected columns, concatenated at their fixed widths into the
// remaining 30-byte field (spec §4.4.4).
func NewMaterializingProjection(child Operator, mapping []ColumnMapping, bm *buffer.Manager, dio *diskio.Manager, file string, idField MaterializeField, restFields []MaterializeField) *Projection {
	return &Projection{
		child: child, mapping: mapping,
		materialize: true, bm: bm, dio: dio, file: file,
		idField: idField, restFields: restFields,
	}
}

func (p *Projection) Open() error {
	if p.materialize {
		if p.started {
			// a rewind (BNL inner close+open): re-read the already-built
			// file from the top rather than rebuilding it (spec §4.4.4,
			// §4.4.5 inner idempotence).
			return p.reader.Open()
		}
		return nil // building itself is deferred to the first Next
	}
	return p.child.Open()
}

func (p *Projection) remap(t tuple.Tuple) tuple.Tuple {
	cols := make([]string, len(p.mapping))
	vals := make([]string, len(p.mapping))
	for i, m := range p.mapping {
		v, _ := t.Get(m.In)
		cols[i] = m.Out
		vals[i] = v
	}
	return tuple.New(cols, vals)
}

func (p *Projection) Next() (tuple.Tuple, bool, error) {
	if !p.materialize {
		t, ok, err := p.child.Next()
		if err != nil || !ok {
			return tuple.Tuple{}, false, err
		}
		return p.remap(t), true, nil
	}
	if !p.started {
		if err := p.build(); err != nil {
			return tuple.Tuple{}, false, err
		}
		p.started = true
	}
	return p.reader.Next()
}

// build drains the child operator into a fresh copy of file (spec
// §4.4.4: "must delete any pre-existing file of the same name before
// writing so that re-execution is idempotent"), then opens a reader
// over it.
func (p *Projection) build() error {
	if err := p.dio.Truncate(p.file); err != nil {
		return err
	}
	if err := p.child.Open(); err != nil {
		return err
	}

	w := newMaterializedWriter(p.bm, p.file, p.idField, p.restFields)
	for {
		t, ok, err := p.child.Next()
		if err != nil {
			_ = p.child.Close()
			return err
		}
		if !ok {
			break
		}
		out := p.remap(t)
		if err := w.write(out); err != nil {
			_ = p.child.Close()
			return err
		}
	}
	if err := w.finish(); err != nil {
		_ = p.child.Close()
		return err
	}
	if err := p.child.Close(); err != nil {
		return err
	}

	cols := make([]string, 0, 1+len(p.restFields))
	cols = append(cols, p.idField.Column)
	for _, f := range p.restFields {
		cols = append(cols, f.Column)
	}
	p.reader = newMaterializedReader(p.bm, p.file, cols, p.restFields)
	return p.reader.Open()
}

func (p *Projection) Close() error {
	if p.materialize {
		if p.reader != nil {
			return p.reader.Close()
		}
		return nil
	}
	return p.child.Close()
}

// materializedWriter encodes projected tuples into record.Movies-shaped
// pages: field 0 is the 9-byte identifier, field 1 is the 30-byte
// concatenation of the remaining fields at their fixed widths (spec
// §4.4.4).
type materializedWriter struct {
	bm         *buffer.Manager
	file       string
	idField    MaterializeField
	restFields []MaterializeField

	pageId int
	page   *record.Page
}

func newMaterializedWriter(bm *buffer.Manager, file string, idField MaterializeField, restFields []MaterializeField) *materializedWriter {
	return &materializedWriter{bm: bm, file: file, idField: idField, restFields: restFields, page: record.NewPage(record.Movies, 0)}
}

func (w *materializedWriter) write(t tuple.Tuple) error {
	idVal, _ := t.Get(w.idField.Column)

	rest := make([]byte, 0, record.ColumnWidths[record.Movies][1])
	valueWidth := record.ColumnWidths[record.Movies][1]
	for _, f := range w.restFields {
		v, _ := t.Get(f.Column)
		field := make([]byte, f.Width)
		n := copy(field, v)
		for i := n; i < len(field); i++ {
			field[i] = ' '
		}
		rest = append(rest, field...)
	}
	if len(rest) > valueWidth {
		rest = rest[:valueWidth]
	}

	row := record.Row{Table: record.Movies, Values: []string{idVal, string(rest)}}
	if _, ok := w.page.InsertRow(row); ok {
		return nil
	}
	if err := w.flush(); err != nil {
		return err
	}
	w.page = record.NewPage(record.Movies, w.pageId)
	_, ok := w.page.InsertRow(row)
	if !ok {
		return errOversizeMaterializedRow
	}
	return nil
}

func (w *materializedWriter) flush() error {
	fr, err := w.bm.CreatePage(w.file)
	if err != nil {
		return err
	}
	if fr == nil {
		return buffer.ErrNoVictim
	}
	copy(fr.Data, w.page.RawBytes())
	w.bm.MarkDirty(w.file, fr.PageId)
	w.bm.UnpinPage(w.file, fr.PageId)
	w.pageId = fr.PageId + 1
	return nil
}

func (w *materializedWriter) finish() error {
	if err := w.flush(); err != nil {
		return err
	}
	return w.bm.Force(w.file)
}

// materializedReader reads back a file written by materializedWriter,
// splitting the concatenated rest field back into its original columns.
type materializedReader struct {
	bm         *buffer.Manager
	file       string
	columns    []string
	restFields []MaterializeField

	scan *Scan
}

func newMaterializedReader(bm *buffer.Manager, file string, columns []string, restFields []MaterializeField) *materializedReader {
	return &materializedReader{
		bm: bm, file: file, columns: columns, restFields: restFields,
		scan: NewScan(bm, file, record.Movies, []string{"id", "rest"}, nil),
	}
}

func (r *materializedReader) Open() error { return r.scan.Open() }

func (r *materializedReader) Next() (tuple.Tuple, bool, error) {
	t, ok, err := r.scan.Next()
	if err != nil || !ok {
		return tuple.Tuple{}, false, err
	}
	idVal, _ := t.Get("id")
	rest, _ := t.Get("rest")

	vals := make([]string, 0, len(r.columns))
	vals = append(vals, idVal)
	off := 0
	for _, f := range r.restFields {
		end := off + f.Width
		if end > len(rest) {
			end = len(rest)
		}
		field := ""
		if off < len(rest) {
			field = trimTrailingSpaces(rest[off:end])
		}
		vals = append(vals, field)
		off = end
	}
	return tuple.New(r.columns, vals), true, nil
}

func (r *materializedReader) Close() error { return r.scan.Close() }

func trimTrailingSpaces(s string) string {
	end := len(s)
	for end > 0 && s[end-1] == ' ' {
		end--
	}
	return s[:end]
}
