// Package record implements the paged record store (spec §4.1): a 4 KiB
// page holding fixed-width, space-padded rows for one of the engine's
// three tables, plus the row-level access contract (getRow/insertRow).
//
// The teacher's relation package (relation.Relation/relation.Record) used
// a generic typed-column model (INT/FLOAT/CHAR/VARCHAR) with null-byte
// padding and page chaining via a bytemap free-slot scheme, to support a
// general CREATE TABLE surface. This engine's schemas are fixed by spec
// (§3) and rows are never deleted, so that generality is replaced here by
// three concrete, fixed-width, space-padded row layouts and simple
// append-only slot assignment — the encoding mechanics (concatenated
// fixed-width fields at a computed offset) are kept in the teacher's style.
package record

import "fmt"

// Table identifies which of the three fixed schemas a page holds.
type Table int

const (
	Movies Table = iota
	WorkedOn
	People
)

func (t Table) String() string {
	switch t {
	case Movies:
		return "Movies"
	case WorkedOn:
		return "WorkedOn"
	case People:
		return "People"
	default:
		return fmt.Sprintf("Table(%d)", int(t))
	}
}

// ColumnNames and ColumnWidths define the fixed-width, space-padded row
// layout for each table (spec §3). Widths are in bytes; order matches the
// on-disk field order.
var ColumnNames = map[Table][]string{
	Movies:   {"movieId", "title"},
	WorkedOn: {"movieId", "personId", "category"},
	People:   {"personId", "name"},
}

var ColumnWidths = map[Table][]int{
	Movies:   {9, 30},
	WorkedOn: {9, 10, 20},
	People:   {10, 105},
}

// RowSize returns the fixed byte width of one row of table t.
func RowSize(t Table) int {
	sz := 0
	for _, w := range ColumnWidths[t] {
		sz += w
	}
	return sz
}

// QualifiedColumnNames returns names of the form "Table.column", the
// qualified form tuples carry (spec §3).
func QualifiedColumnNames(t Table) []string {
	names := ColumnNames[t]
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = t.String() + "." + n
	}
	return out
}
