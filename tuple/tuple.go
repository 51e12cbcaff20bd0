// Package tuple is the in-flight record model that flows through the
// iterator pipeline (spec §3): a fixed-length sequence of string values
// paired with an equally-sized sequence of qualified column names.
package tuple

import "fmt"

// Tuple is immutable once constructed.
type Tuple struct {
	columns []string
	values  []string
}

// New builds a Tuple from parallel columns/values slices. Panics if the
// lengths disagree — a pipeline-construction bug, not a runtime fault.
func New(columns, values []string) Tuple {
	if len(columns) != len(values) {
		panic(fmt.Sprintf("tuple: %d columns but %d values", len(columns), len(values)))
	}
	cc := append([]string(nil), columns...)
	vv := append([]string(nil), values...)
	return Tuple{columns: cc, values: vv}
}

// Columns returns the qualified column names, e.g. "Movies.title".
func (t Tuple) Columns() []string { return t.columns }

// Values returns the tuple's values, in column order.
func (t Tuple) Values() []string { return t.values }

// Get returns the value of the named column and whether it was found.
func (t Tuple) Get(column string) (string, bool) {
	for i, c := range t.columns {
		if c == column {
			return t.values[i], true
		}
	}
	return "", false
}

// Concat returns the concatenation of left and right's attribute sequences, the
// shape every join-composed tuple takes (spec §3).
func Concat(left, right Tuple) Tuple {
	cols := make([]string, 0, len(left.columns)+len(right.columns))
	vals := make([]string, 0, len(left.values)+len(right.values))
	cols = append(cols, left.columns...)
	cols = append(cols, right.columns...)
	vals = append(vals, left.values...)
	vals = append(vals, right.values...)
	return Tuple{columns: cols, values: vals}
}
