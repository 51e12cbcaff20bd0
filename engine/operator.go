// Package engine implements the iterator-model physical operators (spec
// §4.4): sequential scan, index scan, selection, projection (pipelining
// and materialising), and the block nested loop join, composed by
// catalog into the fixed canonical plan of spec §4.5.
//
// The open/next/close contract and the pin-scoped page-access discipline
// are grounded on _examples/intellect4all-storage-engines/btree's
// seek/Next iterator shape and on the teacher (jordy-godjo-GoBuffer_DB)'s
// practice of pairing every GetPage with exactly one UnpinPage along all
// exit paths.
package engine

import "github.com/jgodjo/imdbdb/tuple"

// Operator is the uniform physical-operator contract (spec §4.4): open
// initialises state, next pulls one tuple (or signals exhaustion), close
// releases pinned pages and temporary storage. next must not be called
// after close.
type Operator interface {
	Open() error
	Next() (tuple.Tuple, bool, error)
	Close() error
}
