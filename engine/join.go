package engine

import "github.com/jgodjo/imdbdb/tuple"

// rowsPerBlockPage is the table-independent tuple-per-page constant used
// to turn the BNL block size from pages into a tuple budget (spec
// §4.4.5: "implementers may cap at ... rows-per-page is a
// table-independent constant chosen at implementation time").
const rowsPerBlockPage = 100

// BNLJoin is the block nested loop join operator (spec §4.4.5): the
// central join algorithm of the canonical plan, joining an outer and
// inner child on an equality predicate with partial materialization of
// the outer side.
type BNLJoin struct {
	outer, inner Operator
	pred         JoinPredicate
	blockTuples  int // soft outer-block tuple budget

	block    []tuple.Tuple
	blockPos int
	outerEOF bool
}

// NewBNLJoin builds a BNLJoin. bufferSize is the total buffer budget B
// (in pages) available to the join (spec §4.4.5): block size is
// floor((B-C)/2) pages with C=2 reserved frames, floored to at least 1,
// then converted to a tuple budget via rowsPerBlockPage.
func NewBNLJoin(outer, inner Operator, pred JoinPredicate, bufferSize int) *BNLJoin {
	const reserved = 2
	blockPages := (bufferSize - reserved) / 2
	if blockPages < 1 {
		blockPages = 1
	}
	return &BNLJoin{outer: outer, inner: inner, pred: pred, blockTuples: blockPages * rowsPerBlockPage}
}

func (j *BNLJoin) Open() error {
	if err := j.outer.Open(); err != nil {
		return err
	}
	if err := j.inner.Open(); err != nil {
		return err
	}
	return j.loadBlock()
}

// loadBlock fills j.block with up to blockTuples outer tuples.
func (j *BNLJoin) loadBlock() error {
	j.block = j.block[:0]
	j.blockPos = 0
	for len(j.block) < j.blockTuples {
		t, ok, err := j.outer.Next()
		if err != nil {
			return err
		}
		if !ok {
			j.outerEOF = true
			break
		}
		j.block = append(j.block, t)
	}
	return j.rewindInner()
}

// rewindInner closes and reopens the inner child — BNL inner rewind is
// always explicit (spec §4.4.5); inner operators must be idempotent
// across open/close cycles.
func (j *BNLJoin) rewindInner() error {
	if err := j.inner.Close(); err != nil {
		return err
	}
	return j.inner.Open()
}

// Next implements the nested-loop body: for the current outer tuple,
// scan the whole (rewound) inner; emit matches; advance the outer
// position; reload the block and rewind the inner when the current
// block is exhausted.
func (j *BNLJoin) Next() (tuple.Tuple, bool, error) {
	for {
		if j.blockPos >= len(j.block) {
			if j.outerEOF {
				return tuple.Tuple{}, false, nil
			}
			if err := j.loadBlock(); err != nil {
				return tuple.Tuple{}, false, err
			}
			if len(j.block) == 0 {
				return tuple.Tuple{}, false, nil
			}
		}
		outerTuple := j.block[j.blockPos]
		for {
			innerTuple, ok, err := j.inner.Next()
			if err != nil {
				return tuple.Tuple{}, false, err
			}
			if !ok {
				break
			}
			if j.pred(outerTuple, innerTuple) {
				return tuple.Concat(outerTuple, innerTuple), true, nil
			}
		}
		j.blockPos++
		if j.blockPos < len(j.block) {
			if err := j.rewindInner(); err != nil {
				return tuple.Tuple{}, false, err
			}
		}
	}
}

func (j *BNLJoin) Close() error {
	if err := j.outer.Close(); err != nil {
		return err
	}
	return j.inner.Close()
}
