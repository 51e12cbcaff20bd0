package engine

import "github.com/jgodjo/imdbdb/tuple"

// Selection wraps a child operator and a predicate (spec §4.4.3).
type Selection struct {
	child Operator
	pred  Predicate
}

// NewSelection builds a Selection over child.
func NewSelection(child Operator, pred Predicate) *Selection {
	return &Selection{child: child, pred: pred}
}

func (s *Selection) Open() error { return s.child.Open() }

// Next repeatedly pulls from the child, returning the first tuple for
// which the predicate holds.
func (s *Selection) Next() (tuple.Tuple, bool, error) {
	for {
		t, ok, err := s.child.Next()
		if err != nil || !ok {
			return tuple.Tuple{}, false, err
		}
		if s.pred(t) {
			return t, true, nil
		}
	}
}

func (s *Selection) Close() error { return s.child.Close() }
