package engine

import (
	"strings"

	"github.com/jgodjo/imdbdb/tuple"
)

// Predicate is a single-tuple filter (spec §4.4.6).
type Predicate func(t tuple.Tuple) bool

// JoinPredicate binds a column from each side of a block nested loop
// join; it is not usable in a Selection.
type JoinPredicate func(left, right tuple.Tuple) bool

// RangePredicate matches rows whose named column lies in [lo, hi],
// inclusive both ends, by lexical string comparison (spec §4.4.6).
func RangePredicate(column, lo, hi string) Predicate {
	return func(t tuple.Tuple) bool {
		v, ok := t.Get(column)
		if !ok {
			return false
		}
		return v >= lo && v <= hi
	}
}

// EqualityPredicate matches rows whose named column, trimmed and
// compared case-insensitively, equals target. As a special case (spec
// §4.4.6), when column names a "category" field and target is
// "director", the match is a substring test against "direct" — IMDB
// category strings read "director" or "directors" interchangeably.
func EqualityPredicate(column, target string) Predicate {
	isCategoryDirector := strings.Contains(strings.ToLower(column), "category") &&
		strings.EqualFold(strings.TrimSpace(target), "director")
	return func(t tuple.Tuple) bool {
		v, ok := t.Get(column)
		if !ok {
			return false
		}
		v = strings.TrimSpace(v)
		if isCategoryDirector {
			return strings.Contains(strings.ToLower(v), "direct")
		}
		return strings.EqualFold(v, strings.TrimSpace(target))
	}
}

// EqualJoinPredicate evaluates true iff leftTuple[leftCol] ==
// rightTuple[rightCol] exactly (spec §4.4.6).
func EqualJoinPredicate(leftCol, rightCol string) JoinPredicate {
	return func(left, right tuple.Tuple) bool {
		lv, ok := left.Get(leftCol)
		if !ok {
			return false
		}
		rv, ok := right.Get(rightCol)
		if !ok {
			return false
		}
		return lv == rv
	}
}
