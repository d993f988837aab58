// Package spatial holds static and dynamic bounding-rectangle indexes and a
// geometry aware radius search on top of them.
package spatial

import (
	"errors"

	"github.com/paulmach/orb"
)

// ErrIndexBuilt is returned when inserting into a bulk loaded index that has
// already been queried.
var ErrIndexBuilt = errors.New("spatial: cannot insert into an index after it has been built")

// Index stores items by bounding rectangle.
type Index[T any] interface {
	Insert(bound orb.Bound, item T) error
	// Query returns all items whose stored bound intersects bound.
	Query(bound orb.Bound) []T
	Len() int
}

// Kind names an Index implementation.
type Kind string

const (
	KindSTR   Kind = "str"
	KindRTree Kind = "rtree"
)

// New returns an empty index of the given kind. Capacity only applies to
// the STR tree.
func New[T any](kind Kind, capacity int) (Index[T], error) {
	switch kind {
	case KindSTR, "":
		return NewSTRTree[T](capacity), nil
	case KindRTree:
		return NewRTree[T](), nil
	default:
		return nil, errors.New("spatial: unknown index kind " + string(kind))
	}
}

func invalid(b orb.Bound) bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1]
}
