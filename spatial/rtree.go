package spatial

import (
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// RTree wraps tidwall/rtree as a dynamic Index. Unlike STRTree it accepts
// inserts at any time, but is not safe for concurrent writes.
type RTree[T any] struct {
	tree *rtree.RTreeG[T]
}

// NewRTree creates a new RTree
func NewRTree[T any]() *RTree[T] {
	return &RTree[T]{
		tree: &rtree.RTreeG[T]{},
	}
}

// Insert adds an item to the RTree with the given bounding box
func (r *RTree[T]) Insert(bound orb.Bound, item T) error {
	if invalid(bound) {
		return nil
	}
	r.tree.Insert([2]float64(bound.Min), [2]float64(bound.Max), item)
	return nil
}

// Query returns all items whose bounding boxes intersect with the query bbox
func (r *RTree[T]) Query(bound orb.Bound) []T {
	var result []T
	r.tree.Search(
		[2]float64(bound.Min),
		[2]float64(bound.Max),
		func(min, max [2]float64, item T) bool {
			result = append(result, item)
			return true // continue searching
		},
	)
	return result
}

// Len returns the number of items in the RTree
func (r *RTree[T]) Len() int {
	return r.tree.Len()
}
