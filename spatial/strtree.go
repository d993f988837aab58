package spatial

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// DefaultNodeCapacity is the node capacity used when none is given.
const DefaultNodeCapacity = 10

// STRTree is a static R-tree bulk loaded with the Sort-Tile-Recursive
// algorithm. Items are collected with Insert and packed on the first Query;
// after that the tree is read only and safe for concurrent queries.
type STRTree[T any] struct {
	capacity int
	items    []*strNode[T]
	root     *strNode[T]
	size     int

	once  sync.Once
	built atomic.Bool
}

type strNode[T any] struct {
	bound    orb.Bound
	bounded  bool
	children []*strNode[T]
	item     T
	leaf     bool
}

// NewSTRTree returns an empty tree. Capacities below 2 fall back to
// DefaultNodeCapacity; 4 is the smallest sensible setting.
func NewSTRTree[T any](capacity int) *STRTree[T] {
	if capacity < 2 {
		capacity = DefaultNodeCapacity
	}
	return &STRTree[T]{capacity: capacity}
}

// Insert adds an item. Inverted bounds are ignored.
func (t *STRTree[T]) Insert(bound orb.Bound, item T) error {
	if t.built.Load() {
		return ErrIndexBuilt
	}
	if invalid(bound) {
		return nil
	}
	t.items = append(t.items, &strNode[T]{bound: bound, bounded: true, item: item, leaf: true})
	return nil
}

func (t *STRTree[T]) Len() int {
	if t.built.Load() {
		return t.size
	}
	return len(t.items)
}

func (t *STRTree[T]) Query(bound orb.Bound) []T {
	t.build()

	var matches []T
	if t.root == nil || len(t.root.children) == 0 {
		return matches
	}
	if t.root.bounds().Intersects(bound) {
		t.query(bound, t.root, &matches)
	}
	return matches
}

func (t *STRTree[T]) query(bound orb.Bound, node *strNode[T], matches *[]T) {
	for _, child := range node.children {
		if !child.bounds().Intersects(bound) {
			continue
		}
		if child.leaf {
			*matches = append(*matches, child.item)
		} else {
			t.query(bound, child, matches)
		}
	}
}

// build packs the collected items. It runs exactly once.
func (t *STRTree[T]) build() {
	t.once.Do(func() {
		t.size = len(t.items)
		if len(t.items) == 0 {
			t.root = &strNode[T]{}
		} else {
			t.root = t.pack(t.items)
			t.root.bounds()
		}
		// the item list is no longer needed
		t.items = nil
		t.built.Store(true)
	})
}

func (t *STRTree[T]) pack(children []*strNode[T]) *strNode[T] {
	leafCount := math.Ceil(float64(len(children)) / float64(t.capacity))
	sliceCount := int(math.Ceil(math.Sqrt(leafCount)))
	sliceCapacity := int(math.Ceil(float64(len(children)) / float64(sliceCount)))

	sorted := make([]*strNode[T], len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].bounds().Center()[0] < sorted[j].bounds().Center()[0]
	})

	var parents []*strNode[T]
	for start := 0; start < len(sorted); start += sliceCapacity {
		end := min(start+sliceCapacity, len(sorted))
		slice := sorted[start:end]
		sort.SliceStable(slice, func(i, j int) bool {
			return slice[i].bounds().Center()[1] < slice[j].bounds().Center()[1]
		})

		parent := &strNode[T]{}
		parents = append(parents, parent)
		for _, child := range slice {
			if len(parent.children) == t.capacity {
				parent = &strNode[T]{}
				parents = append(parents, parent)
			}
			parent.children = append(parent.children, child)
		}
	}

	if len(parents) == 1 {
		return parents[0]
	}
	return t.pack(parents)
}

// bounds is the lazily cached union of the children's bounds.
func (n *strNode[T]) bounds() orb.Bound {
	if n.bounded {
		return n.bound
	}
	for i, child := range n.children {
		if i == 0 {
			n.bound = child.bounds()
		} else {
			n.bound = n.bound.Union(child.bounds())
		}
	}
	n.bounded = true
	return n.bound
}
