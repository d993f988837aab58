package spatial

import (
	"sort"

	"github.com/paulmach/orb"

	"kuanb/gosm-matcher/geom"
)

// Hit is an item found by a radius search together with the point on its
// geometry closest to the search center.
type Hit[T any] struct {
	Item     T
	Fraction float64
	Point    orb.Point
	Distance float64
}

// GeometryIndex indexes items by the envelope of their polyline and answers
// radius queries against the polyline itself.
type GeometryIndex[T any] struct {
	index Index[T]
	op    geom.Operator
	line  func(T) orb.LineString
}

func NewGeometryIndex[T any](index Index[T], op geom.Operator, line func(T) orb.LineString) *GeometryIndex[T] {
	return &GeometryIndex[T]{index: index, op: op, line: line}
}

func (g *GeometryIndex[T]) Add(items ...T) error {
	for _, item := range items {
		if err := g.index.Insert(g.op.Bound(g.line(item)), item); err != nil {
			return err
		}
	}
	return nil
}

func (g *GeometryIndex[T]) Search(bound orb.Bound) []T {
	return g.index.Query(bound)
}

func (g *GeometryIndex[T]) Len() int {
	return g.index.Len()
}

// Radius returns the items within radius of center, nearest first. If k > 0
// at most k hits are returned.
func (g *GeometryIndex[T]) Radius(center orb.Point, radius float64, k int) []Hit[T] {
	var hits []Hit[T]
	for _, item := range g.index.Query(g.op.Envelope(center, radius)) {
		line := g.line(item)
		f := g.op.Intercept(line, center)
		p := g.op.Interpolate(line, f)
		d := g.op.Distance(p, center)
		if d <= radius {
			hits = append(hits, Hit[T]{Item: item, Fraction: f, Point: p, Distance: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
