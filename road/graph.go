package road

import (
	"github.com/paulmach/orb"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/spatial"
)

// Graph is an immutable directed road network. Segments live in one arena;
// vertices map to the arena indices of the segments leaving and entering
// them. A Graph is safe for concurrent reads.
type Graph struct {
	op       geom.Operator
	segments []*Segment
	byID     map[int64]*Segment
	out      map[int64][]int
	in       map[int64][]int
	index    *spatial.GeometryIndex[*Record]
}

func (g *Graph) Operator() geom.Operator { return g.op }

// Segment returns the segment with id, or nil.
func (g *Graph) Segment(id int64) *Segment {
	return g.byID[id]
}

// Segments returns all segments in id order.
func (g *Graph) Segments() []*Segment {
	return g.segments
}

// Successors returns every segment leaving the target vertex of s,
// including the reverse of s itself.
func (g *Graph) Successors(s *Segment) []*Segment {
	return g.collect(g.out[s.Target])
}

// Predecessors returns every segment entering the source vertex of s.
func (g *Graph) Predecessors(s *Segment) []*Segment {
	return g.collect(g.in[s.Source])
}

func (g *Graph) collect(idx []int) []*Segment {
	out := make([]*Segment, len(idx))
	for i, j := range idx {
		out[i] = g.segments[j]
	}
	return out
}

// Radius finds the roads within radius of center and returns a point on
// every segment of each road, nearest roads first. k caps the number of
// roads considered when positive.
func (g *Graph) Radius(center orb.Point, radius float64, k int) []Point {
	hits := g.index.Radius(center, radius, k)
	points := make([]Point, 0, 2*len(hits))
	for _, h := range hits {
		if s := g.byID[SegmentID(h.Item.ID, Forward)]; s != nil {
			points = append(points, Point{
				Segment:    s,
				Fraction:   h.Fraction,
				Coordinate: h.Point,
				Azimuth:    g.op.Azimuth(s.Geometry, h.Fraction),
			})
		}
		if s := g.byID[SegmentID(h.Item.ID, Backward)]; s != nil {
			f := 1 - h.Fraction
			points = append(points, Point{
				Segment:    s,
				Fraction:   f,
				Coordinate: h.Point,
				Azimuth:    g.op.Azimuth(s.Geometry, f),
			})
		}
	}
	return points
}

// Len is the number of segments.
func (g *Graph) Len() int {
	return len(g.segments)
}

func (g *Graph) VertexCount() int {
	seen := make(map[int64]struct{}, len(g.out)+len(g.in))
	for v := range g.out {
		seen[v] = struct{}{}
	}
	for v := range g.in {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Roads is the number of input records in the graph.
func (g *Graph) Roads() int {
	return g.index.Len()
}
