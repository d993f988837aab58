package road

import (
	"github.com/paulmach/orb"

	"kuanb/gosm-matcher/geom"
)

// Route is a path through the network from Start to End. Edges holds every
// segment traversed, starting with Start.Segment and ending with
// End.Segment; a route within one segment has a single edge.
type Route struct {
	Start  Point
	End    Point
	Edges  []*Segment
	Length float64
}

func NewRoute(start, end Point, edges []*Segment) *Route {
	r := &Route{Start: start, End: end, Edges: edges}
	r.Length = r.Cost(DistanceCost)
	return r
}

// Cost sums fn over the route, counting only the travelled parts of the
// first and last edge.
func (r *Route) Cost(fn CostFunc) float64 {
	if len(r.Edges) == 0 {
		return 0
	}
	value := (1 - r.Start.Fraction) * fn(r.Edges[0])
	for _, e := range r.Edges[1:] {
		value += fn(e)
	}
	value -= (1 - r.End.Fraction) * fn(r.Edges[len(r.Edges)-1])
	return value
}

// Geometry returns the polyline of the travelled route, measuring vertex
// fractions with op.
func (r *Route) Geometry(op geom.Operator) orb.LineString {
	if len(r.Edges) == 0 {
		return nil
	}

	line := orb.LineString{r.Start.Coordinate}
	if len(r.Edges) > 1 {
		first := r.Edges[0].Geometry
		line = append(line, first[vertexAfter(op, first, r.Start.Fraction):]...)
		for _, e := range r.Edges[1 : len(r.Edges)-1] {
			line = append(line, e.Geometry...)
		}
		last := r.Edges[len(r.Edges)-1].Geometry
		line = append(line, last[:vertexAfter(op, last, r.End.Fraction)]...)
	} else {
		g := r.Edges[0].Geometry
		from, to := vertexAfter(op, g, r.Start.Fraction), vertexAfter(op, g, r.End.Fraction)
		if from < to {
			line = append(line, g[from:to]...)
		}
	}
	line = append(line, r.End.Coordinate)
	return dedupe(line)
}

// vertexAfter is the index of the first vertex of g lying beyond fraction f.
func vertexAfter(op geom.Operator, g orb.LineString, f float64) int {
	total := op.Length(g)
	if total == 0 {
		return len(g)
	}
	s := 0.0
	for i := 1; i < len(g); i++ {
		s += op.Distance(g[i-1], g[i])
		if s/total > f+FractionEpsilon {
			return i
		}
	}
	return len(g)
}

func dedupe(line orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(line))
	for i, p := range line {
		if i > 0 && p.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, p)
	}
	return out
}
