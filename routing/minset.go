package routing

import (
	"math"

	"kuanb/gosm-matcher/road"
)

// minsetPrecision is how close a fraction must be to 0 or 1 to count as a
// vertex.
const minsetPrecision = 1e-8

// Adjacency is the topology Minset needs.
type Adjacency interface {
	Successors(s *road.Segment) []*road.Segment
	Predecessors(s *road.Segment) []*road.Segment
}

func roundFraction(f float64) float64 {
	return math.Round(f/minsetPrecision) * minsetPrecision
}

// Minset removes candidates that only restate another candidate at the same
// junction. A point at the end of its segment is dropped when every
// successor segment already has a point at its start. A point at the start
// of its segment is dropped when a kept point on a predecessor segment lies
// inside that segment or at its end. Input order is preserved.
func Minset(points []road.Point, g Adjacency) []road.Point {
	bySegment := make(map[int64]road.Point, len(points))
	for _, p := range points {
		bySegment[p.Segment.ID] = p
	}

	drop := make(map[int64]bool)
	for _, p := range points {
		if roundFraction(p.Fraction) != 1 {
			continue
		}
		successors := g.Successors(p.Segment)
		if len(successors) == 0 {
			continue
		}
		covered := true
		for _, s := range successors {
			q, ok := bySegment[s.ID]
			if !ok || roundFraction(q.Fraction) != 0 {
				covered = false
				break
			}
		}
		if covered {
			drop[p.Segment.ID] = true
		}
	}

	var subsumed []int64
	for _, p := range points {
		if roundFraction(p.Fraction) != 0 {
			continue
		}
		for _, s := range g.Predecessors(p.Segment) {
			q, ok := bySegment[s.ID]
			if ok && !drop[s.ID] && roundFraction(q.Fraction) != 0 {
				subsumed = append(subsumed, p.Segment.ID)
				break
			}
		}
	}
	for _, id := range subsumed {
		drop[id] = true
	}

	out := make([]road.Point, 0, len(points))
	for _, p := range points {
		if !drop[p.Segment.ID] {
			out = append(out, p)
		}
	}
	return out
}
