package road

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"kuanb/gosm-matcher/geom"
)

// FractionEpsilon is the tolerance under which two fractions on the same
// segment denote the same point.
const FractionEpsilon = 1e-6

// Point is a position at Fraction of the way along a Segment.
type Point struct {
	Segment    *Segment
	Fraction   float64
	Coordinate orb.Point
	Azimuth    float64
}

// NewPoint locates fraction f on s using op.
func NewPoint(s *Segment, f float64, op geom.Operator) Point {
	return Point{
		Segment:    s,
		Fraction:   f,
		Coordinate: op.Interpolate(s.Geometry, f),
		Azimuth:    op.Azimuth(s.Geometry, f),
	}
}

func (p Point) Equal(o Point) bool {
	if p.Segment == nil || o.Segment == nil {
		return p.Segment == o.Segment && math.Abs(p.Fraction-o.Fraction) < FractionEpsilon
	}
	return p.Segment.ID == o.Segment.ID && math.Abs(p.Fraction-o.Fraction) < FractionEpsilon
}

// PointKey identifies a Point in maps.
type PointKey struct {
	Segment  int64
	Fraction float64
}

func (p Point) Key() PointKey {
	id := int64(-1)
	if p.Segment != nil {
		id = p.Segment.ID
	}
	return PointKey{Segment: id, Fraction: math.Round(p.Fraction/FractionEpsilon) * FractionEpsilon}
}

func (p Point) String() string {
	if p.Segment == nil {
		return fmt.Sprintf("(nil@%.6f)", p.Fraction)
	}
	return fmt.Sprintf("(%d@%.6f)", p.Segment.ID, p.Fraction)
}
