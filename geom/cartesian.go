package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Cartesian implements Operator on a plane. Units are whatever the
// coordinates are in; it is used for synthetic networks and tests.
type Cartesian struct{}

var _ Operator = Cartesian{}

func (Cartesian) Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

func (c Cartesian) Length(line orb.LineString) float64 {
	return lineLength(c, line)
}

func (c Cartesian) Intercept(line orb.LineString, p orb.Point) float64 {
	return lineIntercept(c, line, p)
}

func (c Cartesian) Interpolate(line orb.LineString, f float64) orb.Point {
	return lineInterpolate(c, line, f)
}

func (c Cartesian) Azimuth(line orb.LineString, f float64) float64 {
	return lineAzimuth(c, line, f)
}

func (Cartesian) Envelope(p orb.Point, radius float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{p[0] - radius, p[1] - radius},
		Max: orb.Point{p[0] + radius, p[1] + radius},
	}
}

func (Cartesian) Bound(line orb.LineString) orb.Bound {
	return line.Bound()
}

func (Cartesian) intercept(a, b, p orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	if dx == 0 && dy == 0 {
		return 0
	}
	return ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
}

func (Cartesian) interpolate(a, b orb.Point, f float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
}

// azimuth is measured clockwise from the +y axis.
func (Cartesian) azimuth(a, b orb.Point) float64 {
	return NormalizeAzimuth(90 - math.Atan2(b[1]-a[1], b[0]-a[0])*180/math.Pi)
}
