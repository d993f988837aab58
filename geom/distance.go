package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadiusMeters matches the sphere orb/geo measures haversine distances on.
const EarthRadiusMeters = orb.EarthRadius

// Geography implements Operator for lon/lat coordinates on a sphere. Distances
// are great circle (haversine) meters; interception is solved in a local
// equirectangular projection around each segment, which is accurate for
// the short segments of a road network.
type Geography struct{}

var _ Operator = Geography{}

// Distance returns the haversine distance between two points in meters.
func (Geography) Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

func (g Geography) Length(line orb.LineString) float64 {
	return lineLength(g, line)
}

func (g Geography) Intercept(line orb.LineString, p orb.Point) float64 {
	return lineIntercept(g, line, p)
}

func (g Geography) Interpolate(line orb.LineString, f float64) orb.Point {
	return lineInterpolate(g, line, f)
}

func (g Geography) Azimuth(line orb.LineString, f float64) float64 {
	return lineAzimuth(g, line, f)
}

// Envelope returns the bound of all points within radius meters of p.
func (Geography) Envelope(p orb.Point, radius float64) orb.Bound {
	return geo.NewBoundAroundPoint(p, radius)
}

func (Geography) Bound(line orb.LineString) orb.Bound {
	return line.Bound()
}

// intercept projects p onto the infinite line through a and b and returns the
// unclamped fraction along ab.
func (Geography) intercept(a, b, p orb.Point) float64 {
	ax, ay := project(a, a[1])
	bx, by := project(b, a[1])
	px, py := project(p, a[1])

	dx := bx - ax
	dy := by - ay
	if dx == 0 && dy == 0 {
		// a and b are the same point
		return 0
	}
	return ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
}

func (Geography) interpolate(a, b orb.Point, f float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
}

func (Geography) azimuth(a, b orb.Point) float64 {
	return NormalizeAzimuth(geo.Bearing(a, b))
}

// project maps p into meters of an equirectangular projection scaled at
// refLat.
func project(p orb.Point, refLat float64) (x, y float64) {
	cosLat := math.Cos(toRad(refLat))
	return toRad(p[0]) * cosLat * EarthRadiusMeters, toRad(p[1]) * EarthRadiusMeters
}

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }
