package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// Operator is the set of spatial primitives the matcher depends on. Distances
// and lengths are in the operator's metric unit (meters for Geography),
// fractions refer to the full length of a polyline and azimuths are degrees
// clockwise from north in [0, 360).
type Operator interface {
	Distance(a, b orb.Point) float64
	Length(line orb.LineString) float64
	// Intercept returns the fraction of line closest to p.
	Intercept(line orb.LineString, p orb.Point) float64
	Interpolate(line orb.LineString, f float64) orb.Point
	Azimuth(line orb.LineString, f float64) float64
	// Envelope returns the bound of a circle around p.
	Envelope(p orb.Point, radius float64) orb.Bound
	Bound(line orb.LineString) orb.Bound
}

// segmentOps are the per segment primitives a polyline walk is built on.
type segmentOps interface {
	Distance(a, b orb.Point) float64
	intercept(a, b, p orb.Point) float64
	interpolate(a, b orb.Point, f float64) orb.Point
	azimuth(a, b orb.Point) float64
}

func lineLength(ops segmentOps, line orb.LineString) float64 {
	d := 0.0
	for i := 1; i < len(line); i++ {
		d += ops.Distance(line[i-1], line[i])
	}
	return d
}

func lineIntercept(ops segmentOps, line orb.LineString, p orb.Point) float64 {
	if len(line) < 2 {
		return 0
	}

	best := math.MaxFloat64
	a := line[0]
	s, sf := 0.0, 0.0
	for i := 1; i < len(line); i++ {
		b := line[i]
		ds := ops.Distance(a, b)

		f := 0.0
		if ds > 0 {
			f = clamp01(ops.intercept(a, b, p))
		}
		d := ops.Distance(p, ops.interpolate(a, b, f))
		if d < best {
			sf = f*ds + s
			best = d
		}

		s += ds
		a = b
	}

	if s == 0 {
		return 0
	}
	return sf / s
}

func lineInterpolate(ops segmentOps, line orb.LineString, f float64) orb.Point {
	if len(line) == 0 {
		return orb.Point{math.NaN(), math.NaN()}
	}
	if f < 1e-10 || len(line) == 1 {
		return line[0]
	}
	if f > 1-1e-10 {
		return line[len(line)-1]
	}

	d := lineLength(ops, line) * f
	s := 0.0
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		ds := ops.Distance(a, b)
		if ds > 0 && s+ds >= d {
			return ops.interpolate(a, b, (d-s)/ds)
		}
		s += ds
	}
	return line[len(line)-1]
}

func lineAzimuth(ops segmentOps, line orb.LineString, f float64) float64 {
	d := lineLength(ops, line) * clamp01(f)
	s := 0.0
	last := math.NaN()
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		ds := ops.Distance(a, b)
		if ds == 0 {
			continue
		}
		last = ops.azimuth(a, b)
		if s+ds >= d {
			return last
		}
		s += ds
	}
	return last
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// NormalizeAzimuth maps any angle in degrees into [0, 360).
func NormalizeAzimuth(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return math.NaN()
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// AzimuthDelta is the absolute angular difference of two azimuths in [0, 180].
func AzimuthDelta(a, b float64) float64 {
	d := math.Abs(NormalizeAzimuth(a) - NormalizeAzimuth(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}
