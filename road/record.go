// Package road models a directed road network built from undirected road
// records and answers spatial candidate searches against it.
package road

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrInvalidRecord is returned for road records that cannot be turned into
// segments.
var ErrInvalidRecord = errors.New("invalid road record")

// Heading is the direction a Segment travels relative to its Record geometry.
type Heading int8

const (
	Forward Heading = iota
	Backward
)

func (h Heading) String() string {
	if h == Backward {
		return "backward"
	}
	return "forward"
}

// Record is one input road: an undirected (or one-way) polyline between two
// vertices. Speeds are km/h, Length is meters.
type Record struct {
	ID               int64
	Source           int64
	Target           int64
	OneWay           bool
	Class            string
	Priority         float64
	MaxSpeedForward  float64
	MaxSpeedBackward float64
	Length           float64
	Geometry         orb.LineString
}

func (r *Record) validate() error {
	if r.ID < 0 {
		return fmt.Errorf("%w: road %d has a negative id", ErrInvalidRecord, r.ID)
	}
	if len(r.Geometry) < 2 {
		return fmt.Errorf("%w: road %d has %d points", ErrInvalidRecord, r.ID, len(r.Geometry))
	}
	return nil
}
