package road

import "github.com/paulmach/orb"

// Segment is a directed traversal of a Record. Its id encodes the record id
// and the heading: 2*id forward, 2*id+1 backward.
type Segment struct {
	ID       int64
	Source   int64
	Target   int64
	Heading  Heading
	Record   *Record
	Geometry orb.LineString

	index int
}

// SegmentID returns the id of the segment traversing road in heading.
func SegmentID(road int64, heading Heading) int64 {
	return road*2 + int64(heading)
}

func newSegment(r *Record, heading Heading) *Segment {
	s := &Segment{
		ID:       SegmentID(r.ID, heading),
		Source:   r.Source,
		Target:   r.Target,
		Heading:  heading,
		Record:   r,
		Geometry: r.Geometry,
	}
	if heading == Backward {
		s.Source, s.Target = r.Target, r.Source
		s.Geometry = reversed(r.Geometry)
	}
	return s
}

// RoadID is the id of the underlying record.
func (s *Segment) RoadID() int64 { return s.Record.ID }

func (s *Segment) Length() float64 { return s.Record.Length }

// MaxSpeed is the speed limit in the segment's direction of travel.
func (s *Segment) MaxSpeed() float64 {
	if s.Heading == Backward {
		return s.Record.MaxSpeedBackward
	}
	return s.Record.MaxSpeedForward
}

func (s *Segment) Priority() float64 { return s.Record.Priority }

func reversed(line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, p := range line {
		out[len(line)-1-i] = p
	}
	return out
}
