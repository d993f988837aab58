package road

import (
	"fmt"
	"math"
)

// CostFunc assigns a non-negative traversal cost to a whole segment.
type CostFunc func(*Segment) float64

const (
	heuristicSpeed    = 130.0
	heuristicPriority = 1.0
)

// DistanceCost is the segment length in meters.
func DistanceCost(s *Segment) float64 {
	return s.Length()
}

// TimeCost is the travel time in seconds at the segment's speed limit,
// capped at 130 km/h.
func TimeCost(s *Segment) float64 {
	speed := math.Min(s.MaxSpeed(), heuristicSpeed)
	if speed <= 0 {
		speed = heuristicSpeed
	}
	return DistanceCost(s) * 3.6 / speed
}

// TimePriorityCost weights TimeCost by the road priority.
func TimePriorityCost(s *Segment) float64 {
	return TimeCost(s) * math.Max(heuristicPriority, s.Priority())
}

// CostByName resolves "distance", "time" or "time-priority".
func CostByName(name string) (CostFunc, error) {
	switch name {
	case "distance":
		return DistanceCost, nil
	case "time":
		return TimeCost, nil
	case "time-priority", "":
		return TimePriorityCost, nil
	default:
		return nil, fmt.Errorf("unknown cost function %q", name)
	}
}
