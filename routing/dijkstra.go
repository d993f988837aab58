package routing

import (
	"container/heap"
	"math"

	"kuanb/gosm-matcher/road"
)

// Topology is the adjacency the router walks.
type Topology interface {
	Successors(s *road.Segment) []*road.Segment
}

// Path is the cheapest way found from Source to a target. Edges runs from
// the source segment to the target segment, both included.
type Path struct {
	Source road.Point
	Edges  []*road.Segment
	Cost   float64
}

// Dijkstra routes between points on segments. Search nodes are segments;
// costs of the first and last segment are prorated by the points'
// fractions. A Dijkstra is stateless and safe for concurrent use.
type Dijkstra struct {
	topology Topology
}

// NewDijkstra returns a router over the segments of t.
func NewDijkstra(t Topology) *Dijkstra {
	return &Dijkstra{topology: t}
}

// mark is a priority queue entry. Reach marks carry the target they
// finish; start marks carry their source.
type mark struct {
	edge   *road.Segment
	pred   *road.Segment
	cost   float64
	bound  float64
	source *road.Point
	target *road.Point

	seq   int
	index int
}

type markQueue []*mark

func (q markQueue) Len() int { return len(q) }

func (q markQueue) Less(i, j int) bool {
	if q[i].cost == q[j].cost {
		return q[i].seq < q[j].seq
	}
	return q[i].cost < q[j].cost
}

func (q markQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *markQueue) Push(x any) {
	m := x.(*mark)
	m.index = len(*q)
	*q = append(*q, m)
}

func (q *markQueue) Pop() any {
	old := *q
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	m.index = -1
	*q = old[:n-1]
	return m
}

// Route finds, for every target reachable from any source, the cheapest path
// under cost. Marks whose accumulated bound exceeds max are not expanded;
// a nil bound accumulates zero and a NaN max disables the check. Each
// target maps to the path from the source that reaches it cheapest;
// unreachable targets are absent.
func (d *Dijkstra) Route(sources, targets []road.Point, cost, bound road.CostFunc, max float64) map[road.PointKey]Path {
	if bound == nil {
		bound = func(*road.Segment) float64 { return 0 }
	}

	targetEdges := make(map[int64][]*road.Point)
	seen := make(map[road.PointKey]bool, len(targets))
	for i := range targets {
		t := &targets[i]
		if t.Segment == nil || seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		targetEdges[t.Segment.ID] = append(targetEdges[t.Segment.ID], t)
	}

	var (
		queue    markQueue
		entries  = make(map[int64]*mark)
		finishes = make(map[road.PointKey]*mark)
		seq      int
	)
	push := func(m *mark) {
		seq++
		m.seq = seq
		heap.Push(&queue, m)
	}

	for i := range sources {
		s := &sources[i]
		if s.Segment == nil {
			continue
		}
		startCost := (1 - s.Fraction) * cost(s.Segment)
		startBound := (1 - s.Fraction) * bound(s.Segment)

		for _, t := range targetEdges[s.Segment.ID] {
			if t.Fraction < s.Fraction {
				continue
			}
			push(&mark{
				edge:   s.Segment,
				cost:   startCost - (1-t.Fraction)*cost(s.Segment),
				bound:  startBound - (1-t.Fraction)*bound(s.Segment),
				source: s,
				target: t,
			})
		}

		if start, ok := entries[s.Segment.ID]; ok {
			if startCost < start.cost {
				start.cost, start.bound, start.source = startCost, startBound, s
				if start.index >= 0 {
					heap.Fix(&queue, start.index)
				}
			}
			continue
		}
		start := &mark{edge: s.Segment, cost: startCost, bound: startBound, source: s}
		entries[s.Segment.ID] = start
		push(start)
	}

	for queue.Len() > 0 && len(targetEdges) > 0 {
		current := heap.Pop(&queue).(*mark)

		if !math.IsNaN(max) && current.bound > max {
			continue
		}

		if current.target != nil {
			key := current.target.Key()
			if _, done := finishes[key]; done {
				continue
			}
			finishes[key] = current
			d.finish(targetEdges, current)
			continue
		}

		for _, succ := range d.topology.Successors(current.edge) {
			succCost := current.cost + cost(succ)
			succBound := current.bound + bound(succ)

			for _, t := range targetEdges[succ.ID] {
				push(&mark{
					edge:   succ,
					pred:   current.edge,
					cost:   succCost - (1-t.Fraction)*cost(succ),
					bound:  succBound - (1-t.Fraction)*bound(succ),
					target: t,
				})
			}

			if _, ok := entries[succ.ID]; !ok {
				m := &mark{edge: succ, pred: current.edge, cost: succCost, bound: succBound}
				entries[succ.ID] = m
				push(m)
			}
		}
	}

	paths := make(map[road.PointKey]Path, len(finishes))
	for key, finish := range finishes {
		var edges []*road.Segment
		it, start := finish, finish
		for it != nil {
			edges = append(edges, it.edge)
			start = it
			if it.pred == nil {
				break
			}
			it = entries[it.pred.ID]
		}
		if start.source == nil {
			continue
		}
		for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
			edges[i], edges[j] = edges[j], edges[i]
		}
		paths[key] = Path{Source: *start.source, Edges: edges, Cost: finish.cost}
	}
	return paths
}

func (d *Dijkstra) finish(targetEdges map[int64][]*road.Point, m *mark) {
	pending := targetEdges[m.edge.ID]
	for i, t := range pending {
		if t == m.target {
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	if len(pending) == 0 {
		delete(targetEdges, m.edge.ID)
		return
	}
	targetEdges[m.edge.ID] = pending
}

// RouteOne routes from a single source and returns the edges per target.
func (d *Dijkstra) RouteOne(source road.Point, targets []road.Point, cost, bound road.CostFunc, max float64) map[road.PointKey][]*road.Segment {
	paths := d.Route([]road.Point{source}, targets, cost, bound, max)
	out := make(map[road.PointKey][]*road.Segment, len(paths))
	for k, p := range paths {
		out[k] = p.Edges
	}
	return out
}

// RouteTo routes between two points without a bound.
func (d *Dijkstra) RouteTo(source, target road.Point, cost road.CostFunc) ([]*road.Segment, bool) {
	p, ok := d.Route([]road.Point{source}, []road.Point{target}, cost, nil, math.NaN())[target.Key()]
	return p.Edges, ok
}
