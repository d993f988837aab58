package routing

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/road"
)

func buildGraph(t *testing.T, op geom.Operator, records ...road.Record) *road.Graph {
	t.Helper()
	b := road.NewBuilder(op)
	require.NoError(t, b.Add(records...))
	g, err := b.Build(road.BuildOptions{})
	require.NoError(t, err)
	return g
}

func line(coords ...float64) orb.LineString {
	var l orb.LineString
	for i := 0; i+1 < len(coords); i += 2 {
		l = append(l, orb.Point{coords[i], coords[i+1]})
	}
	return l
}

func edgeIDs(edges []*road.Segment) []int64 {
	out := make([]int64, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}

// shortcutGraph has a long way A B C and a cheaper detour A D E C.
func shortcutGraph(t *testing.T) *road.Graph {
	rec := func(id, source, target int64, length float64, l orb.LineString) road.Record {
		return road.Record{ID: id, Source: source, Target: target, OneWay: true, Length: length, Geometry: l}
	}
	return buildGraph(t, geom.Cartesian{},
		rec(0, 0, 1, 10, line(0, 0, 10, 0)),  // A
		rec(1, 1, 2, 10, line(10, 0, 20, 0)), // B
		rec(2, 2, 3, 10, line(20, 0, 30, 0)), // C
		rec(3, 1, 4, 3, line(10, 0, 15, 2)),  // D
		rec(4, 4, 2, 3, line(15, 2, 20, 0)),  // E
	)
}

func TestRouteTakesCheaperDetour(t *testing.T) {
	g := shortcutGraph(t)
	op := geom.Cartesian{}
	router := NewDijkstra(g)

	source := road.NewPoint(g.Segment(0), 1, op)
	target := road.NewPoint(g.Segment(4), 0, op)

	paths := router.Route([]road.Point{source}, []road.Point{target}, road.DistanceCost, road.DistanceCost, math.NaN())
	require.Contains(t, paths, target.Key())
	p := paths[target.Key()]
	assert.Equal(t, []int64{0, 6, 8, 4}, edgeIDs(p.Edges))
	assert.InDelta(t, 6.0, p.Cost, 1e-9)
	assert.True(t, p.Source.Equal(source))

	route := road.NewRoute(source, target, p.Edges)
	assert.InDelta(t, 6.0, route.Length, 1e-9)

	paths = router.Route([]road.Point{source}, []road.Point{target}, road.DistanceCost, road.DistanceCost, 6)
	assert.Contains(t, paths, target.Key())

	paths = router.Route([]road.Point{source}, []road.Point{target}, road.DistanceCost, road.DistanceCost, 5)
	assert.NotContains(t, paths, target.Key())
}

func TestRouteBoundInOtherMetric(t *testing.T) {
	g := shortcutGraph(t)
	op := geom.Cartesian{}
	router := NewDijkstra(g)

	// every segment costs the same, so the direct way wins, but the
	// distance bound still applies to it
	hops := func(*road.Segment) float64 { return 1 }
	source := road.NewPoint(g.Segment(0), 1, op)
	target := road.NewPoint(g.Segment(4), 1, op)

	paths := router.Route([]road.Point{source}, []road.Point{target}, hops, road.DistanceCost, math.NaN())
	require.Contains(t, paths, target.Key())
	assert.Equal(t, []int64{0, 2, 4}, edgeIDs(paths[target.Key()].Edges))
	assert.InDelta(t, 2.0, paths[target.Key()].Cost, 1e-9)

	paths = router.Route([]road.Point{source}, []road.Point{target}, hops, road.DistanceCost, 15)
	assert.Empty(t, paths)
}

func sameRoadGraph(t *testing.T) *road.Graph {
	return buildGraph(t, geom.Cartesian{},
		road.Record{ID: 0, Source: 0, Target: 1, Geometry: line(0, 0, 10, 0)},
		road.Record{ID: 1, Source: 1, Target: 2, OneWay: true, Geometry: line(10, 0, 20, 0)},
		road.Record{ID: 5, Source: 3, Target: 3, OneWay: true, Length: 40, Geometry: line(30, 0, 40, 0, 40, 10, 30, 0)},
	)
}

func TestRouteSameSegment(t *testing.T) {
	g := sameRoadGraph(t)
	op := geom.Cartesian{}
	router := NewDijkstra(g)
	at := func(seg int64, f float64) road.Point { return road.NewPoint(g.Segment(seg), f, op) }

	tests := []struct {
		name   string
		source road.Point
		target road.Point
		edges  []int64
		cost   float64
	}{
		{"same point", at(0, 0.3), at(0, 0.3), []int64{0}, 0},
		{"forward on segment", at(0, 0.3), at(0, 0.7), []int64{0}, 4},
		{"behind on segment", at(0, 0.7), at(0, 0.3), []int64{0, 1, 0}, 16},
		{"self loop", at(10, 0.7), at(10, 0.3), []int64{10, 10}, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, ok := router.RouteTo(tt.source, tt.target, road.DistanceCost)
			require.True(t, ok)
			assert.Equal(t, tt.edges, edgeIDs(edges))

			p := router.Route([]road.Point{tt.source}, []road.Point{tt.target}, road.DistanceCost, nil, math.Inf(1))[tt.target.Key()]
			assert.InDelta(t, tt.cost, p.Cost, 1e-9)
			assert.InDelta(t, tt.cost, road.NewRoute(tt.source, tt.target, edges).Length, 1e-9)
		})
	}
}

func TestRouteCheapestSource(t *testing.T) {
	g := sameRoadGraph(t)
	op := geom.Cartesian{}
	router := NewDijkstra(g)

	sources := []road.Point{
		road.NewPoint(g.Segment(0), 0.9, op),
		road.NewPoint(g.Segment(1), 0.5, op),
		road.NewPoint(g.Segment(2), 0.1, op),
	}
	target := road.NewPoint(g.Segment(0), 0.5, op)

	paths := router.Route(sources, []road.Point{target}, road.DistanceCost, nil, math.NaN())
	require.Len(t, paths, 1)
	p := paths[target.Key()]
	assert.True(t, p.Source.Equal(sources[1]))
	assert.Equal(t, []int64{1, 0}, edgeIDs(p.Edges))
	assert.InDelta(t, 10.0, p.Cost, 1e-9)
}

func TestRouteUnreachable(t *testing.T) {
	g := sameRoadGraph(t)
	op := geom.Cartesian{}
	router := NewDijkstra(g)

	source := road.NewPoint(g.Segment(2), 0.5, op)
	targets := []road.Point{road.NewPoint(g.Segment(0), 0.5, op), road.NewPoint(g.Segment(10), 0.5, op)}

	got := router.RouteOne(source, targets, road.DistanceCost, nil, math.NaN())
	assert.Empty(t, got)
}
