// Package routing routes between points on a road graph and matches
// position samples to it with a hidden Markov model.
package routing

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/markov"
	"kuanb/gosm-matcher/road"
)

// Sample is a position measurement. Azimuth is the heading in degrees, NaN
// when unknown.
type Sample struct {
	ID        string
	Timestamp time.Time
	Point     orb.Point
	Azimuth   float64
}

// NewSample normalizes azimuth into [0, 360).
func NewSample(id string, ts time.Time, p orb.Point, azimuth float64) Sample {
	return Sample{ID: id, Timestamp: ts, Point: p, Azimuth: geom.NormalizeAzimuth(azimuth)}
}

func (s Sample) Time() time.Time { return s.Timestamp }

func (s Sample) HasAzimuth() bool { return !math.IsNaN(s.Azimuth) }

// Candidate is a matched road position of a sample; its transition is the
// route from the predecessor's position.
type Candidate = markov.Candidate[road.Point, *road.Route]

// RouteFinder computes cheapest paths between road points.
type RouteFinder interface {
	Route(sources, targets []road.Point, cost, bound road.CostFunc, max float64) map[road.PointKey]Path
}

// MatcherConfig holds the model parameters. Distances are meters.
type MatcherConfig struct {
	// Sigma is the standard deviation of the position error.
	Sigma float64
	// SigmaAzimuth is the standard deviation of the heading error in
	// degrees.
	SigmaAzimuth float64
	// Lambda is the transition rate. Zero adapts it to the sample interval.
	Lambda        float64
	MaxRadius     float64
	MaxDistance   float64
	MaxCandidates int
}

func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Sigma:         5,
		SigmaAzimuth:  10,
		Lambda:        0,
		MaxRadius:     100,
		MaxDistance:   15000,
		MaxCandidates: 8,
	}
}

// Observer receives per sample statistics.
type Observer interface {
	ObserveSample(candidates int, elapsed time.Duration)
	ObserveBreak(kind markov.BreakKind)
}

// Matcher is the map matching model: candidates are road points near a
// sample, emissions are Gaussian in the distance to them and transitions
// are exponential in the detour of the route between them. A Matcher is
// read only and may be shared by any number of MatchStates.
type Matcher struct {
	graph    *road.Graph
	router   RouteFinder
	cost     road.CostFunc
	op       geom.Operator
	cfg      MatcherConfig
	logger   *zap.Logger
	observer Observer

	distance   distuv.Normal
	azimuthNrm float64
}

func NewMatcher(graph *road.Graph, router RouteFinder, cost road.CostFunc, op geom.Operator, cfg MatcherConfig, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cost == nil {
		cost = road.TimePriorityCost
	}
	return &Matcher{
		graph:      graph,
		router:     router,
		cost:       cost,
		op:         op,
		cfg:        cfg,
		logger:     logger,
		distance:   distuv.Normal{Mu: 0, Sigma: cfg.Sigma},
		azimuthNrm: 1 / math.Sqrt(2*math.Pi*cfg.SigmaAzimuth*cfg.SigmaAzimuth),
	}
}

// WithObserver returns a copy of m reporting to o.
func (m *Matcher) WithObserver(o Observer) *Matcher {
	c := *m
	c.observer = o
	return &c
}

func (m *Matcher) Config() MatcherConfig { return m.cfg }

func (m *Matcher) Graph() *road.Graph { return m.graph }

// Candidates finds the road points within MaxRadius of the sample, removes
// redundant ones with Minset and keeps a predecessor's position where the
// new point on the same segment would fall slightly behind it.
func (m *Matcher) Candidates(predecessors []*Candidate, sample Sample) []markov.Emission[road.Point, *road.Route] {
	points := Minset(m.graph.Radius(sample.Point, m.cfg.MaxRadius, m.cfg.MaxCandidates), m.graph)

	bySegment := make(map[int64]int, len(points))
	for i, p := range points {
		bySegment[p.Segment.ID] = i
	}
	replaced := make(map[int]bool)
	for _, pred := range predecessors {
		i, ok := bySegment[pred.Point.Segment.ID]
		if !ok || replaced[i] {
			continue
		}
		p := points[i]
		if p.Fraction < pred.Point.Fraction && m.op.Distance(p.Coordinate, pred.Point.Coordinate) < m.cfg.Sigma {
			points[i] = pred.Point
			replaced[i] = true
		}
	}

	out := make([]markov.Emission[road.Point, *road.Route], 0, len(points))
	for _, p := range points {
		out = append(out, markov.Emission[road.Point, *road.Route]{
			Candidate:   markov.NewCandidate[road.Point, *road.Route](p, nil),
			Probability: m.emission(sample, p),
		})
	}
	return out
}

func (m *Matcher) emission(sample Sample, p road.Point) float64 {
	dz := m.op.Distance(sample.Point, p.Coordinate)
	e := m.distance.Prob(dz)
	if sample.HasAzimuth() && !math.IsNaN(p.Azimuth) {
		da := geom.AzimuthDelta(sample.Azimuth, p.Azimuth)
		sa2 := m.cfg.SigmaAzimuth * m.cfg.SigmaAzimuth
		e *= math.Max(1e-2, m.azimuthNrm*math.Exp(-da/(2*sa2)))
	}
	return e
}

// Transitions routes from every predecessor to all candidates at once and
// scores each route by how much its cost exceeds the straight line
// baseline between the samples.
func (m *Matcher) Transitions(prev, next markov.Step[road.Point, *road.Route, Sample]) markov.Transitions[road.Point, *road.Route] {
	targets := make([]road.Point, len(next.Candidates))
	for i, c := range next.Candidates {
		targets[i] = c.Point
	}

	dt := next.Sample.Time().Sub(prev.Sample.Time()).Seconds()
	base := m.op.Distance(prev.Sample.Point, next.Sample.Point) / 60
	max := math.Max(1000, math.Min(m.cfg.MaxDistance, dt*100))
	beta := 2 * math.Max(1, dt)
	if m.cfg.Lambda > 0 {
		beta = 1 / m.cfg.Lambda
	}
	density := distuv.Exponential{Rate: 1 / beta}

	out := make(markov.Transitions[road.Point, *road.Route], len(prev.Candidates))
	for _, pred := range prev.Candidates {
		paths := m.router.Route([]road.Point{pred.Point}, targets, m.cost, road.DistanceCost, max)
		for _, c := range next.Candidates {
			path, ok := paths[c.Point.Key()]
			if !ok {
				continue
			}
			route := road.NewRoute(pred.Point, c.Point, path.Edges)
			out.Set(pred, c, markov.Transition[*road.Route]{
				Value:       route,
				Probability: density.Prob(math.Max(0, route.Cost(m.cost)-base)),
			})
		}
	}
	return out
}
