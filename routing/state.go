package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"kuanb/gosm-matcher/markov"
	"kuanb/gosm-matcher/road"
)

// ErrNoSamples is returned when matching an empty trace.
var ErrNoSamples = errors.New("no samples to match")

// Match is one element of a decoded sequence.
type Match struct {
	SampleID  string
	Time      time.Time
	Point     orb.Point
	RoadID    int64
	SegmentID int64
	Fraction  float64
	Heading   road.Heading
	Filtprob  float64
	Seqprob   float64
	// Route leads from the previous match, nil after a break.
	Route *road.Route
}

// MatchState is the online matching state of one trajectory. It is not
// safe for concurrent use.
type MatchState struct {
	matcher *Matcher
	filter  *markov.Filter[road.Point, *road.Route, Sample]
	state   *markov.KState[road.Point, *road.Route, Sample]
}

// NewState starts a trajectory whose window keeps k+1 samples and t of
// time; negative values are unbounded.
func (m *Matcher) NewState(k int, t time.Duration) *MatchState {
	f := markov.NewFilter[road.Point, *road.Route, Sample](m, m.logger)
	if m.observer != nil {
		f.OnBreak = m.observer.ObserveBreak
	}
	return &MatchState{
		matcher: m,
		filter:  f,
		state:   markov.NewKState[road.Point, *road.Route, Sample](k, t),
	}
}

// Push runs one filter step for sample and stores the result. It returns
// the sample's candidates ranked by descending filter probability; the
// vector is empty if no road is near it.
func (s *MatchState) Push(sample Sample) ([]*Candidate, error) {
	start := time.Now()

	var previous *Sample
	if last, ok := s.state.Sample(); ok {
		if sample.Time().Before(last.Time()) {
			return nil, &markov.ContractViolation{
				Op:     "push",
				Reason: fmt.Sprintf("sample %q at %s precedes %q at %s", sample.ID, sample.Time(), last.ID, last.Time()),
			}
		}
		previous = &last
	}

	vector := s.filter.Execute(s.state.Vector(), previous, sample)
	if err := s.state.Update(vector, sample); err != nil {
		return nil, err
	}

	if s.matcher.observer != nil {
		s.matcher.observer.ObserveSample(len(vector), time.Since(start))
	}
	s.matcher.logger.Debug("sample matched",
		zap.String("sample", sample.ID),
		zap.Int("candidates", len(vector)),
		zap.Duration("elapsed", time.Since(start)),
	)

	ranked := make([]*Candidate, len(vector))
	copy(ranked, vector)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Filtprob > ranked[j].Filtprob })
	return ranked, nil
}

// PushAll pushes samples in order and returns the ranked vector of the
// last one. The ordering of the whole batch is checked first, so a
// rejected batch leaves the state untouched.
func (s *MatchState) PushAll(samples []Sample) ([]*Candidate, error) {
	last, ok := s.state.Sample()
	for _, sample := range samples {
		if ok && sample.Time().Before(last.Time()) {
			return nil, &markov.ContractViolation{
				Op:     "push",
				Reason: fmt.Sprintf("sample %q at %s precedes %q at %s", sample.ID, sample.Time(), last.ID, last.Time()),
			}
		}
		last, ok = sample, true
	}

	var vector []*Candidate
	for _, sample := range samples {
		v, err := s.Push(sample)
		if err != nil {
			return nil, err
		}
		vector = v
	}
	return vector, nil
}

// Estimate returns the most likely position of the last sample.
func (s *MatchState) Estimate() (Match, bool) {
	c := s.state.Estimate()
	last, ok := s.state.Sample()
	if c == nil || !ok {
		return Match{}, false
	}
	m := toMatch(last, c)
	if prev := s.state.Lookup(c.Predecessor); prev != nil {
		m.Route = c.Transition
	}
	return m, true
}

// Sequence decodes the most likely matches of the retained samples.
func (s *MatchState) Sequence() []Match {
	seq := s.state.Sequence()
	samples := s.state.Samples()
	out := make([]Match, len(seq))
	for i, c := range seq {
		out[i] = toMatch(samples[i], c)
		if i > 0 && s.state.Lookup(c.Predecessor) == seq[i-1] {
			out[i].Route = c.Transition
		}
	}
	return out
}

// Geometry joins the routes of the decoded sequence into lines, one per
// stretch without a break.
func (s *MatchState) Geometry() orb.MultiLineString {
	return Geometry(s.Sequence(), s.matcher.op)
}

func (s *MatchState) Len() int { return s.state.Slots() }

func toMatch(sample Sample, c *Candidate) Match {
	return Match{
		SampleID:  sample.ID,
		Time:      sample.Time(),
		Point:     c.Point.Coordinate,
		RoadID:    c.Point.Segment.RoadID(),
		SegmentID: c.Point.Segment.ID,
		Fraction:  c.Point.Fraction,
		Heading:   c.Point.Segment.Heading,
		Filtprob:  c.Filtprob,
		Seqprob:   c.Seqprob,
	}
}

// Result is the outcome of matching a whole trace.
type Result struct {
	Matches  []Match
	Geometry orb.MultiLineString
	// Confidence is the filter probability of the final estimate.
	Confidence float64
}

// MatchAll matches a complete trace offline.
func (m *Matcher) MatchAll(ctx context.Context, samples []Sample) (*Result, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	state := m.NewState(-1, -1)
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := state.Push(sample); err != nil {
			return nil, err
		}
	}

	return state.Result(), nil
}

// Result decodes the retained samples with their geometry.
func (s *MatchState) Result() *Result {
	res := &Result{Matches: s.Sequence()}
	res.Geometry = Geometry(res.Matches, s.matcher.op)
	if est, ok := s.Estimate(); ok {
		res.Confidence = est.Filtprob
	}
	return res
}
