package markov

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Model supplies the problem specific parts of an HMM step.
type Model[P, T any, S Sample] interface {
	// Candidates returns the state candidates of sample with their
	// emission probabilities.
	Candidates(predecessors []*Candidate[P, T], sample S) []Emission[P, T]
	// Transitions returns the transitions from the previous step's
	// candidates to the next step's candidates.
	Transitions(prev, next Step[P, T, S]) Transitions[P, T]
}

// TransitionFunc computes the transition between one pair of candidates. ok
// is false when there is none.
type TransitionFunc[P, T any, S Sample] func(prevSample S, from *Candidate[P, T], sample S, to *Candidate[P, T]) (tr Transition[T], ok bool)

// PairwiseTransitions evaluates fn for every pair of candidates. Models
// without a cheaper batch computation can implement Transitions with it.
func PairwiseTransitions[P, T any, S Sample](prev, next Step[P, T, S], fn TransitionFunc[P, T, S]) Transitions[P, T] {
	out := make(Transitions[P, T], len(prev.Candidates))
	for _, from := range prev.Candidates {
		for _, to := range next.Candidates {
			if tr, ok := fn(prev.Sample, from, next.Sample, to); ok {
				out.Set(from, to, tr)
			}
		}
	}
	return out
}

// BreakKind classifies HMM breaks.
type BreakKind int

const (
	// NoEmissions means the sample produced no usable candidate.
	NoEmissions BreakKind = iota + 1
	// NoTransitions means no candidate is reachable from any predecessor.
	NoTransitions
)

func (k BreakKind) String() string {
	switch k {
	case NoEmissions:
		return "no state emissions"
	case NoTransitions:
		return "no state transitions"
	default:
		return "unknown"
	}
}

// Filter runs single HMM steps for a Model. A Filter holds no per
// trajectory state and may be shared.
type Filter[P, T any, S Sample] struct {
	model  Model[P, T, S]
	logger *zap.Logger

	// OnBreak, if set, is called for every HMM break.
	OnBreak func(BreakKind)
}

// NewFilter returns a filter over model. A nil logger discards output.
func NewFilter[P, T any, S Sample](model Model[P, T, S], logger *zap.Logger) *Filter[P, T, S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter[P, T, S]{model: model, logger: logger}
}

// Execute computes the state vector of sample from the predecessor vector
// of the previous sample. previous may be nil and predecessors empty, for
// the first sample or after a break. The returned filter probabilities sum
// to one; the vector is empty only if no candidate has a positive emission
// probability.
func (f *Filter[P, T, S]) Execute(predecessors []*Candidate[P, T], previous *S, sample S) []*Candidate[P, T] {
	emissions := f.model.Candidates(predecessors, sample)

	var result []*Candidate[P, T]
	if previous != nil && len(predecessors) > 0 {
		states := make([]*Candidate[P, T], 0, len(emissions))
		for _, e := range emissions {
			states = append(states, e.Candidate)
		}
		transitions := f.model.Transitions(
			Step[P, T, S]{Sample: *previous, Candidates: predecessors},
			Step[P, T, S]{Sample: sample, Candidates: states},
		)

		for _, e := range emissions {
			c := e.Candidate
			c.Filtprob = 0
			c.Seqprob = math.Inf(-1)

			for _, p := range predecessors {
				tr, ok := transitions.Get(p, c)
				if !ok || tr.Probability == 0 {
					continue
				}

				c.Filtprob += tr.Probability * p.Filtprob

				seqprob := p.Seqprob + math.Log10(tr.Probability) + math.Log10(e.Probability)
				if seqprob > c.Seqprob {
					c.pred = p
					c.Transition = tr.Value
					c.Seqprob = seqprob
				}
			}

			if c.Filtprob == 0 {
				continue
			}
			c.Filtprob *= e.Probability
			result = append(result, c)
		}

		if len(emissions) > 0 && len(result) == 0 {
			f.broken(NoTransitions, sample)
		}
	}

	if len(result) == 0 {
		var zero T
		for _, e := range emissions {
			if e.Probability == 0 {
				continue
			}
			c := e.Candidate
			c.pred = nil
			c.Transition = zero
			c.Filtprob = e.Probability
			c.Seqprob = math.Log10(e.Probability)
			result = append(result, c)
		}
	}

	if len(result) == 0 {
		f.broken(NoEmissions, sample)
		return nil
	}

	normalize(result)
	return result
}

func (f *Filter[P, T, S]) broken(kind BreakKind, sample S) {
	f.logger.Debug("HMM break", zap.Stringer("reason", kind), zap.Time("time", sample.Time()))
	if f.OnBreak != nil {
		f.OnBreak(kind)
	}
}

// normalize scales filter probabilities to sum to one.
func normalize[P, T any](vector []*Candidate[P, T]) {
	probs := make([]float64, len(vector))
	for i, c := range vector {
		probs[i] = c.Filtprob
	}
	sum := floats.Sum(probs)
	if sum == 0 {
		return
	}
	floats.Scale(1/sum, probs)
	for i, c := range vector {
		c.Filtprob = probs[i]
	}
}
