// Package markov implements a generic hidden Markov model filter step and a
// bounded state memory that keeps the most likely state sequence of an
// online process.
package markov

import "time"

// Sample is a measurement with a timestamp.
type Sample interface {
	Time() time.Time
}

// Ref names a candidate retained by a KState: Seq identifies the slot and
// Index the candidate within it. The zero Ref refers to nothing.
type Ref struct {
	Seq   int64
	Index int
}

// IsZero reports whether r refers to no candidate.
func (r Ref) IsZero() bool { return r.Seq == 0 }

// Candidate is one state hypothesis for a sample. Point is the state itself
// (a road position for map matching) and Transition the object explaining
// how it was reached from its predecessor.
type Candidate[P, T any] struct {
	Point      P
	Filtprob   float64
	Seqprob    float64
	Transition T
	// Predecessor is set once the candidate has been stored in a KState.
	Predecessor Ref

	pred *Candidate[P, T]
}

// NewCandidate returns a candidate for point whose most likely predecessor
// is pred, which may be nil.
func NewCandidate[P, T any](point P, pred *Candidate[P, T]) *Candidate[P, T] {
	return &Candidate[P, T]{Point: point, pred: pred}
}

// Chained reports whether the candidate has a predecessor, stored or not.
func (c *Candidate[P, T]) Chained() bool {
	return c.pred != nil || !c.Predecessor.IsZero()
}

// Emission pairs a fresh candidate with its emission probability.
type Emission[P, T any] struct {
	Candidate   *Candidate[P, T]
	Probability float64
}

// Transition pairs a transition object with its probability.
type Transition[T any] struct {
	Value       T
	Probability float64
}

// Transitions maps predecessor to candidate to transition. Missing pairs
// have no transition.
type Transitions[P, T any] map[*Candidate[P, T]]map[*Candidate[P, T]]Transition[T]

// Set records the transition from one candidate to another.
func (t Transitions[P, T]) Set(from, to *Candidate[P, T], tr Transition[T]) {
	m, ok := t[from]
	if !ok {
		m = make(map[*Candidate[P, T]]Transition[T])
		t[from] = m
	}
	m[to] = tr
}

// Get returns the transition from one candidate to another, if any.
func (t Transitions[P, T]) Get(from, to *Candidate[P, T]) (Transition[T], bool) {
	tr, ok := t[from][to]
	return tr, ok
}

// Step is a sample together with its candidate vector.
type Step[P, T any, S Sample] struct {
	Sample     S
	Candidates []*Candidate[P, T]
}
