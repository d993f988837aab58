package markov

import (
	"time"
)

type slot[P, T any, S Sample] struct {
	seq        int64
	sample     S
	candidates []*Candidate[P, T] // nil once removed
	refs       []int
	anchor     int
}

func (s *slot[P, T, S]) indexOf(c *Candidate[P, T]) int {
	for i, x := range s.candidates {
		if x != nil && x == c {
			return i
		}
	}
	return -1
}

// KState is a bounded state memory. It keeps the candidate vectors of the
// last k+1 updates and of at most t of sample time, removes candidates no
// later candidate descends from, and decodes the most likely sequence of
// the retained window.
//
// A KState is not safe for concurrent use.
type KState[P, T any, S Sample] struct {
	k     int
	t     time.Duration
	slots []*slot[P, T, S]
	seq   int64
	count int
}

// NewKState returns an empty KState retaining at most k+1 slots and t of
// sample time. Negative values disable the respective bound.
func NewKState[P, T any, S Sample](k int, t time.Duration) *KState[P, T, S] {
	return &KState[P, T, S]{k: k, t: t}
}

// Update appends vector as the state of sample. An empty vector leaves the
// state unchanged. Samples older than the last update and candidates whose
// predecessor is not a retained candidate of the last update are rejected
// with a *ContractViolation.
func (k *KState[P, T, S]) Update(vector []*Candidate[P, T], sample S) error {
	if len(vector) == 0 {
		return nil
	}

	var last *slot[P, T, S]
	if n := len(k.slots); n > 0 {
		last = k.slots[n-1]
		if sample.Time().Before(last.sample.Time()) {
			return violation("update", "sample at %s precedes last update at %s",
				sample.Time().Format(time.RFC3339Nano), last.sample.Time().Format(time.RFC3339Nano))
		}
	}

	refs := make([]Ref, len(vector))
	for i, c := range vector {
		if c.pred == nil {
			continue
		}
		idx := -1
		if last != nil {
			idx = last.indexOf(c.pred)
		}
		if idx < 0 {
			return violation("update", "predecessor of candidate %d is not in the last state vector", i)
		}
		refs[i] = Ref{Seq: last.seq, Index: idx}
	}

	next := &slot[P, T, S]{
		sample:     sample,
		candidates: make([]*Candidate[P, T], len(vector)),
		refs:       make([]int, len(vector)),
	}
	for i, c := range vector {
		c.Predecessor = refs[i]
		c.pred = nil
		if !refs[i].IsZero() {
			last.refs[refs[i].Index]++
		}
		next.candidates[i] = c
		if c.Filtprob > vector[next.anchor].Filtprob {
			next.anchor = i
		}
	}

	if last != nil {
		pos := len(k.slots) - 1
		for i, c := range last.candidates {
			if c != nil && last.refs[i] == 0 {
				k.remove(pos, i)
			}
		}
	}

	k.seq++
	next.seq = k.seq
	k.slots = append(k.slots, next)
	k.count += len(vector)
	k.trim(sample.Time())
	return nil
}

// remove deletes candidate i of the slot at pos and releases its
// predecessor, which is removed in turn once nothing refers to it. Slot
// anchors are never removed.
func (k *KState[P, T, S]) remove(pos, i int) {
	s := k.slots[pos]
	c := s.candidates[i]
	if c == nil || i == s.anchor {
		return
	}
	s.candidates[i] = nil
	k.count--

	if c.Predecessor.IsZero() || pos == 0 {
		return
	}
	prev := k.slots[pos-1]
	if prev.seq != c.Predecessor.Seq {
		return
	}
	j := c.Predecessor.Index
	prev.refs[j]--
	if prev.refs[j] <= 0 {
		k.remove(pos-1, j)
	}
}

func (k *KState[P, T, S]) trim(now time.Time) {
	for len(k.slots) > 1 {
		first := k.slots[0]
		span := now.Sub(first.sample.Time()).Round(time.Millisecond)
		if (k.k < 0 || len(k.slots) <= k.k+1) && (k.t < 0 || span <= k.t) {
			return
		}

		for _, c := range first.candidates {
			if c != nil {
				k.count--
			}
		}
		k.slots[0] = nil
		k.slots = k.slots[1:]

		for _, c := range k.slots[0].candidates {
			if c != nil {
				c.Predecessor = Ref{}
			}
		}
	}
}

// Lookup resolves a reference to a retained candidate. It returns nil if
// the candidate was removed or its slot left the window.
func (k *KState[P, T, S]) Lookup(r Ref) *Candidate[P, T] {
	if r.IsZero() || len(k.slots) == 0 {
		return nil
	}
	pos := int(r.Seq - k.slots[0].seq)
	if pos < 0 || pos >= len(k.slots) {
		return nil
	}
	s := k.slots[pos]
	if r.Index < 0 || r.Index >= len(s.candidates) {
		return nil
	}
	return s.candidates[r.Index]
}

// Vector returns the candidates of the last update.
func (k *KState[P, T, S]) Vector() []*Candidate[P, T] {
	if len(k.slots) == 0 {
		return nil
	}
	return retained(k.slots[len(k.slots)-1].candidates)
}

// Estimate returns the candidate of the last update with the highest
// filter probability, or nil before the first update.
func (k *KState[P, T, S]) Estimate() *Candidate[P, T] {
	var best *Candidate[P, T]
	for _, c := range k.Vector() {
		if best == nil || c.Filtprob > best.Filtprob {
			best = c
		}
	}
	return best
}

// Sequence returns one candidate per retained slot, oldest first, by
// following predecessors back from the estimate of the last update. Where
// the chain breaks, it restarts from that slot's anchor.
func (k *KState[P, T, S]) Sequence() []*Candidate[P, T] {
	out := make([]*Candidate[P, T], len(k.slots))
	var next *Candidate[P, T]
	for pos := len(k.slots) - 1; pos >= 0; pos-- {
		s := k.slots[pos]
		c := next
		if c == nil {
			c = s.candidates[s.anchor]
		}
		out[pos] = c
		next = k.Lookup(c.Predecessor)
	}
	return out
}

// Samples returns the samples of the retained slots, oldest first.
func (k *KState[P, T, S]) Samples() []S {
	out := make([]S, len(k.slots))
	for i, s := range k.slots {
		out[i] = s.sample
	}
	return out
}

// Sample returns the sample of the last update.
func (k *KState[P, T, S]) Sample() (S, bool) {
	if len(k.slots) == 0 {
		var zero S
		return zero, false
	}
	return k.slots[len(k.slots)-1].sample, true
}

// Time is the time of the last update, or the zero time.
func (k *KState[P, T, S]) Time() time.Time {
	s, ok := k.Sample()
	if !ok {
		return time.Time{}
	}
	return s.Time()
}

// Len is the number of retained candidates.
func (k *KState[P, T, S]) Len() int { return k.count }

// Slots is the number of retained updates.
func (k *KState[P, T, S]) Slots() int { return len(k.slots) }

// Empty reports whether no candidate is retained.
func (k *KState[P, T, S]) Empty() bool { return k.count == 0 }

func retained[P, T any](candidates []*Candidate[P, T]) []*Candidate[P, T] {
	out := make([]*Candidate[P, T], 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
