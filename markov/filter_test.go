package markov

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tick int64

func (t tick) Time() time.Time { return time.UnixMilli(int64(t)).UTC() }

type element = Candidate[int, string]

// matrixModel reads emissions and transitions from a matrix whose first row
// holds the candidates' emission probabilities and whose following rows
// hold, per predecessor, its filter and sequence probability followed by
// the transition probabilities to every candidate.
type matrixModel struct {
	matrix [][]float64
}

func (m matrixModel) numCandidates() int   { return len(m.matrix[0]) - 2 }
func (m matrixModel) numPredecessors() int { return len(m.matrix) - 1 }
func (m matrixModel) emission(c int) float64 {
	return m.matrix[0][c+2]
}
func (m matrixModel) transition(p, c int) float64 {
	return m.matrix[p+1][c+2]
}

func (m matrixModel) Candidates(_ []*element, _ tick) []Emission[int, string] {
	out := make([]Emission[int, string], m.numCandidates())
	for c := range out {
		out[c] = Emission[int, string]{Candidate: NewCandidate[int, string](c, nil), Probability: m.emission(c)}
	}
	return out
}

func (m matrixModel) Transitions(prev, next Step[int, string, tick]) Transitions[int, string] {
	return PairwiseTransitions(prev, next, func(_ tick, from *element, _ tick, to *element) (Transition[string], bool) {
		return Transition[string]{Value: "t", Probability: m.transition(from.Point, to.Point)}, true
	})
}

func (m matrixModel) predecessors() []*element {
	out := make([]*element, m.numPredecessors())
	for p := range out {
		out[p] = &element{Point: p, Filtprob: m.matrix[p+1][0], Seqprob: math.Log10(m.matrix[p+1][1])}
	}
	return out
}

// expected computes the filter result candidate by candidate.
func (m matrixModel) expected() (filtprob, seqprob []float64, pred []int) {
	n := m.numCandidates()
	filtprob = make([]float64, n)
	seqprob = make([]float64, n)
	pred = make([]int, n)

	sum := 0.0
	for c := 0; c < n; c++ {
		seqprob[c] = math.Inf(-1)
		reached := false
		for p := 0; p < m.numPredecessors(); p++ {
			tr := m.transition(p, c)
			if tr == 0 {
				continue
			}
			reached = true
			filtprob[c] += m.matrix[p+1][0] * tr
			s := math.Log10(m.matrix[p+1][1]) + math.Log10(tr) + math.Log10(m.emission(c))
			if s > seqprob[c] {
				seqprob[c] = s
				pred[c] = p
			}
		}
		if !reached {
			filtprob[c] = m.emission(c)
			seqprob[c] = math.Log10(m.emission(c))
			pred[c] = -1
		} else {
			filtprob[c] *= m.emission(c)
		}
		sum += filtprob[c]
	}
	for c := range filtprob {
		filtprob[c] /= sum
	}
	return filtprob, seqprob, pred
}

func TestFilterExecute(t *testing.T) {
	tests := []struct {
		name   string
		matrix [][]float64
		breaks []BreakKind
	}{
		{
			name:   "initial",
			matrix: [][]float64{{0, 0, 0.6, 1.0, 0.4}},
		},
		{
			name: "subsequent",
			matrix: [][]float64{
				{0, 0, 0.6, 1.0, 0.4},
				{0.2, 0.3, 0.01, 0.02, 0.3},
				{0.3, 0.4, 0.2, 0.05, 0.02},
			},
		},
		{
			name: "break transition",
			matrix: [][]float64{
				{0, 0, 0.6, 1.0, 0.4},
				{0.2, 0.3, 0, 0, 0},
				{0.3, 0.4, 0, 0, 0},
			},
			breaks: []BreakKind{NoTransitions},
		},
		{
			name: "break candidates",
			matrix: [][]float64{
				{0, 0},
				{0.2, 0.3},
				{0.3, 0.4},
			},
			breaks: []BreakKind{NoEmissions},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := matrixModel{matrix: tt.matrix}
			filter := NewFilter[int, string, tick](model, nil)
			var breaks []BreakKind
			filter.OnBreak = func(k BreakKind) { breaks = append(breaks, k) }

			predecessors := model.predecessors()
			previous := tick(0)
			result := filter.Execute(predecessors, &previous, tick(1))

			require.Len(t, result, model.numCandidates())
			assert.Equal(t, tt.breaks, breaks)

			filtprob, seqprob, pred := model.expected()
			sum := 0.0
			for _, c := range result {
				sum += c.Filtprob
				assert.InDelta(t, filtprob[c.Point], c.Filtprob, 1e-6)
				assert.InDelta(t, seqprob[c.Point], c.Seqprob, 1e-6)
				if pred[c.Point] == -1 {
					assert.Nil(t, c.pred)
					assert.Empty(t, c.Transition)
				} else {
					require.NotNil(t, c.pred)
					assert.Equal(t, pred[c.Point], c.pred.Point)
					assert.Equal(t, "t", c.Transition)
				}
			}
			if len(result) > 0 {
				assert.InDelta(t, 1.0, sum, 1e-6)
			}
		})
	}
}

func TestFilterSkipsZeroEmissions(t *testing.T) {
	model := matrixModel{matrix: [][]float64{{0, 0, 0.5, 0, 0.25}}}
	filter := NewFilter[int, string, tick](model, nil)

	result := filter.Execute(nil, nil, tick(0))
	require.Len(t, result, 2)
	assert.InDelta(t, 2.0/3, result[0].Filtprob, 1e-9)
	assert.InDelta(t, 1.0/3, result[1].Filtprob, 1e-9)
}

func TestFilterDropsUnreachableCandidates(t *testing.T) {
	model := matrixModel{matrix: [][]float64{
		{0, 0, 0.6, 1.0},
		{1.0, 1.0, 0.5, 0},
	}}
	filter := NewFilter[int, string, tick](model, nil)

	previous := tick(0)
	result := filter.Execute(model.predecessors(), &previous, tick(1))
	require.Len(t, result, 1)
	assert.Equal(t, 0, result[0].Point)
	assert.InDelta(t, 1.0, result[0].Filtprob, 1e-9)
	assert.True(t, result[0].Chained())
}
