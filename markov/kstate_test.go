package markov

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockState = KState[int, string, tick]

func el(id int, prob float64, pred *element) *element {
	c := NewCandidate[int, string](id, pred)
	c.Filtprob = prob
	c.Seqprob = math.Log10(prob)
	return c
}

func points(seq []*element) []int {
	out := make([]int, len(seq))
	for i, c := range seq {
		out[i] = c.Point
	}
	return out
}

// runScenario feeds the update sequence shared by the bounded and unbounded
// tests and checks count, estimate and sequence after every update.
func runScenario(t *testing.T, state *mockState, counts []int, sequences [][]int) {
	t.Helper()
	e := map[int]*element{}

	e[0], e[1], e[2] = el(0, 0.3, nil), el(1, 0.2, nil), el(2, 0.5, nil)
	require.NoError(t, state.Update([]*element{e[0], e[1], e[2]}, tick(0)))
	assert.Equal(t, counts[0], state.Len())
	assert.Equal(t, 2, state.Estimate().Point)

	e[3], e[4] = el(3, 0.3, e[1]), el(4, 0.2, e[1])
	e[5], e[6] = el(5, 0.4, e[2]), el(6, 0.1, e[2])
	require.NoError(t, state.Update([]*element{e[3], e[4], e[5], e[6]}, tick(1)))
	assert.Equal(t, counts[1], state.Len())
	assert.Equal(t, 5, state.Estimate().Point)
	assert.Equal(t, sequences[0], points(state.Sequence()))

	e[7], e[8] = el(7, 0.3, e[5]), el(8, 0.2, e[5])
	e[9], e[10] = el(9, 0.4, e[6]), el(10, 0.1, e[6])
	require.NoError(t, state.Update([]*element{e[7], e[8], e[9], e[10]}, tick(2)))
	assert.Equal(t, counts[2], state.Len())
	assert.Equal(t, 9, state.Estimate().Point)
	assert.Equal(t, sequences[1], points(state.Sequence()))

	e[11], e[12], e[13], e[14] = el(11, 0.3, nil), el(12, 0.2, nil), el(13, 0.4, nil), el(14, 0.1, nil)
	require.NoError(t, state.Update([]*element{e[11], e[12], e[13], e[14]}, tick(3)))
	assert.Equal(t, counts[3], state.Len())
	assert.Equal(t, 13, state.Estimate().Point)
	assert.Equal(t, sequences[2], points(state.Sequence()))

	require.NoError(t, state.Update(nil, tick(4)))
	assert.Equal(t, counts[3], state.Len())
	assert.Equal(t, 13, state.Estimate().Point)
	assert.Equal(t, sequences[2], points(state.Sequence()))
}

func TestKStateUnbounded(t *testing.T) {
	state := NewKState[int, string, tick](-1, -1)
	runScenario(t, state,
		[]int{3, 6, 7, 8},
		[][]int{{2, 5}, {2, 6, 9}, {2, 6, 9, 13}},
	)
	assert.Equal(t, 4, state.Slots())
}

func TestKStateBoundedBySize(t *testing.T) {
	state := NewKState[int, string, tick](1, -1)
	runScenario(t, state,
		[]int{3, 6, 6, 5},
		[][]int{{2, 5}, {6, 9}, {9, 13}},
	)
	assert.Equal(t, 2, state.Slots())
}

func TestKStateBoundedByTime(t *testing.T) {
	state := NewKState[int, string, tick](-1, time.Millisecond)
	runScenario(t, state,
		[]int{3, 6, 6, 5},
		[][]int{{2, 5}, {6, 9}, {9, 13}},
	)
	assert.Equal(t, 2, state.Slots())
}

func TestKStateBreak(t *testing.T) {
	state := NewKState[int, string, tick](-1, -1)

	e0 := el(0, 0.4, nil)
	require.NoError(t, state.Update([]*element{e0}, tick(0)))

	e1 := &element{Point: 1, Filtprob: 0.6, Seqprob: math.Log(0.7)}
	e2 := &element{Point: 2, Filtprob: 0.4, Seqprob: math.Log(0.3), pred: e0}
	require.NoError(t, state.Update([]*element{e1, e2}, tick(1)))

	e3 := &element{Point: 3, Filtprob: 0.6, Seqprob: math.Log(0.5)}
	require.NoError(t, state.Update([]*element{e3}, tick(2)))

	assert.Equal(t, []int{0, 1, 3}, points(state.Sequence()))
	assert.Equal(t, 3, state.Len(), "anchors survive the break")
}

func TestKStateContractViolations(t *testing.T) {
	state := NewKState[int, string, tick](-1, -1)
	e0 := el(0, 1, nil)
	require.NoError(t, state.Update([]*element{e0}, tick(10)))

	err := state.Update([]*element{el(1, 1, e0)}, tick(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContractViolation))
	var cv *ContractViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "update", cv.Op)

	stranger := el(99, 1, nil)
	err = state.Update([]*element{el(2, 1, stranger)}, tick(11))
	assert.ErrorIs(t, err, ErrContractViolation)

	e1 := el(1, 1, e0)
	require.NoError(t, state.Update([]*element{e1}, tick(11)))

	// e0 is two updates back now
	err = state.Update([]*element{el(3, 1, e0)}, tick(12))
	assert.ErrorIs(t, err, ErrContractViolation)

	assert.Equal(t, 2, state.Len())
	assert.Equal(t, 2, state.Slots())
	assert.Equal(t, tick(11).Time(), state.Time())
}

func TestKStateWindowBounds(t *testing.T) {
	const k = 3
	bySize := NewKState[int, string, tick](k, -1)
	byTime := NewKState[int, string, tick](-1, 2500*time.Millisecond)

	var prevSize, prevTime []*element
	for i := 0; i < 20; i++ {
		now := tick(i * 1000)

		vs := []*element{el(2*i, 0.7, first(prevSize)), el(2*i+1, 0.3, first(prevSize))}
		require.NoError(t, bySize.Update(vs, now))
		prevSize = bySize.Vector()
		assert.LessOrEqual(t, bySize.Slots(), k+1)

		vt := []*element{el(2*i, 0.7, first(prevTime)), el(2*i+1, 0.3, first(prevTime))}
		require.NoError(t, byTime.Update(vt, now))
		prevTime = byTime.Vector()
		samples := byTime.Samples()
		assert.LessOrEqual(t, now.Time().Sub(samples[0].Time()), 2500*time.Millisecond)
	}
	assert.Equal(t, 3, byTime.Slots())
}

func TestKStateSequenceFollowsPredecessors(t *testing.T) {
	state := NewKState[int, string, tick](-1, -1)

	var prev []*element
	for i := 0; i < 6; i++ {
		var vector []*element
		for j := 0; j < 3; j++ {
			var pred *element
			if len(prev) > 0 {
				pred = prev[(i+j)%len(prev)]
			}
			vector = append(vector, el(10*i+j, float64(j+1)/6, pred))
		}
		require.NoError(t, state.Update(vector, tick(i)))
		prev = state.Vector()
	}

	seq := state.Sequence()
	require.Len(t, seq, state.Slots())
	for i := 1; i < len(seq); i++ {
		assert.Same(t, seq[i-1], state.Lookup(seq[i].Predecessor))
	}
}

func TestKStateEmpty(t *testing.T) {
	state := NewKState[int, string, tick](-1, -1)
	assert.True(t, state.Empty())
	assert.Nil(t, state.Estimate())
	assert.Empty(t, state.Sequence())
	assert.True(t, state.Time().IsZero())
	_, ok := state.Sample()
	assert.False(t, ok)
	assert.Nil(t, state.Lookup(Ref{Seq: 1}))
}

func first(v []*element) *element {
	if len(v) == 0 {
		return nil
	}
	return v[0]
}
