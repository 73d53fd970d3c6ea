package worker_test

import (
	"testing"

	"github.com/IteraLabs/convective/internal/model"
	"github.com/IteraLabs/convective/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearBatch(t *testing.T) *model.Batch {
	t.Helper()
	// y = 2x exactly; minimum of the least-squares loss is w=2, b=0.
	b, err := model.NewBatch([][]float64{{1}, {2}, {-1}}, []float64{2, 4, -2})
	require.NoError(t, err)
	return b
}

func newLinearAgent(t *testing.T, init []float64, normBound float64) *worker.Agent {
	t.Helper()
	mdl, err := model.New(model.LinearModelName, 0)
	require.NoError(t, err)
	a, err := worker.NewAgent(0, mdl, linearBatch(t), init, normBound)
	require.NoError(t, err)
	return a
}

func TestNewAgent_DimMismatch(t *testing.T) {
	mdl, err := model.New(model.LinearModelName, 0)
	require.NoError(t, err)
	_, err = worker.NewAgent(0, mdl, linearBatch(t), []float64{1, 2, 3}, 0)
	require.Error(t, err)
}

func TestLocalStep_ExactUpdate(t *testing.T) {
	// From (w,b) = (0,0): residuals are -y, mean gradient is
	// dw = mean(-y*x) = -(2 + 8 + 2)/3 = -4, db = mean(-y) = -4/3.
	a := newLinearAgent(t, []float64{0, 0}, 0)
	require.NoError(t, a.LocalStep(0.1))

	state := a.Snapshot()
	assert.InDelta(t, 0.4, state[0], 1e-12)
	assert.InDelta(t, 0.4/3.0, state[1], 1e-12)
	assert.Equal(t, worker.PhaseIdle, a.Phase())
}

func TestLocalStep_ReducesObjective(t *testing.T) {
	a := newLinearAgent(t, []float64{0, 0}, 0)
	before := a.Objective()
	require.NoError(t, a.LocalStep(0.05))
	assert.Less(t, a.Objective(), before)
}

func TestLocalStep_Diverged(t *testing.T) {
	// An absurd learning rate overshoots past any reasonable norm bound.
	a := newLinearAgent(t, []float64{0, 0}, 10.0)
	err := a.LocalStep(1e6)
	require.ErrorIs(t, err, worker.ErrDivergedState)
}

func TestSnapshot_IsACopy(t *testing.T) {
	a := newLinearAgent(t, []float64{1, 1}, 0)
	snap := a.Snapshot()
	snap[0] = 99
	assert.Equal(t, 1.0, a.Snapshot()[0])
}

func TestRestore(t *testing.T) {
	a := newLinearAgent(t, []float64{1, 1}, 0)
	require.NoError(t, a.LocalStep(0.1))
	a.Restore([]float64{1, 1})
	assert.Equal(t, []float64{1, 1}, a.Snapshot())
}

func TestMix_WeightedAverage(t *testing.T) {
	a := newLinearAgent(t, []float64{1, 2}, 0)
	neighbors := map[int][]float64{
		1: {3, 4},
		2: {5, 6},
	}
	// Row of a doubly stochastic matrix: self 0.5, each neighbor 0.25.
	a.Mix(neighbors, []float64{0.5, 0.25, 0.25})

	state := a.Snapshot()
	assert.InDelta(t, 0.5*1+0.25*3+0.25*5, state[0], 1e-12)
	assert.InDelta(t, 0.5*2+0.25*4+0.25*6, state[1], 1e-12)
}

func TestMix_IdentityRow(t *testing.T) {
	a := newLinearAgent(t, []float64{1, 2}, 0)
	a.Mix(map[int][]float64{1: {100, 100}}, []float64{1, 0})
	assert.Equal(t, []float64{1, 2}, a.Snapshot())
}

func TestPhaseTransitions(t *testing.T) {
	a := newLinearAgent(t, []float64{0, 0}, 0)
	assert.Equal(t, worker.PhaseIdle, a.Phase())
	a.AwaitNeighbors()
	assert.Equal(t, worker.PhaseAwaitingNeighborStates, a.Phase())
	a.Mix(nil, []float64{1, 0})
	assert.Equal(t, worker.PhaseIdle, a.Phase())
	assert.Equal(t, "AwaitingNeighborStates", worker.PhaseAwaitingNeighborStates.String())
}
