// Package worker implements the per-node agent: it owns one data partition
// and one mutable copy of the model parameters, computes full-partition
// gradients, and mixes its state with neighbor states using its row of the
// mixing matrix. Agents never share mutable state; every cross-agent value
// is a copy.
package worker

import (
	"errors"
	"fmt"

	"github.com/IteraLabs/convective/internal/common"
	"github.com/IteraLabs/convective/internal/model"
)

// ErrDivergedState signals that an agent's parameter norm exceeded the
// configured bound after a gradient step. It is recoverable at the
// optimizer level: the round is retried at a reduced learning rate.
var ErrDivergedState = errors.New("worker: parameter norm exceeded bound")

// Phase is the agent's position in its per-round cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseComputingGradient
	PhaseAwaitingNeighborStates
	PhaseMixing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseComputingGradient:
		return "ComputingGradient"
	case PhaseAwaitingNeighborStates:
		return "AwaitingNeighborStates"
	case PhaseMixing:
		return "Mixing"
	default:
		return "Unknown"
	}
}

// Agent is one worker node. Not safe for concurrent use: the optimizer
// drives each agent from exactly one goroutine.
type Agent struct {
	ID int

	mdl       model.IConvexModel
	batch     *model.Batch
	state     []float64
	grad      []float64
	normBound float64
	phase     Phase
}

// NewAgent builds an agent over its exclusive partition. init is copied.
func NewAgent(id int, mdl model.IConvexModel, batch *model.Batch, init []float64, normBound float64) (*Agent, error) {
	dim := mdl.Dim(batch.Features())
	if len(init) != dim {
		return nil, fmt.Errorf("agent %d: init dim %d, want %d", id, len(init), dim)
	}
	if normBound <= 0 {
		normBound = common.DEFAULT_NORM_BOUND
	}
	return &Agent{
		ID:        id,
		mdl:       mdl,
		batch:     batch,
		state:     common.CopyVector(init),
		grad:      make([]float64, dim),
		normBound: normBound,
	}, nil
}

// Phase returns the agent's current cycle phase.
func (a *Agent) Phase() Phase {
	return a.phase
}

// Snapshot returns a value copy of the agent's parameters. This is the only
// way state ever leaves the agent.
func (a *Agent) Snapshot() []float64 {
	return common.CopyVector(a.state)
}

// Restore overwrites the agent's state with a copy of params. Used by the
// optimizer when replaying a failed round.
func (a *Agent) Restore(params []float64) {
	a.state = common.CopyVector(params)
}

// LocalStep computes the full-partition batch gradient and applies one
// gradient-descent update. Returns ErrDivergedState when the updated
// parameter norm exceeds the bound; the state keeps the diverged value so
// the optimizer can decide to restore and retry.
func (a *Agent) LocalStep(learningRate float64) error {
	a.phase = PhaseComputingGradient
	defer func() { a.phase = PhaseIdle }()

	model.BatchGradient(a.mdl, a.batch, a.state, a.grad)
	for i := range a.state {
		a.state[i] -= learningRate * a.grad[i]
	}

	if norm := common.L2Norm(a.state); norm > a.normBound {
		return fmt.Errorf("agent %d: norm %v > bound %v: %w", a.ID, norm, a.normBound, ErrDivergedState)
	}
	return nil
}

// Mix replaces the agent's state with the weighted average of its own and
// its neighbors' states, weighted by the agent's row of the mixing matrix.
// weights is indexed by node id; entries for non-neighbors are zero. An
// identity row (self weight 1) leaves the state unchanged.
func (a *Agent) Mix(neighborStates map[int][]float64, weights []float64) {
	a.phase = PhaseMixing
	defer func() { a.phase = PhaseIdle }()

	mixed := make([]float64, len(a.state))
	selfW := weights[a.ID]
	for i, x := range a.state {
		mixed[i] = selfW * x
	}
	for id, st := range neighborStates {
		w := weights[id]
		if w == 0 {
			continue
		}
		for i, x := range st {
			mixed[i] += w * x
		}
	}
	a.state = mixed
}

// Objective returns the local batch loss at the current state.
func (a *Agent) Objective() float64 {
	return model.BatchLoss(a.mdl, a.batch, a.state)
}

// AwaitNeighbors marks the exchange phase; the optimizer calls it while the
// agent blocks on its inbox.
func (a *Agent) AwaitNeighbors() {
	a.phase = PhaseAwaitingNeighborStates
}
