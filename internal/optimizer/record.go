package optimizer

import "github.com/IteraLabs/convective/internal/common"

// Status is the terminal state of a run.
type Status string

const (
	StatusConverged            Status = common.RUN_STATUS_CONVERGED
	StatusRoundBudgetExhausted Status = common.RUN_STATUS_BUDGET_EXHAUSTED
	StatusDiverged             Status = common.RUN_STATUS_DIVERGED
	StatusCancelled            Status = common.RUN_STATUS_CANCELLED
)

// ConvergenceRecord is one per-round diagnostics snapshot. Objective is the
// mean of the agents' local batch losses; Disagreement is the maximum
// pairwise Euclidean distance between any two agents' parameter vectors.
type ConvergenceRecord struct {
	Round        int     `json:"round"`
	Objective    float64 `json:"objective"`
	Disagreement float64 `json:"disagreement"`
}

// Result carries the terminal status, the best-effort global parameters
// (mean of agent states at termination) and the full per-round history.
// A run that merely exhausted its round budget is not an error: the caller
// still gets parameters and diagnostics.
type Result struct {
	Status            Status
	Params            []float64
	History           []ConvergenceRecord
	Rounds            int
	FinalLearningRate float64
	FailureReason     error
}

// maxPairwiseDisagreement is the convergence tie-break rule: the maximum,
// not the average, pairwise distance, so convergence implies a global
// agreement bound.
func maxPairwiseDisagreement(states [][]float64) float64 {
	maxDist := 0.0
	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			if d := common.EuclideanDistance(states[i], states[j]); d > maxDist {
				maxDist = d
			}
		}
	}
	return maxDist
}
