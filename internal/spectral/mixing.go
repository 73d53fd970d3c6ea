package spectral

import (
	"fmt"
	"math"

	"github.com/IteraLabs/convective/internal/common"
	"gonum.org/v1/gonum/mat"
)

// MixingMethod selects how consensus averaging weights are derived from the
// topology.
type MixingMethod string

const (
	// MixingMetropolis uses Metropolis-Hastings weights: each edge gets
	// 1/(1+max(deg(u),deg(v))) and the diagonal absorbs the remainder.
	// Always yields a valid doubly-stochastic matrix, no step size needed.
	MixingMetropolis MixingMethod = common.MIXING_METROPOLIS

	// MixingLaplacian uses W = I - epsilon*L, valid for
	// 0 < epsilon < 1/lambda_max(L).
	MixingLaplacian MixingMethod = common.MIXING_LAPLACIAN
)

// ParseMixingMethod maps a config string onto a MixingMethod.
func ParseMixingMethod(name string) (MixingMethod, error) {
	switch name {
	case common.MIXING_METROPOLIS:
		return MixingMetropolis, nil
	case common.MIXING_LAPLACIAN:
		return MixingLaplacian, nil
	default:
		return "", fmt.Errorf("unknown mixing method %q", name)
	}
}

// MixingMatrix derives the doubly-stochastic consensus weight matrix W for
// the graph. epsilon is only consulted by MixingLaplacian; passing
// epsilon <= 0 there selects the midpoint of the stable range,
// 1/(2*lambda_max(L)). Returns ErrIllConditionedGraph when the requested
// epsilon exceeds the stability bound.
//
// The returned matrix is symmetric and non-negative, rows and columns sum
// to 1, and the spectral radius of W - (1/N)*J is strictly below 1 on every
// connected graph, which is what guarantees consensus convergence.
func MixingMatrix(g *Graph, method MixingMethod, epsilon float64) (*mat.SymDense, error) {
	switch method {
	case MixingMetropolis:
		return metropolisWeights(g), nil
	case MixingLaplacian:
		return laplacianWeights(g, epsilon)
	default:
		return nil, fmt.Errorf("unknown mixing method %q", method)
	}
}

func metropolisWeights(g *Graph) *mat.SymDense {
	n := g.NodeCount()
	w := mat.NewSymDense(n, nil)

	for _, e := range g.Edges() {
		maxDeg := g.Degree(e.U)
		if d := g.Degree(e.V); d > maxDeg {
			maxDeg = d
		}
		w.SetSym(e.U, e.V, 1.0/float64(1+maxDeg))
	}

	// Diagonal fills the remainder so every row sums to exactly 1.
	for i := 0; i < n; i++ {
		rowSum := 0.0
		for j := 0; j < n; j++ {
			if j != i {
				rowSum += w.At(i, j)
			}
		}
		w.SetSym(i, i, 1.0-rowSum)
	}

	return w
}

func laplacianWeights(g *Graph, epsilon float64) (*mat.SymDense, error) {
	lambdaMax, err := g.MaxLaplacianEigenvalue()
	if err != nil {
		return nil, err
	}
	if lambdaMax <= 0 {
		return nil, fmt.Errorf("lambda_max(L)=%v: %w", lambdaMax, ErrIllConditionedGraph)
	}

	bound := 1.0 / lambdaMax
	if epsilon <= 0 {
		epsilon = bound / 2.0
	}
	if epsilon >= bound {
		return nil, fmt.Errorf("step size %v exceeds stability bound %v: %w", epsilon, bound, ErrIllConditionedGraph)
	}

	n := g.NodeCount()
	l := g.Laplacian()
	w := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -epsilon * l.At(i, j)
			if i == j {
				v = 1.0 - epsilon*l.At(i, i)
			}
			w.SetSym(i, j, v)
		}
	}

	return w, nil
}

// SecondLargestEigenvalueMagnitude returns the second-largest absolute
// eigenvalue of a doubly-stochastic W. The closer it is to 0 the faster
// consensus contracts; 1 would mean no contraction at all.
func SecondLargestEigenvalueMagnitude(w *mat.SymDense) (float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(w, false); !ok {
		return 0, ErrEigenFailed
	}
	vals := eig.Values(nil)
	n := len(vals)
	if n < 2 {
		return 0, nil
	}

	// Values are ascending; the largest eigenvalue of a doubly-stochastic
	// matrix is 1. The runner-up in magnitude is either the second-largest
	// positive value or the most negative one.
	second := math.Abs(vals[n-2])
	if neg := math.Abs(vals[0]); neg > second {
		second = neg
	}
	return second, nil
}
