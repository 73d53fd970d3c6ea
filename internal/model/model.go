// Package model defines the convex model families the optimizer fits. The
// supported families are restricted to linear least-squares and logistic
// regression: both are convex in their parameters, so gradient descent plus
// consensus mixing provably reaches the global optimum.
//
// Parameters are a flat vector [w_0 .. w_{m-1}, b] of length m+1. All
// gradients are exact analytic forms; there is no numerical differentiation
// anywhere.
package model

import (
	"fmt"
	"math"

	"github.com/IteraLabs/convective/internal/common"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Model family names, selected by config string.
const (
	LinearModelName   = common.MODEL_LINEAR
	LogisticModelName = common.MODEL_LOGISTIC
)

// IConvexModel is the loss/gradient contract of one convex family.
// Implementations are stateless; everything is a pure function of
// (params, data).
type IConvexModel interface {
	// Name returns the family name constant.
	Name() string

	// Dim returns the parameter dimension for the given feature count.
	Dim(featureCount int) int

	// Predict returns the raw model output w.x + b (a logit for the
	// logistic family).
	Predict(params, features []float64) float64

	// Loss returns the per-sample loss at params.
	Loss(params, features []float64, label float64) float64

	// Gradient writes the exact per-sample gradient into dst.
	Gradient(dst, params, features []float64, label float64)
}

// New returns the model family registered under name, or an error for an
// unknown family. ridge adds an L2 penalty of 0.5*ridge*|w|^2 (bias
// excluded); pass 0 to disable.
func New(name string, ridge float64) (IConvexModel, error) {
	switch name {
	case LinearModelName:
		return &LinearModel{Ridge: ridge}, nil
	case LogisticModelName:
		return &LogisticModel{Ridge: ridge}, nil
	default:
		return nil, fmt.Errorf("unknown model family %q", name)
	}
}

// InitParams returns Glorot-uniform initial parameters: weights drawn from
// U(-limit, limit) with limit = sqrt(6)/sqrt(m+1), bias zero. Deterministic
// for a given seed.
func InitParams(dim int, seed uint64) []float64 {
	rng := exprand.New(exprand.NewSource(seed))
	limit := math.Sqrt(6.0 / float64(dim)) // dim = m+1

	params := make([]float64, dim)
	for i := 0; i < dim-1; i++ {
		params[i] = -limit + 2*limit*rng.Float64()
	}
	params[dim-1] = 0 // bias
	return params
}

// Batch is a data partition held as gonum matrices for batch loss/gradient
// evaluation. X is n x m, Y is length n.
type Batch struct {
	X *mat.Dense
	Y *mat.VecDense
}

// NewBatch copies a row-slice design matrix and label vector into a Batch.
func NewBatch(x [][]float64, y []float64) (*Batch, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("batch shape: %d rows, %d labels", len(x), len(y))
	}
	m := len(x[0])
	flat := make([]float64, 0, len(x)*m)
	for _, row := range x {
		if len(row) != m {
			return nil, fmt.Errorf("ragged design matrix: row width %d != %d", len(row), m)
		}
		flat = append(flat, row...)
	}
	return &Batch{
		X: mat.NewDense(len(x), m, flat),
		Y: mat.NewVecDense(len(y), append([]float64(nil), y...)),
	}, nil
}

// Len returns the number of samples.
func (b *Batch) Len() int {
	n, _ := b.X.Dims()
	return n
}

// Features returns the feature count m.
func (b *Batch) Features() int {
	_, m := b.X.Dims()
	return m
}

// logits computes z = X.w + b for the flat parameter vector.
func (b *Batch) logits(params []float64) *mat.VecDense {
	n, m := b.X.Dims()
	w := mat.NewVecDense(m, params[:m])
	z := mat.NewVecDense(n, nil)
	z.MulVec(b.X, w)
	bias := params[m]
	for i := 0; i < n; i++ {
		z.SetVec(i, z.AtVec(i)+bias)
	}
	return z
}

// BatchLoss returns the mean loss of mdl over the batch.
func BatchLoss(mdl IConvexModel, b *Batch, params []float64) float64 {
	n, m := b.X.Dims()
	row := make([]float64, m)
	total := 0.0
	for i := 0; i < n; i++ {
		mat.Row(row, i, b.X)
		total += mdl.Loss(params, row, b.Y.AtVec(i))
	}
	return total / float64(n)
}

// BatchGradient writes the mean gradient of mdl over the batch into dst.
// The heavy lifting (X^T * delta) runs through gonum for both families,
// using each family's residual form.
func BatchGradient(mdl IConvexModel, b *Batch, params []float64, dst []float64) {
	n, m := b.X.Dims()
	z := b.logits(params)

	// delta_i = dLoss/dz at sample i; identical shape for both families.
	delta := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		delta.SetVec(i, residual(mdl, z.AtVec(i), b.Y.AtVec(i)))
	}

	grad := mat.NewVecDense(m, dst[:m])
	grad.MulVec(b.X.T(), delta)
	inv := 1.0 / float64(n)
	for j := 0; j < m; j++ {
		dst[j] = grad.AtVec(j) * inv
	}
	dst[m] = mat.Sum(delta) * inv

	// L2 penalty on weights only.
	if r := ridgeOf(mdl); r > 0 {
		for j := 0; j < m; j++ {
			dst[j] += r * params[j]
		}
	}
}
