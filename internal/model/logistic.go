package model

import "math"

// LogisticModel is binary classification with labels in {0,1}. The loss is
// the numerically-stable binary cross-entropy with logits,
//
//	loss = max(z,0) - z*y + log(1 + exp(-|z|)),
//
// whose exact gradient is (sigmoid(z) - y) * [x, 1].
type LogisticModel struct {
	Ridge float64
}

// Name implements IConvexModel.
func (m *LogisticModel) Name() string {
	return LogisticModelName
}

// Dim implements IConvexModel.
func (m *LogisticModel) Dim(featureCount int) int {
	return featureCount + 1
}

// Predict returns the logit w.x + b.
func (m *LogisticModel) Predict(params, features []float64) float64 {
	z := params[len(features)]
	for i, x := range features {
		z += params[i] * x
	}
	return z
}

// Loss implements IConvexModel.
func (m *LogisticModel) Loss(params, features []float64, label float64) float64 {
	z := m.Predict(params, features)
	loss := math.Max(z, 0) - z*label + math.Log1p(math.Exp(-math.Abs(z)))
	if m.Ridge > 0 {
		w2 := 0.0
		for i := range features {
			w2 += params[i] * params[i]
		}
		loss += 0.5 * m.Ridge * w2
	}
	return loss
}

// Gradient implements IConvexModel.
func (m *LogisticModel) Gradient(dst, params, features []float64, label float64) {
	d := Sigmoid(m.Predict(params, features)) - label
	for i, x := range features {
		dst[i] = d * x
		if m.Ridge > 0 {
			dst[i] += m.Ridge * params[i]
		}
	}
	dst[len(features)] = d
}

// Sigmoid returns 1/(1+exp(-z)).
func Sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// residual returns dLoss/dz at a logit for either family: z - y for linear,
// sigmoid(z) - y for logistic. Used by the batch gradient kernel.
func residual(mdl IConvexModel, z, y float64) float64 {
	if mdl.Name() == LogisticModelName {
		return Sigmoid(z) - y
	}
	return z - y
}

// ridgeOf extracts the family's L2 coefficient.
func ridgeOf(mdl IConvexModel) float64 {
	switch m := mdl.(type) {
	case *LinearModel:
		return m.Ridge
	case *LogisticModel:
		return m.Ridge
	default:
		return 0
	}
}
