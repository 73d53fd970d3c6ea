package model

// LinearModel is the least-squares family: prediction w.x + b, loss
// 0.5*(w.x + b - y)^2, gradient (w.x + b - y) * [x, 1].
type LinearModel struct {
	Ridge float64
}

// Name implements IConvexModel.
func (m *LinearModel) Name() string {
	return LinearModelName
}

// Dim implements IConvexModel.
func (m *LinearModel) Dim(featureCount int) int {
	return featureCount + 1
}

// Predict implements IConvexModel.
func (m *LinearModel) Predict(params, features []float64) float64 {
	z := params[len(features)]
	for i, x := range features {
		z += params[i] * x
	}
	return z
}

// Loss implements IConvexModel.
func (m *LinearModel) Loss(params, features []float64, label float64) float64 {
	r := m.Predict(params, features) - label
	loss := 0.5 * r * r
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
func (m *LinearModel) Gradient(dst, params, features []float64, label float64) {
	r := m.Predict(params, features) - label
	for i, x := range features {
		dst[i] = r * x
		if m.Ridge > 0 {
			dst[i] += m.Ridge * params[i]
		}
	}
	dst[len(features)] = r
}
