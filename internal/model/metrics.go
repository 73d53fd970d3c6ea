package model

import "math"

// Accuracy returns the fraction of batch samples whose predicted class
// (sigmoid(logit) >= 0.5) matches the label. Meaningful for the logistic
// family.
func Accuracy(mdl IConvexModel, b *Batch, params []float64) float64 {
	n := b.Len()
	if n == 0 {
		return 0
	}
	z := b.logits(params)
	correct := 0
	for i := 0; i < n; i++ {
		pred := 0.0
		if Sigmoid(z.AtVec(i)) >= 0.5 {
			pred = 1.0
		}
		if pred == b.Y.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// RMSE returns the root-mean-square error of predictions over the batch.
// Meaningful for the linear family.
func RMSE(mdl IConvexModel, b *Batch, params []float64) float64 {
	n := b.Len()
	if n == 0 {
		return 0
	}
	z := b.logits(params)
	sum := 0.0
	for i := 0; i < n; i++ {
		d := z.AtVec(i) - b.Y.AtVec(i)
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}
