package model

import (
	"math"
	"sort"
)

// Logit returns intercept + sum(coef * feature). Coefficients for absent features count as 0.
// Terms are summed in sorted key order so results are bit-for-bit reproducible.
func (l Logistic) Logit(features map[string]float64) float64 {
	keys := make([]string, 0, len(l.Coefficients))
	for k := range l.Coefficients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	z := l.Intercept
	for _, k := range keys {
		z += l.Coefficients[k] * features[k]
	}
	return z
}

// Probability returns sigmoid(Logit(features)).
func (l Logistic) Probability(features map[string]float64) float64 {
	return Sigmoid(l.Logit(features))
}

// Sigmoid is the numerically stable logistic function.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Softmax returns exp(z_i) / sum(exp(z_j)), shifted by max(z) for stability.
func Softmax(z []float64) []float64 {
	if len(z) == 0 {
		return nil
	}
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
