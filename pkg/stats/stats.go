// Package stats wraps gonum's statistics helpers with the degenerate-input
// guards the decision stack relies on: empty slices and zero-spread data
// yield 0, never NaN.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// Variance returns the population variance of xs. Fewer than two values
// have no spread, so the result is 0.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	v := stat.PopVariance(xs, nil)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// StdDev returns the population standard deviation of xs, or 0.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Max returns the largest value in xs, or 0 for an empty slice.
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Sum returns the sum of xs.
func Sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// ZScore returns (x-mean)/std, or 0 when std is 0.
func ZScore(x, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (x - mean) / std
}
