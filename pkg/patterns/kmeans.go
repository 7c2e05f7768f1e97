package patterns

import (
	"math"
	"math/rand/v2"
)

const (
	kmeansMaxIterations = 50
	kmeansMinMovement   = 0.01
)

// kmeans clusters the feature vectors into at most k groups using random
// sample seeding. It iterates until no centroid moves more than
// kmeansMinMovement or kmeansMaxIterations elapse. An empty cluster's
// centroid is reassigned to a copy of the first centroid rather than
// re-seeded; that quirk is intentional and relied upon by callers.
func kmeans(points [][]float64, k int, rng *rand.Rand) (assignments []int, centroids [][]float64) {
	if len(points) == 0 {
		return nil, nil
	}
	if k > len(points) {
		k = len(points)
	}
	dims := len(points[0])

	// seed centroids from k distinct random points
	centroids = make([][]float64, k)
	for i, idx := range rng.Perm(len(points))[:k] {
		c := make([]float64, dims)
		copy(c, points[idx])
		centroids[i] = c
	}

	assignments = make([]int, len(points))
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		// assignment step
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for ci, c := range centroids {
				if d := sqDist(p, c); d < bestDist {
					best, bestDist = ci, d
				}
			}
			assignments[i] = best
		}

		// update step
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for i, p := range points {
			ci := assignments[i]
			counts[ci]++
			for d, v := range p {
				sums[ci][d] += v
			}
		}

		maxMove := 0.0
		for ci := 0; ci < k; ci++ {
			next := make([]float64, dims)
			if counts[ci] == 0 {
				// empty cluster falls back to the first centroid
				copy(next, centroids[0])
			} else {
				for d := 0; d < dims; d++ {
					next[d] = sums[ci][d] / float64(counts[ci])
				}
			}
			if move := math.Sqrt(sqDist(centroids[ci], next)); move > maxMove {
				maxMove = move
			}
			centroids[ci] = next
		}
		if maxMove < kmeansMinMovement {
			break
		}
	}
	return assignments, centroids
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// normalizeFeatures min-max scales each feature dimension into [0,1].
// Zero-spread dimensions collapse to 0.
func normalizeFeatures(points [][]float64) [][]float64 {
	if len(points) == 0 {
		return nil
	}
	dims := len(points[0])
	mins := make([]float64, dims)
	maxs := make([]float64, dims)
	copy(mins, points[0])
	copy(maxs, points[0])
	for _, p := range points[1:] {
		for d, v := range p {
			if v < mins[d] {
				mins[d] = v
			}
			if v > maxs[d] {
				maxs[d] = v
			}
		}
	}
	out := make([][]float64, len(points))
	for i, p := range points {
		n := make([]float64, dims)
		for d, v := range p {
			if spread := maxs[d] - mins[d]; spread > 0 {
				n[d] = (v - mins[d]) / spread
			}
		}
		out[i] = n
	}
	return out
}
