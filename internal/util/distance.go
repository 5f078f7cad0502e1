// Package util holds small numeric helpers shared by the clustering,
// partitioning, and quantization stages.
package util

import "math"

// SquaredL2 computes the squared Euclidean distance between a and b.
// Every internal stage (k-means, partitioning, PQ training/encoding,
// asymmetric distance) compares squared distances only; the square
// root is never taken internally.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// AllFinite reports whether every scalar in v is finite (no NaN/Inf).
func AllFinite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// Sub writes a-b into dst and returns it. dst, a, and b must have the
// same length; dst may alias neither a nor b.
func Sub(dst, a, b []float32) []float32 {
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
	return dst
}
