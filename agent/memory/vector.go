package memory

import "math"

// Cosine returns the cosine similarity of two equal-length vectors, or 0
// when either has zero magnitude or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// similarity01 maps cosine similarity onto [0,1] for composite scoring.
// Negative correlation ranks the same as no correlation.
func similarity01(a, b []float64) float64 {
	c := Cosine(a, b)
	if c < 0 {
		return 0
	}
	return c
}

// meanVector returns the element-wise mean of the vectors. All vectors
// must share the first vector's length; empty input returns nil.
func meanVector(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += v[i]
		}
	}
	for i := range sum {
		sum[i] /= float64(len(vectors))
	}
	return sum
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
