// Package embedding holds the pure vector operations of the matching pipeline:
// unit normalization, averaging, inner products and the gallery byte encoding.
package embedding

import (
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// Normalize returns a copy of v scaled to unit L2 norm.
// The norm is accumulated in float64 to keep 512-d vectors stable.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, domain.ErrDegenerateEmbedding.WithError(fmt.Errorf("empty vector"))
	}

	norm := Norm(v)
	if norm == 0 {
		return nil, domain.ErrDegenerateEmbedding
	}

	normalized := make([]float32, len(v))
	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}

	return normalized, nil
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of a and b, or 0 when the lengths differ.
// On unit vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Mean averages vectors component-wise. All vectors must share one dimension.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("mean of zero vectors")
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}

	mean := make([]float32, dim)
	n := float64(len(vectors))
	for j, s := range sum {
		mean[j] = float32(s / n)
	}

	return mean, nil
}
