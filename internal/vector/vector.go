package vector

import (
	"math"

	"github.com/facegate/facegate/internal/domain"
)

// Normalize returns the L2-normalized copy of an embedding vector. It fails
// with domain.ErrInvalidEmbedding when the vector is empty, zero-norm, or
// contains non-finite values. Normalizing an already-normalized vector is a
// no-op up to floating point error.
func Normalize(embedding []float32) ([]float32, error) {
	if len(embedding) == 0 {
		return nil, domain.ErrInvalidEmbedding
	}

	var norm float64
	for _, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, domain.ErrInvalidEmbedding
		}
		norm += f * f
	}

	if norm == 0 {
		return nil, domain.ErrInvalidEmbedding
	}

	norm = math.Sqrt(norm)
	normalized := make([]float32, len(embedding))
	for i, v := range embedding {
		normalized[i] = float32(float64(v) / norm)
	}

	return normalized, nil
}

// Cosine computes the cosine similarity of two unit-norm vectors as their
// inner product. Inputs of mismatched length yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return dot
}

// Similarity rescales a cosine similarity to the [0,1] range used by the
// decision engine. Face embeddings rarely point in opposite directions, so
// negative cosines are clamped instead of shifted.
func Similarity(cos float64) float64 {
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
