package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
		wantErr   bool
	}{
		{
			name:      "plain vector",
			embedding: []float32{3, 4},
			wantErr:   false,
		},
		{
			name:      "already normalized",
			embedding: []float32{0.6, 0.8},
			wantErr:   false,
		},
		{
			name:      "empty vector",
			embedding: nil,
			wantErr:   true,
		},
		{
			name:      "zero norm",
			embedding: []float32{0, 0, 0},
			wantErr:   true,
		},
		{
			name:      "NaN component",
			embedding: []float32{1, float32(math.NaN())},
			wantErr:   true,
		},
		{
			name:      "infinite component",
			embedding: []float32{1, float32(math.Inf(1))},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.embedding)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidEmbedding) || err == domain.ErrInvalidEmbedding)
				return
			}

			require.NoError(t, err)

			var norm float64
			for _, v := range got {
				norm += float64(v) * float64(v)
			}
			assert.InDelta(t, 1.0, norm, 1e-6, "normalized vector must be unit length")
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	v := []float32{1.5, -2.25, 0.75, 4.0}

	once, err := Normalize(v)
	require.NoError(t, err)

	twice, err := Normalize(once)
	require.NoError(t, err)

	for i := range once {
		assert.InDelta(t, once[i], twice[i], 1e-6)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	v := []float32{3, 4}
	_, err := Normalize(v)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, v)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-6)
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-6)
	assert.Equal(t, 0.0, Cosine(a, []float32{1, 0, 0}), "mismatched lengths yield 0")
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestSimilarity_Clamps(t *testing.T) {
	assert.Equal(t, 0.0, Similarity(-0.3))
	assert.Equal(t, 1.0, Similarity(1.000001))
	assert.InDelta(t, 0.87, Similarity(0.87), 1e-9)
}
