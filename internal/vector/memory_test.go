package vector

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisEmbedding builds a 512-dim unit vector pointing along a single axis,
// giving fully controlled similarities in tests.
func axisEmbedding(axis int) []float32 {
	v := make([]float32, 512)
	v[axis] = 1
	return v
}

// blendEmbedding mixes two axes; normalized on insert.
func blendEmbedding(axis1, axis2 int, w1, w2 float32) []float32 {
	v := make([]float32, 512)
	v[axis1] = w1
	v[axis2] = w2
	return v
}

func TestMemoryIndex_SelfSimilarity(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	tenantID := uuid.New()

	entry := Entry{
		ProfileID: uuid.New(),
		TenantID:  tenantID,
		OwnerID:   uuid.New(),
		Embedding: blendEmbedding(0, 1, 0.8, 0.6),
	}
	require.NoError(t, idx.Add(ctx, entry))

	matches, err := idx.Search(ctx, tenantID, blendEmbedding(0, 1, 0.8, 0.6), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, entry.ProfileID, matches[0].ProfileID)
	assert.GreaterOrEqual(t, matches[0].Similarity, 0.99)
}

func TestMemoryIndex_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	tenantA := uuid.New()
	tenantB := uuid.New()

	require.NoError(t, idx.Add(ctx, Entry{
		ProfileID: uuid.New(),
		TenantID:  tenantA,
		OwnerID:   uuid.New(),
		Embedding: axisEmbedding(0),
	}))

	matches, err := idx.Search(ctx, tenantB, axisEmbedding(0), 5)
	require.NoError(t, err)
	assert.Empty(t, matches, "tenant B must never see tenant A profiles")

	size, err := idx.Size(ctx, tenantB)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestMemoryIndex_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	tenantID := uuid.New()
	owner := uuid.New()

	near := Entry{
		ProfileID: uuid.New(),
		TenantID:  tenantID,
		OwnerID:   owner,
		Embedding: blendEmbedding(0, 1, 0.95, 0.31),
	}
	far := Entry{
		ProfileID: uuid.New(),
		TenantID:  tenantID,
		OwnerID:   owner,
		Embedding: blendEmbedding(0, 1, 0.5, 0.87),
	}
	require.NoError(t, idx.Add(ctx, near))
	require.NoError(t, idx.Add(ctx, far))

	matches, err := idx.Search(ctx, tenantID, axisEmbedding(0), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, near.ProfileID, matches[0].ProfileID)
	assert.Equal(t, far.ProfileID, matches[1].ProfileID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestMemoryIndex_AddReplacesExisting(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	tenantID := uuid.New()
	profileID := uuid.New()
	owner := uuid.New()

	require.NoError(t, idx.Add(ctx, Entry{
		ProfileID: profileID,
		TenantID:  tenantID,
		OwnerID:   owner,
		Embedding: axisEmbedding(0),
	}))
	require.NoError(t, idx.Add(ctx, Entry{
		ProfileID: profileID,
		TenantID:  tenantID,
		OwnerID:   owner,
		Embedding: axisEmbedding(1),
	}))

	size, err := idx.Size(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, size, "re-adding the same profile must not duplicate it")

	matches, err := idx.Search(ctx, tenantID, axisEmbedding(1), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.GreaterOrEqual(t, matches[0].Similarity, 0.99, "search must see the new embedding")
}

func TestMemoryIndex_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	tenantID := uuid.New()
	profileID := uuid.New()

	require.NoError(t, idx.Add(ctx, Entry{
		ProfileID: profileID,
		TenantID:  tenantID,
		OwnerID:   uuid.New(),
		Embedding: axisEmbedding(0),
	}))

	require.NoError(t, idx.Remove(ctx, profileID, tenantID))
	require.NoError(t, idx.Remove(ctx, profileID, tenantID), "second remove is a no-op")
	require.NoError(t, idx.Remove(ctx, uuid.New(), uuid.New()), "removing from unknown tenant is a no-op")

	matches, err := idx.Search(ctx, tenantID, axisEmbedding(0), 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryIndex_EnsurePartitionIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	tenantID := uuid.New()

	require.NoError(t, idx.EnsurePartition(ctx, tenantID))
	require.NoError(t, idx.EnsurePartition(ctx, tenantID))

	size, err := idx.Size(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestMemoryIndex_Rebuild(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	tenantID := uuid.New()

	stale := Entry{
		ProfileID: uuid.New(),
		TenantID:  tenantID,
		OwnerID:   uuid.New(),
		Embedding: axisEmbedding(0),
	}
	require.NoError(t, idx.Add(ctx, stale))

	fresh := Entry{
		ProfileID: uuid.New(),
		TenantID:  tenantID,
		OwnerID:   uuid.New(),
		Embedding: axisEmbedding(1),
	}
	require.NoError(t, idx.Rebuild(ctx, []Entry{fresh}))

	matches, err := idx.Search(ctx, tenantID, axisEmbedding(0), 5)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, stale.ProfileID, m.ProfileID, "rebuild must drop entries not in the snapshot")
	}

	size, err := idx.Size(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestMemoryIndex_RejectsInvalidEmbedding(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	err := idx.Add(ctx, Entry{
		ProfileID: uuid.New(),
		TenantID:  uuid.New(),
		OwnerID:   uuid.New(),
		Embedding: make([]float32, 512), // zero norm
	})
	require.Error(t, err)
}
