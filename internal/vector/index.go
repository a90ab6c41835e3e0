package vector

import (
	"context"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/domain"
)

// Entry is one embedding row carried into the index.
type Entry struct {
	ProfileID uuid.UUID
	TenantID  uuid.UUID
	OwnerID   uuid.UUID
	Embedding []float32
	IsPrimary bool
}

// Index is the tenant-partitioned nearest-neighbor store over normalized
// embeddings. Implementations must be safe for concurrent use.
//
// Search returns matches strictly within tenantID ordered by descending
// similarity, with ascending profile_id as the deterministic tie-break. An
// empty tenant yields an empty slice, not an error; an unreachable backing
// store yields domain.ErrVectorStoreUnavailable and never an empty slice.
type Index interface {
	// EnsurePartition creates the tenant partition if absent. Concurrent
	// calls for the same tenant must not error: "already exists" is success.
	EnsurePartition(ctx context.Context, tenantID uuid.UUID) error

	// Add upserts an embedding with delete-then-insert semantics, so retries
	// never leave stale duplicate rows for the same profile. The embedding is
	// normalized before storage and rejected when zero-norm or non-finite.
	Add(ctx context.Context, entry Entry) error

	// Remove unindexes a profile. Removing an absent profile is a no-op.
	Remove(ctx context.Context, profileID, tenantID uuid.UUID) error

	// Search returns up to k matches within the tenant.
	Search(ctx context.Context, tenantID uuid.UUID, embedding []float32, k int) ([]domain.Match, error)

	// Rebuild drops and recreates tenant partitions from the given entries.
	// Used for backend migration and recovery, never on the request path.
	Rebuild(ctx context.Context, entries []Entry) error

	// Size reports the number of indexed embeddings for a tenant.
	Size(ctx context.Context, tenantID uuid.UUID) (int, error)
}
