package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/facegate/facegate/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the repositories use, satisfied by
// pgxmock for tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// FaceProfileRepositoryInterface defines operations for face profile data access
type FaceProfileRepositoryInterface interface {
	Create(ctx context.Context, profile *domain.FaceProfile) error
	GetByID(ctx context.Context, tenantID, profileID uuid.UUID) (*domain.FaceProfile, error)
	ListByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]domain.FaceProfile, error)
	ListIndexable(ctx context.Context) ([]domain.FaceProfile, error)
	UpdateEmbedding(ctx context.Context, tenantID, profileID uuid.UUID, embedding []float32, qualityScore float64) error
	UpdateMetadata(ctx context.Context, tenantID, profileID uuid.UUID, metadata map[string]string) error
	SetPrimary(ctx context.Context, tenantID, ownerID, profileID uuid.UUID) error
	MarkIndexed(ctx context.Context, tenantID, profileID uuid.UUID, indexVersion int) error
	SoftDelete(ctx context.Context, tenantID, profileID uuid.UUID) error
	HardDelete(ctx context.Context, tenantID, profileID uuid.UUID) error
	ListExpired(ctx context.Context, cutoff time.Time) ([]domain.FaceProfile, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}
