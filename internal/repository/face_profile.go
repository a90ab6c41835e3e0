package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/facegate/facegate/internal/domain"
)

type FaceProfileRepository struct {
	pool PgxPool
}

func NewFaceProfileRepository(pool PgxPool) *FaceProfileRepository {
	return &FaceProfileRepository{pool: pool}
}

const profileColumns = `id, tenant_id, owner_id, embedding, quality_score, is_primary,
		indexed, index_version, metadata, created_at, updated_at, deleted_at`

func (r *FaceProfileRepository) Create(ctx context.Context, profile *domain.FaceProfile) error {
	query := `
		INSERT INTO face_profiles (id, tenant_id, owner_id, embedding, quality_score, is_primary, index_version, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if profile.ProfileID == uuid.Nil {
		profile.ProfileID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		profile.ProfileID,
		profile.TenantID,
		profile.OwnerID,
		pgvector.NewVector(profile.Embedding),
		profile.QualityScore,
		profile.IsPrimary,
		profile.IndexVersion,
		profile.Metadata,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBadRequest.WithError(err)
		}
		return fmt.Errorf("create face profile: %w", err)
	}

	return nil
}

func (r *FaceProfileRepository) GetByID(ctx context.Context, tenantID, profileID uuid.UUID) (*domain.FaceProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM face_profiles
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	row := r.pool.QueryRow(ctx, query, tenantID, profileID)
	profile, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face profile: %w", err)
	}

	return profile, nil
}

func (r *FaceProfileRepository) ListByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]domain.FaceProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM face_profiles
		WHERE tenant_id = $1 AND owner_id = $2 AND deleted_at IS NULL
		ORDER BY is_primary DESC, created_at
	`

	rows, err := r.pool.Query(ctx, query, tenantID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list face profiles by owner: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// ListIndexable returns every live profile across all tenants, used to
// rebuild the vector index from the source of truth.
func (r *FaceProfileRepository) ListIndexable(ctx context.Context) ([]domain.FaceProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM face_profiles
		WHERE deleted_at IS NULL
		ORDER BY tenant_id, created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list indexable profiles: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

func (r *FaceProfileRepository) UpdateEmbedding(ctx context.Context, tenantID, profileID uuid.UUID, embedding []float32, qualityScore float64) error {
	query := `
		UPDATE face_profiles
		SET embedding = $3, quality_score = $4, indexed = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, tenantID, profileID, pgvector.NewVector(embedding), qualityScore)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}

func (r *FaceProfileRepository) UpdateMetadata(ctx context.Context, tenantID, profileID uuid.UUID, metadata map[string]string) error {
	query := `
		UPDATE face_profiles
		SET metadata = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, tenantID, profileID, metadata)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}

// SetPrimary promotes one profile of an owner inside a transaction. The old
// primary is demoted first: the partial unique index on (tenant_id, owner_id)
// is checked per row, so promoting while the old primary is still live would
// raise a unique violation. The row lock taken by the demotion keeps
// concurrent promotions serialized.
func (r *FaceProfileRepository) SetPrimary(ctx context.Context, tenantID, ownerID, profileID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set primary profile: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		UPDATE face_profiles
		SET is_primary = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND owner_id = $2 AND is_primary AND id <> $3 AND deleted_at IS NULL
	`, tenantID, ownerID, profileID); err != nil {
		return fmt.Errorf("demote primary profile: %w", err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE face_profiles
		SET is_primary = TRUE, updated_at = NOW()
		WHERE tenant_id = $1 AND owner_id = $2 AND id = $3 AND deleted_at IS NULL
	`, tenantID, ownerID, profileID)
	if err != nil {
		return fmt.Errorf("promote primary profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set primary profile: %w", err)
	}

	return nil
}

func (r *FaceProfileRepository) MarkIndexed(ctx context.Context, tenantID, profileID uuid.UUID, indexVersion int) error {
	query := `
		UPDATE face_profiles
		SET indexed = TRUE, index_version = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, tenantID, profileID, indexVersion)
	if err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}

func (r *FaceProfileRepository) SoftDelete(ctx context.Context, tenantID, profileID uuid.UUID) error {
	query := `
		UPDATE face_profiles
		SET deleted_at = NOW(), indexed = FALSE, is_primary = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, tenantID, profileID)
	if err != nil {
		return fmt.Errorf("soft delete profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}

func (r *FaceProfileRepository) HardDelete(ctx context.Context, tenantID, profileID uuid.UUID) error {
	query := `
		DELETE FROM face_profiles
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := r.pool.Exec(ctx, query, tenantID, profileID)
	if err != nil {
		return fmt.Errorf("hard delete profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}

// ListExpired returns soft-deleted profiles whose deletion is older than the
// cutoff and are due for permanent removal.
func (r *FaceProfileRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]domain.FaceProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM face_profiles
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		ORDER BY deleted_at
	`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired profiles: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

func (r *FaceProfileRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_profiles WHERE tenant_id = $1 AND deleted_at IS NULL`,
		tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}

	return count, nil
}

func scanProfile(row pgx.Row) (*domain.FaceProfile, error) {
	var profile domain.FaceProfile
	var embedding pgvector.Vector

	err := row.Scan(
		&profile.ProfileID,
		&profile.TenantID,
		&profile.OwnerID,
		&embedding,
		&profile.QualityScore,
		&profile.IsPrimary,
		&profile.Indexed,
		&profile.IndexVersion,
		&profile.Metadata,
		&profile.CreatedAt,
		&profile.UpdatedAt,
		&profile.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	profile.Embedding = embedding.Slice()
	return &profile, nil
}

func scanProfiles(rows pgx.Rows) ([]domain.FaceProfile, error) {
	profiles := make([]domain.FaceProfile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face profiles: %w", err)
	}

	return profiles, nil
}
