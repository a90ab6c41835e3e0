package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/facegate/facegate/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool used by the index, satisfied by
// pgxmock for tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresIndex stores embeddings in a list-partitioned face_vectors table
// using the pgvector extension. One partition per tenant keeps searches
// scoped and lets a tenant be dropped without touching its neighbors.
type PostgresIndex struct {
	pool PgxPool
}

func NewPostgresIndex(pool PgxPool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

// partitionName derives the per-tenant partition table name. UUID dashes are
// stripped since they are not valid in identifiers.
func partitionName(tenantID uuid.UUID) string {
	return "face_vectors_p_" + strings.ReplaceAll(tenantID.String(), "-", "")
}

func (i *PostgresIndex) EnsurePartition(ctx context.Context, tenantID uuid.UUID) error {
	// Table names cannot be bound as parameters in DDL. The tenant id comes
	// from a parsed uuid.UUID, never raw input.
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF face_vectors FOR VALUES IN ('%s')`,
		partitionName(tenantID), tenantID,
	)

	if _, err := i.pool.Exec(ctx, query); err != nil {
		// A concurrent first use of the same tenant may win the race; the
		// partition existing is the outcome we wanted.
		if isDuplicateTable(err) {
			return nil
		}
		if isStoreUnavailable(err) {
			return domain.ErrVectorStoreUnavailable.WithError(err)
		}
		return domain.ErrPartitionFailed.WithError(err)
	}

	return nil
}

func (i *PostgresIndex) Add(ctx context.Context, entry Entry) error {
	normalized, err := Normalize(entry.Embedding)
	if err != nil {
		return err
	}

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return i.writeError(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Delete-then-insert: a retried add never leaves a stale duplicate row.
	if _, err := tx.Exec(ctx,
		`DELETE FROM face_vectors WHERE tenant_id = $1 AND profile_id = $2`,
		entry.TenantID, entry.ProfileID,
	); err != nil {
		return i.writeError(err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO face_vectors (profile_id, tenant_id, owner_id, is_primary, embedding)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ProfileID, entry.TenantID, entry.OwnerID, entry.IsPrimary,
		pgvector.NewVector(normalized),
	); err != nil {
		return i.writeError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return i.writeError(err)
	}

	return nil
}

func (i *PostgresIndex) Remove(ctx context.Context, profileID, tenantID uuid.UUID) error {
	// Deleting an absent row affects zero rows and is intentionally not an
	// error; callers retry removals freely.
	if _, err := i.pool.Exec(ctx,
		`DELETE FROM face_vectors WHERE tenant_id = $1 AND profile_id = $2`,
		tenantID, profileID,
	); err != nil {
		return i.writeError(err)
	}

	return nil
}

func (i *PostgresIndex) Search(ctx context.Context, tenantID uuid.UUID, embedding []float32, k int) ([]domain.Match, error) {
	normalized, err := Normalize(embedding)
	if err != nil {
		return nil, err
	}

	// <=> is cosine distance; 1 - distance gives cosine similarity on unit
	// vectors. profile_id breaks similarity ties deterministically.
	query := `
		SELECT profile_id, owner_id, is_primary,
		       1 - (embedding <=> $1) AS similarity
		FROM face_vectors
		WHERE tenant_id = $2
		ORDER BY embedding <=> $1, profile_id
		LIMIT $3
	`

	rows, err := i.pool.Query(ctx, query, pgvector.NewVector(normalized), tenantID, k)
	if err != nil {
		if isStoreUnavailable(err) {
			return nil, domain.ErrVectorStoreUnavailable.WithError(err)
		}
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	matches := make([]domain.Match, 0, k)
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.ProfileID, &m.OwnerID, &m.IsPrimary, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Similarity = Similarity(m.Similarity)
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		if isStoreUnavailable(err) {
			return nil, domain.ErrVectorStoreUnavailable.WithError(err)
		}
		return nil, fmt.Errorf("search embeddings: %w", err)
	}

	return matches, nil
}

func (i *PostgresIndex) Rebuild(ctx context.Context, entries []Entry) error {
	tenants := make(map[uuid.UUID]struct{}, len(entries))
	for _, e := range entries {
		tenants[e.TenantID] = struct{}{}
	}

	for tenantID := range tenants {
		if err := i.EnsurePartition(ctx, tenantID); err != nil {
			return err
		}
	}

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return i.writeError(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `TRUNCATE face_vectors`); err != nil {
		return i.writeError(err)
	}

	for _, e := range entries {
		normalized, err := Normalize(e.Embedding)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO face_vectors (profile_id, tenant_id, owner_id, is_primary, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.ProfileID, e.TenantID, e.OwnerID, e.IsPrimary,
			pgvector.NewVector(normalized),
		); err != nil {
			return i.writeError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return i.writeError(err)
	}

	return nil
}

func (i *PostgresIndex) Size(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := i.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_vectors WHERE tenant_id = $1`, tenantID,
	).Scan(&count)
	if err != nil {
		if isStoreUnavailable(err) {
			return 0, domain.ErrVectorStoreUnavailable.WithError(err)
		}
		return 0, fmt.Errorf("count embeddings: %w", err)
	}

	return count, nil
}

func (i *PostgresIndex) writeError(err error) error {
	if isStoreUnavailable(err) {
		return domain.ErrVectorStoreUnavailable.WithError(err)
	}
	return domain.ErrIndexWriteFailed.WithError(err)
}

// isDuplicateTable reports whether the error is Postgres 42P07, raised when a
// concurrent EnsurePartition created the partition first.
func isDuplicateTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P07"
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// isStoreUnavailable classifies connection-class failures that callers may
// retry: connection exceptions (08xxx), insufficient resources (53xxx), and
// operator intervention such as admin shutdown (57xxx).
func isStoreUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"):
			return true
		}
		return false
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "failed to connect") ||
		strings.Contains(errMsg, "conn closed") ||
		strings.Contains(errMsg, "broken pipe")
}
