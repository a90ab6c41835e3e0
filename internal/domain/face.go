package domain

import (
	"time"

	"github.com/google/uuid"
)

// FaceProfile represents one enrolled biometric record. Embeddings are always
// stored L2-normalized so cosine similarity reduces to an inner product.
type FaceProfile struct {
	ProfileID    uuid.UUID         `json:"profile_id"`
	OwnerID      uuid.UUID         `json:"owner_id"`
	TenantID     uuid.UUID         `json:"-"`
	Embedding    []float32         `json:"-"`
	QualityScore float64           `json:"quality_score"`
	IsPrimary    bool              `json:"is_primary"`
	Indexed      bool              `json:"indexed"`
	IndexVersion int               `json:"index_version"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeletedAt    *time.Time        `json:"deleted_at,omitempty"`
}

// Match is a single similarity search result, ordered within a result set by
// descending similarity. Similarity is cosine similarity on unit vectors,
// rescaled to [0,1].
type Match struct {
	ProfileID  uuid.UUID `json:"profile_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Similarity float64   `json:"similarity"`
	IsPrimary  bool      `json:"is_primary"`
}

// Statuses shared by enrollment and verification results.
const (
	StatusOK        = "ok"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
	StatusMatch     = "match"
	StatusNoMatch   = "no_match"
	StatusSkipped   = "skipped"
)

// EnrollResult is the structured outcome of an enrollment request.
// Request-level failures (no face, low quality, liveness, duplicate) are
// reported here with a status, never as errors crossing the service boundary.
type EnrollResult struct {
	Status           string     `json:"status"`
	ProfileID        *uuid.UUID `json:"profile_id,omitempty"`
	QualityScore     float64    `json:"quality_score,omitempty"`
	DuplicateMatches []Match    `json:"duplicate_matches,omitempty"`
	Message          string     `json:"message,omitempty"`
}

// VerifyResult is the structured outcome of a verification request.
type VerifyResult struct {
	Status        string   `json:"status"`
	Verified      bool     `json:"verified"`
	Matches       []Match  `json:"matches,omitempty"`
	BestMatch     *Match   `json:"best_match,omitempty"`
	LivenessScore *float64 `json:"liveness_score,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// ReindexResult reports the outcome of a full index rebuild.
type ReindexResult struct {
	Status          string        `json:"status"`
	Message         string        `json:"message,omitempty"`
	ProfilesIndexed int           `json:"profiles_indexed"`
	Duration        time.Duration `json:"duration"`
}

// CleanupResult aggregates per-item outcomes of a retention sweep.
type CleanupResult struct {
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}
