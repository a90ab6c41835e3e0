package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/audit"
	"github.com/facegate/facegate/internal/domain"
	"github.com/facegate/facegate/internal/provider"
	"github.com/facegate/facegate/internal/vector"
)

// VerifyMode selects between one-to-one and one-to-many verification.
type VerifyMode string

const (
	ModeOneToOne  VerifyMode = "1:1"
	ModeOneToMany VerifyMode = "1:N"
)

type ProfileRepositoryInterface interface {
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
}

// AttendanceQueue is the non-blocking handoff to the attendance batcher.
type AttendanceQueue interface {
	Enqueue(record domain.AttendanceRecord) bool
}

// ResolverConfig carries the decision thresholds and retention policy.
type ResolverConfig struct {
	QualityThreshold      float64
	DuplicateThreshold    float64
	DuplicateGapThreshold float64
	VerifyThreshold       float64
	LivenessEnabled       bool
	LivenessThreshold     float64
	DefaultTopK           int
	IndexVersion          int
	SoftDeleteRetention   time.Duration
	RebuildInterval       time.Duration
}

// IdentityResolver turns an image plus tenant into an enrollment or
// verification decision. It is stateless across requests apart from the
// reindex timestamp; all persistent state lives behind the repository and
// the vector index.
type IdentityResolver struct {
	profiles   ProfileRepositoryInterface
	index      vector.Index
	embedder   provider.EmbeddingProvider
	liveness   provider.LivenessChecker
	attendance AttendanceQueue
	auditor    audit.Logger
	logger     *slog.Logger
	config     ResolverConfig

	rebuildMu   sync.Mutex
	lastRebuild time.Time
}

func NewIdentityResolver(
	profiles ProfileRepositoryInterface,
	index vector.Index,
	embedder provider.EmbeddingProvider,
	liveness provider.LivenessChecker,
	attendance AttendanceQueue,
	auditor audit.Logger,
	logger *slog.Logger,
	config ResolverConfig,
) *IdentityResolver {
	if config.DefaultTopK == 0 {
		config.DefaultTopK = 5
	}
	return &IdentityResolver{
		profiles:   profiles,
		index:      index,
		embedder:   embedder,
		liveness:   liveness,
		attendance: attendance,
		auditor:    auditor,
		logger:     logger.With("component", "identity_resolver"),
		config:     config,
	}
}

// EnrollInput is a request to register a new face profile.
type EnrollInput struct {
	TenantID    uuid.UUID
	OwnerID     uuid.UUID
	Image       []byte
	DeviceID    string
	MakePrimary bool
	Metadata    map[string]string
}

// Enroll registers a face profile for an owner. Quality, liveness, and
// cross-owner duplicate rules gate the enrollment; infrastructure failures
// are returned as errors, decision outcomes as the result status.
func (r *IdentityResolver) Enroll(ctx context.Context, in EnrollInput) (*domain.EnrollResult, error) {
	if len(in.Image) == 0 {
		return nil, domain.ErrInvalidImage
	}

	if err := r.index.EnsurePartition(ctx, in.TenantID); err != nil {
		return nil, err
	}

	if r.config.LivenessEnabled {
		isLive, score, err := r.liveness.CheckLiveness(ctx, in.Image, r.config.LivenessThreshold)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: check liveness: %w", in.TenantID, err)
		}
		if !isLive {
			r.auditEnroll(ctx, in, audit.EventEnrollRejected, false, map[string]string{
				"reason":         "liveness_failed",
				"liveness_score": fmt.Sprintf("%.4f", score),
			})
			return &domain.EnrollResult{
				Status:  domain.StatusFailed,
				Message: fmt.Sprintf("liveness check failed (score %.2f)", score),
			}, nil
		}
	}

	emb, err := r.embedder.Embed(ctx, in.Image)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: embed face: %w", in.TenantID, err)
	}
	if emb == nil {
		r.auditEnroll(ctx, in, audit.EventEnrollRejected, false, map[string]string{"reason": "no_face"})
		return &domain.EnrollResult{
			Status:  domain.StatusFailed,
			Message: "no face detected in image",
		}, nil
	}
	if emb.Quality < r.config.QualityThreshold {
		r.auditEnroll(ctx, in, audit.EventEnrollRejected, false, map[string]string{
			"reason":        "low_quality",
			"quality_score": fmt.Sprintf("%.4f", emb.Quality),
		})
		return &domain.EnrollResult{
			Status:       domain.StatusFailed,
			QualityScore: emb.Quality,
			Message:      fmt.Sprintf("image quality %.2f below threshold %.2f", emb.Quality, r.config.QualityThreshold),
		}, nil
	}

	normalized, err := vector.Normalize(emb.Vector)
	if err != nil {
		return nil, err
	}

	matches, err := r.index.Search(ctx, in.TenantID, normalized, 5)
	if err != nil {
		return nil, err
	}

	if duplicate, offending := r.confirmDuplicate(ctx, in, matches); duplicate {
		return &domain.EnrollResult{
			Status:           domain.StatusDuplicate,
			QualityScore:     emb.Quality,
			DuplicateMatches: offending,
			Message:          "face already enrolled under a different owner",
		}, nil
	}

	profile := &domain.FaceProfile{
		TenantID:     in.TenantID,
		OwnerID:      in.OwnerID,
		Embedding:    normalized,
		QualityScore: emb.Quality,
		IndexVersion: r.config.IndexVersion,
		Metadata:     in.Metadata,
	}
	if err := r.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	if err := r.index.Add(ctx, vector.Entry{
		ProfileID: profile.ProfileID,
		TenantID:  in.TenantID,
		OwnerID:   in.OwnerID,
		Embedding: normalized,
		IsPrimary: in.MakePrimary,
	}); err != nil {
		// The profile exists but is not searchable; a reindex will pick it
		// up via the indexed flag.
		return nil, err
	}

	if err := r.profiles.MarkIndexed(ctx, in.TenantID, profile.ProfileID, r.config.IndexVersion); err != nil {
		return nil, err
	}

	if in.MakePrimary {
		if err := r.profiles.SetPrimary(ctx, in.TenantID, in.OwnerID, profile.ProfileID); err != nil {
			return nil, err
		}
		if err := r.refreshOwnerIndex(ctx, in.TenantID, in.OwnerID); err != nil {
			return nil, err
		}
	}

	r.auditEnroll(ctx, in, audit.EventEnrollAccepted, true, map[string]string{
		"profile_id":    profile.ProfileID.String(),
		"quality_score": fmt.Sprintf("%.4f", emb.Quality),
	})

	return &domain.EnrollResult{
		Status:       domain.StatusOK,
		ProfileID:    &profile.ProfileID,
		QualityScore: emb.Quality,
	}, nil
}

// refreshOwnerIndex re-adds the live profiles of an owner to the index so the
// search rows carry the current primary flags. Called after a promotion, which
// changes is_primary on rows the index captured at Add time.
func (r *IdentityResolver) refreshOwnerIndex(ctx context.Context, tenantID, ownerID uuid.UUID) error {
	profiles, err := r.profiles.ListByOwner(ctx, tenantID, ownerID)
	if err != nil {
		return err
	}

	for _, p := range profiles {
		if err := r.index.Add(ctx, vector.Entry{
			ProfileID: p.ProfileID,
			TenantID:  p.TenantID,
			OwnerID:   p.OwnerID,
			Embedding: p.Embedding,
			IsPrimary: p.IsPrimary,
		}); err != nil {
			return err
		}
	}

	return nil
}

// confirmDuplicate decides whether a best match above the duplicate threshold
// blocks the enrollment. A near-equidistant second match means two distinct
// identities score almost the same, so the duplicate signal cannot be
// trusted; the enrollment proceeds and the ambiguity is audited.
func (r *IdentityResolver) confirmDuplicate(ctx context.Context, in EnrollInput, matches []domain.Match) (bool, []domain.Match) {
	if len(matches) == 0 {
		return false, nil
	}

	best := matches[0]
	if best.Similarity <= r.config.DuplicateThreshold || best.OwnerID == in.OwnerID {
		return false, nil
	}

	if len(matches) >= 2 {
		gap := best.Similarity - matches[1].Similarity
		if gap < r.config.DuplicateGapThreshold {
			r.auditEnroll(ctx, in, audit.EventEnrollAmbiguous, true, map[string]string{
				"best_profile_id": best.ProfileID.String(),
				"best_similarity": fmt.Sprintf("%.4f", best.Similarity),
				"gap":             fmt.Sprintf("%.4f", gap),
			})
			return false, nil
		}
	}

	offending := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity > r.config.DuplicateThreshold {
			offending = append(offending, m)
		}
	}

	r.auditEnroll(ctx, in, audit.EventEnrollRejected, false, map[string]string{
		"reason":          "duplicate",
		"best_profile_id": best.ProfileID.String(),
		"best_owner_id":   best.OwnerID.String(),
		"best_similarity": fmt.Sprintf("%.4f", best.Similarity),
	})

	return true, offending
}

// VerifyInput is a request to verify an identity from a single image.
type VerifyInput struct {
	TenantID    uuid.UUID
	Image       []byte
	OwnerID     *uuid.UUID // required for 1:1 mode
	Mode        VerifyMode
	TopK        int
	DeviceID    string
	Location    string
	EvidenceURI string
}

// Verify runs the single-frame verification algorithm and, on a confirmed
// match, hands an attendance record to the batcher without blocking.
func (r *IdentityResolver) Verify(ctx context.Context, in VerifyInput) (*domain.VerifyResult, error) {
	result, err := r.verifyFrame(ctx, in)
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case domain.StatusMatch:
		r.recordAttendance(in, result)
		r.auditVerify(ctx, in, audit.EventVerifyMatch, true, result)
	case domain.StatusNoMatch:
		r.auditVerify(ctx, in, audit.EventVerifyNoMatch, false, result)
	default:
		r.auditVerify(ctx, in, audit.EventVerifyFailed, false, result)
	}

	return result, nil
}

// verifyFrame is the side-effect-free core of verification, shared by the
// single-frame and multi-frame paths.
func (r *IdentityResolver) verifyFrame(ctx context.Context, in VerifyInput) (*domain.VerifyResult, error) {
	if len(in.Image) == 0 {
		return nil, domain.ErrInvalidImage
	}
	if in.Mode == ModeOneToOne && in.OwnerID == nil {
		return nil, domain.ErrBadRequest
	}

	var livenessScore *float64
	if r.config.LivenessEnabled {
		isLive, score, err := r.liveness.CheckLiveness(ctx, in.Image, r.config.LivenessThreshold)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: check liveness: %w", in.TenantID, err)
		}
		livenessScore = &score
		if !isLive {
			return &domain.VerifyResult{
				Status:        domain.StatusFailed,
				LivenessScore: livenessScore,
				Message:       fmt.Sprintf("liveness check failed (score %.2f)", score),
			}, nil
		}
	}

	emb, err := r.embedder.Embed(ctx, in.Image)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: embed face: %w", in.TenantID, err)
	}
	if emb == nil {
		return &domain.VerifyResult{
			Status:        domain.StatusFailed,
			LivenessScore: livenessScore,
			Message:       "no face detected in image",
		}, nil
	}

	topK := in.TopK
	if topK <= 0 {
		topK = r.config.DefaultTopK
	}

	matches, err := r.index.Search(ctx, in.TenantID, emb.Vector, topK)
	if err != nil {
		return nil, err
	}

	candidates := matches
	if in.Mode == ModeOneToOne {
		candidates = filterByOwner(matches, *in.OwnerID)
	}
	if len(candidates) == 0 {
		return &domain.VerifyResult{
			Status:        domain.StatusNoMatch,
			Matches:       []domain.Match{},
			LivenessScore: livenessScore,
		}, nil
	}

	best := candidates[0]
	verified := best.Similarity >= r.config.VerifyThreshold

	// A score alone never confirms an identity: the best match must beat its
	// closest rival belonging to a different owner by the gap threshold,
	// otherwise two identities are indistinguishable at this quality.
	if verified {
		if rival, ok := closestRival(matches, best.OwnerID); ok {
			if best.Similarity-rival.Similarity < r.config.DuplicateGapThreshold {
				verified = false
			}
		}
	}

	result := &domain.VerifyResult{
		Verified:      verified,
		Matches:       candidates,
		BestMatch:     &best,
		LivenessScore: livenessScore,
	}
	if verified {
		result.Status = domain.StatusMatch
	} else {
		result.Status = domain.StatusNoMatch
	}

	return result, nil
}

func filterByOwner(matches []domain.Match, ownerID uuid.UUID) []domain.Match {
	filtered := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if m.OwnerID == ownerID {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// closestRival returns the highest-similarity match owned by someone other
// than ownerID. Matches of the same owner are not rivals: a person enrolled
// with several profiles legitimately dominates the top of the list.
func closestRival(matches []domain.Match, ownerID uuid.UUID) (domain.Match, bool) {
	for _, m := range matches {
		if m.OwnerID != ownerID {
			return m, true
		}
	}
	return domain.Match{}, false
}

// recordAttendance enqueues the attendance side effect. A full buffer is
// logged, never surfaced: attendance is not part of the verification result.
func (r *IdentityResolver) recordAttendance(in VerifyInput, result *domain.VerifyResult) {
	if r.attendance == nil || result.BestMatch == nil {
		return
	}

	record := domain.AttendanceRecord{
		TenantID:           in.TenantID,
		OwnerID:            result.BestMatch.OwnerID,
		DeviceID:           in.DeviceID,
		RecordTime:         time.Now().Unix(),
		VerificationMethod: "face",
		VerificationScore:  result.BestMatch.Similarity,
		EvidenceURI:        in.EvidenceURI,
		Location:           in.Location,
	}

	if !r.attendance.Enqueue(record) {
		r.logger.Warn("attendance record dropped",
			"tenant_id", in.TenantID,
			"owner_id", result.BestMatch.OwnerID,
		)
	}
}

func (r *IdentityResolver) auditEnroll(ctx context.Context, in EnrollInput, eventType audit.EventType, success bool, details map[string]string) {
	if r.auditor == nil {
		return
	}
	// Best effort: audit failures never change the request outcome.
	_ = r.auditor.Log(ctx, audit.Event{
		TenantID:  in.TenantID,
		EventType: eventType,
		OwnerID:   in.OwnerID.String(),
		Success:   success,
		Details:   details,
	})
}

func (r *IdentityResolver) auditVerify(ctx context.Context, in VerifyInput, eventType audit.EventType, success bool, result *domain.VerifyResult) {
	if r.auditor == nil {
		return
	}

	details := map[string]string{"mode": string(in.Mode)}
	if result.BestMatch != nil {
		details["best_similarity"] = fmt.Sprintf("%.4f", result.BestMatch.Similarity)
	}
	if result.Message != "" {
		details["message"] = result.Message
	}

	event := audit.Event{
		TenantID:  in.TenantID,
		EventType: eventType,
		Success:   success,
		Details:   details,
	}
	if result.BestMatch != nil {
		event.OwnerID = result.BestMatch.OwnerID.String()
		event.ProfileID = result.BestMatch.ProfileID.String()
	}

	_ = r.auditor.Log(ctx, event)
}
