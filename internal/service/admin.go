package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/audit"
	"github.com/facegate/facegate/internal/domain"
	"github.com/facegate/facegate/internal/vector"
)

// UpdateProfileInput patches an existing profile. A nil field leaves the
// corresponding attribute untouched.
type UpdateProfileInput struct {
	TenantID    uuid.UUID
	ProfileID   uuid.UUID
	Image       []byte // re-embed when set
	MakePrimary *bool
	Metadata    map[string]string
}

// UpdateProfile re-embeds, re-primaries, or patches metadata on a profile.
func (r *IdentityResolver) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*domain.FaceProfile, error) {
	profile, err := r.profiles.GetByID(ctx, in.TenantID, in.ProfileID)
	if err != nil {
		return nil, err
	}

	if len(in.Image) > 0 {
		emb, err := r.embedder.Embed(ctx, in.Image)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: embed face: %w", in.TenantID, err)
		}
		if emb == nil {
			return nil, domain.ErrNoFaceDetected
		}
		if emb.Quality < r.config.QualityThreshold {
			return nil, domain.ErrLowQuality
		}

		normalized, err := vector.Normalize(emb.Vector)
		if err != nil {
			return nil, err
		}

		if err := r.profiles.UpdateEmbedding(ctx, in.TenantID, in.ProfileID, normalized, emb.Quality); err != nil {
			return nil, err
		}
		if err := r.index.Add(ctx, vector.Entry{
			ProfileID: in.ProfileID,
			TenantID:  in.TenantID,
			OwnerID:   profile.OwnerID,
			Embedding: normalized,
			IsPrimary: profile.IsPrimary,
		}); err != nil {
			return nil, err
		}
		if err := r.profiles.MarkIndexed(ctx, in.TenantID, in.ProfileID, r.config.IndexVersion); err != nil {
			return nil, err
		}
	}

	if in.Metadata != nil {
		if err := r.profiles.UpdateMetadata(ctx, in.TenantID, in.ProfileID, in.Metadata); err != nil {
			return nil, err
		}
	}

	if in.MakePrimary != nil && *in.MakePrimary {
		if err := r.profiles.SetPrimary(ctx, in.TenantID, profile.OwnerID, in.ProfileID); err != nil {
			return nil, err
		}
		if err := r.refreshOwnerIndex(ctx, in.TenantID, profile.OwnerID); err != nil {
			return nil, err
		}
	}

	updated, err := r.profiles.GetByID(ctx, in.TenantID, in.ProfileID)
	if err != nil {
		return nil, err
	}

	r.auditAdmin(ctx, in.TenantID, audit.EventProfileUpdated, updated.OwnerID, in.ProfileID, true, nil)
	return updated, nil
}

// DeleteProfile unindexes the profile and either soft-deletes it, leaving it
// for the retention sweep, or removes it permanently.
func (r *IdentityResolver) DeleteProfile(ctx context.Context, tenantID, profileID uuid.UUID, hardDelete bool) error {
	profile, err := r.profiles.GetByID(ctx, tenantID, profileID)
	if err != nil {
		return err
	}

	if err := r.index.Remove(ctx, profileID, tenantID); err != nil {
		return err
	}

	if hardDelete {
		err = r.profiles.HardDelete(ctx, tenantID, profileID)
	} else {
		err = r.profiles.SoftDelete(ctx, tenantID, profileID)
	}
	if err != nil {
		return err
	}

	r.auditAdmin(ctx, tenantID, audit.EventProfileDeleted, profile.OwnerID, profileID, true, map[string]string{
		"hard_delete": fmt.Sprintf("%t", hardDelete),
	})

	return nil
}

// ListProfiles returns the live profiles of an owner, primary first.
func (r *IdentityResolver) ListProfiles(ctx context.Context, tenantID, ownerID uuid.UUID) ([]domain.FaceProfile, error) {
	return r.profiles.ListByOwner(ctx, tenantID, ownerID)
}

// Reindex rebuilds the vector index from the profile store. Unless force is
// set, a rebuild within RebuildInterval of the previous one is skipped.
func (r *IdentityResolver) Reindex(ctx context.Context, force bool) (*domain.ReindexResult, error) {
	r.rebuildMu.Lock()
	defer r.rebuildMu.Unlock()

	if !force && !r.lastRebuild.IsZero() && time.Since(r.lastRebuild) < r.config.RebuildInterval {
		return &domain.ReindexResult{
			Status:  domain.StatusSkipped,
			Message: fmt.Sprintf("last rebuild %s ago, interval is %s", time.Since(r.lastRebuild).Round(time.Second), r.config.RebuildInterval),
		}, nil
	}

	start := time.Now()

	profiles, err := r.profiles.ListIndexable(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]vector.Entry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, vector.Entry{
			ProfileID: p.ProfileID,
			TenantID:  p.TenantID,
			OwnerID:   p.OwnerID,
			Embedding: p.Embedding,
			IsPrimary: p.IsPrimary,
		})
	}

	if err := r.index.Rebuild(ctx, entries); err != nil {
		return nil, err
	}

	for _, p := range profiles {
		if err := r.profiles.MarkIndexed(ctx, p.TenantID, p.ProfileID, r.config.IndexVersion); err != nil {
			r.logger.Error("failed to mark profile indexed",
				"profile_id", p.ProfileID,
				"error", err,
			)
		}
	}

	r.lastRebuild = time.Now()
	duration := time.Since(start)

	r.auditAdmin(ctx, uuid.Nil, audit.EventIndexRebuilt, uuid.Nil, uuid.Nil, true, map[string]string{
		"profiles_indexed": fmt.Sprintf("%d", len(entries)),
		"duration":         duration.String(),
	})

	return &domain.ReindexResult{
		Status:          domain.StatusOK,
		ProfilesIndexed: len(entries),
		Duration:        duration,
	}, nil
}

// CleanupExpired permanently removes profiles soft-deleted longer ago than
// the retention window. Per-profile failures are counted, not fatal: one
// stuck profile must not block the sweep.
func (r *IdentityResolver) CleanupExpired(ctx context.Context) (*domain.CleanupResult, error) {
	cutoff := time.Now().Add(-r.config.SoftDeleteRetention)

	expired, err := r.profiles.ListExpired(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &domain.CleanupResult{}
	for _, p := range expired {
		if err := r.index.Remove(ctx, p.ProfileID, p.TenantID); err != nil {
			r.logger.Error("cleanup: failed to unindex profile",
				"profile_id", p.ProfileID,
				"error", err,
			)
			result.Failed++
			continue
		}
		if err := r.profiles.HardDelete(ctx, p.TenantID, p.ProfileID); err != nil {
			r.logger.Error("cleanup: failed to delete profile",
				"profile_id", p.ProfileID,
				"error", err,
			)
			result.Failed++
			continue
		}
		result.Removed++
	}

	r.auditAdmin(ctx, uuid.Nil, audit.EventRetentionSweep, uuid.Nil, uuid.Nil, result.Failed == 0, map[string]string{
		"removed": fmt.Sprintf("%d", result.Removed),
		"failed":  fmt.Sprintf("%d", result.Failed),
	})

	return result, nil
}

func (r *IdentityResolver) auditAdmin(ctx context.Context, tenantID uuid.UUID, eventType audit.EventType, ownerID, profileID uuid.UUID, success bool, details map[string]string) {
	if r.auditor == nil {
		return
	}

	event := audit.Event{
		TenantID:  tenantID,
		EventType: eventType,
		Success:   success,
		Details:   details,
	}
	if ownerID != uuid.Nil {
		event.OwnerID = ownerID.String()
	}
	if profileID != uuid.Nil {
		event.ProfileID = profileID.String()
	}

	_ = r.auditor.Log(ctx, event)
}
