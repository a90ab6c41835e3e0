package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/domain"
	"github.com/facegate/facegate/internal/service"
)

// ProfileService interface for profile administration
type ProfileService interface {
	UpdateProfile(ctx context.Context, in service.UpdateProfileInput) (*domain.FaceProfile, error)
	DeleteProfile(ctx context.Context, tenantID, profileID uuid.UUID, hardDelete bool) error
	ListProfiles(ctx context.Context, tenantID, ownerID uuid.UUID) ([]domain.FaceProfile, error)
}

// ProfileHandler handles face profile administration requests
type ProfileHandler struct {
	service ProfileService
	logger  *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler instance
func NewProfileHandler(service ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger,
	}
}

// ProfileResponse is the API shape of a face profile. Embeddings never leave
// the service.
type ProfileResponse struct {
	ProfileID    string            `json:"profile_id"`
	OwnerID      string            `json:"owner_id"`
	QualityScore float64           `json:"quality_score"`
	IsPrimary    bool              `json:"is_primary"`
	Indexed      bool              `json:"indexed"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

// ListProfilesResponse response for the list endpoint
type ListProfilesResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
	Total    int               `json:"total"`
}

// List GET /v1/owners/:owner_id/profiles - list an owner's profiles
func (h *ProfileHandler) List(c *fiber.Ctx) error {
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		return err
	}

	ownerID, err := parseParamUUID(c, "owner_id")
	if err != nil {
		return err
	}

	profiles, err := h.service.ListProfiles(c.Context(), tenantID, ownerID)
	if err != nil {
		return err
	}

	resp := ListProfilesResponse{
		Profiles: make([]ProfileResponse, 0, len(profiles)),
		Total:    len(profiles),
	}
	for i := range profiles {
		resp.Profiles = append(resp.Profiles, toProfileResponse(&profiles[i]))
	}

	return c.JSON(resp)
}

// Update PATCH /v1/profiles/:profile_id - re-embed, re-primary, or patch metadata
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		return err
	}

	profileID, err := parseParamUUID(c, "profile_id")
	if err != nil {
		return err
	}

	in := service.UpdateProfileInput{
		TenantID:  tenantID,
		ProfileID: profileID,
	}

	// A new image is optional on update
	if file, ferr := c.FormFile("image"); ferr == nil && file != nil {
		imageBytes, rerr := readImageFile(file)
		if rerr != nil {
			return fmt.Errorf("update profile: %w", rerr)
		}
		in.Image = imageBytes
	}

	if raw := strings.TrimSpace(c.FormValue("make_primary")); raw != "" {
		makePrimary, perr := strconv.ParseBool(raw)
		if perr != nil {
			return domain.ErrBadRequest.WithError(fmt.Errorf("make_primary: %w", perr))
		}
		in.MakePrimary = &makePrimary
	}

	metadata, err := parseMetadata(c.FormValue("metadata"))
	if err != nil {
		return err
	}
	in.Metadata = metadata

	profile, err := h.service.UpdateProfile(c.Context(), in)
	if err != nil {
		return err
	}

	return c.JSON(toProfileResponse(profile))
}

// Delete DELETE /v1/profiles/:profile_id - remove a profile (soft by default)
func (h *ProfileHandler) Delete(c *fiber.Ctx) error {
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		return err
	}

	profileID, err := parseParamUUID(c, "profile_id")
	if err != nil {
		return err
	}

	hardDelete := c.QueryBool("hard", false)

	if err := h.service.DeleteProfile(c.Context(), tenantID, profileID, hardDelete); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func toProfileResponse(profile *domain.FaceProfile) ProfileResponse {
	return ProfileResponse{
		ProfileID:    profile.ProfileID.String(),
		OwnerID:      profile.OwnerID.String(),
		QualityScore: profile.QualityScore,
		IsPrimary:    profile.IsPrimary,
		Indexed:      profile.Indexed,
		Metadata:     profile.Metadata,
		CreatedAt:    profile.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    profile.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseParamUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(name)))
	if err != nil {
		return uuid.Nil, domain.ErrBadRequest.WithError(fmt.Errorf("%s: %w", name, err))
	}
	return id, nil
}
