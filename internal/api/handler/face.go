package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/domain"
	"github.com/facegate/facegate/internal/service"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// IdentityService interface for the resolver
type IdentityService interface {
	Enroll(ctx context.Context, in service.EnrollInput) (*domain.EnrollResult, error)
	Verify(ctx context.Context, in service.VerifyInput) (*domain.VerifyResult, error)
	VerifyMultiFrame(ctx context.Context, in service.MultiFrameInput) (*domain.VerifyResult, error)
}

// FaceHandler handles enrollment and verification requests
type FaceHandler struct {
	service IdentityService
	logger  *slog.Logger
}

// NewFaceHandler creates a new FaceHandler instance
func NewFaceHandler(service IdentityService, logger *slog.Logger) *FaceHandler {
	return &FaceHandler{
		service: service,
		logger:  logger,
	}
}

// MatchResponse is a single candidate match in a verification response
type MatchResponse struct {
	ProfileID  string  `json:"profile_id"`
	OwnerID    string  `json:"owner_id"`
	Similarity float64 `json:"similarity"`
	IsPrimary  bool    `json:"is_primary"`
}

// EnrollResponse response for the enroll endpoint
type EnrollResponse struct {
	Status           string          `json:"status"`
	ProfileID        string          `json:"profile_id,omitempty"`
	QualityScore     float64         `json:"quality_score"`
	DuplicateMatches []MatchResponse `json:"duplicate_matches,omitempty"`
	Message          string          `json:"message,omitempty"`
}

// VerifyResponse response for the verify endpoints
type VerifyResponse struct {
	Status        string          `json:"status"`
	Verified      bool            `json:"verified"`
	BestMatch     *MatchResponse  `json:"best_match,omitempty"`
	Matches       []MatchResponse `json:"matches"`
	LivenessScore *float64        `json:"liveness_score,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// Enroll POST /v1/faces - enroll a face profile for an owner
func (h *FaceHandler) Enroll(c *fiber.Ctx) error {
	// 1. Extract tenant_id from context
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		return err
	}

	// 2. Extract owner_id from form
	ownerID, err := parseFormUUID(c, "owner_id", true)
	if err != nil {
		return err
	}

	// 3. Extract and validate image
	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("enroll face: %w", err)
	}

	// 4. Optional fields
	metadata, err := parseMetadata(c.FormValue("metadata"))
	if err != nil {
		return err
	}
	makePrimary := parseFormBool(c.FormValue("make_primary"))

	// 5. Call service to enroll
	result, err := h.service.Enroll(c.Context(), service.EnrollInput{
		TenantID:    tenantID,
		OwnerID:     *ownerID,
		Image:       imageBytes,
		DeviceID:    strings.TrimSpace(c.FormValue("device_id")),
		MakePrimary: makePrimary,
		Metadata:    metadata,
	})
	if err != nil {
		return err
	}

	// 6. Return response; the decision outcome picks the status code
	return c.Status(enrollStatusCode(result.Status)).JSON(toEnrollResponse(result))
}

// Verify POST /v1/faces/verify - verify a face from a single image
func (h *FaceHandler) Verify(c *fiber.Ctx) error {
	// 1. Extract tenant_id from context
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		return err
	}

	// 2. owner_id selects 1:1 mode, absence means 1:N identification
	ownerID, err := parseFormUUID(c, "owner_id", false)
	if err != nil {
		return err
	}

	// 3. Extract and validate image
	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("verify face: %w", err)
	}

	topK, err := parseTopK(c.FormValue("top_k"))
	if err != nil {
		return err
	}

	// 4. Call service to verify
	result, err := h.service.Verify(c.Context(), service.VerifyInput{
		TenantID:    tenantID,
		Image:       imageBytes,
		OwnerID:     ownerID,
		Mode:        verifyMode(ownerID),
		TopK:        topK,
		DeviceID:    strings.TrimSpace(c.FormValue("device_id")),
		Location:    strings.TrimSpace(c.FormValue("location")),
		EvidenceURI: strings.TrimSpace(c.FormValue("evidence_uri")),
	})
	if err != nil {
		return err
	}

	// 5. Return response
	return c.JSON(toVerifyResponse(result))
}

// VerifyFrames POST /v1/faces/verify/frames - multi-frame verification
func (h *FaceHandler) VerifyFrames(c *fiber.Ctx) error {
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		return err
	}

	ownerID, err := parseFormUUID(c, "owner_id", false)
	if err != nil {
		return err
	}

	frames, err := extractFrames(c)
	if err != nil {
		return fmt.Errorf("verify frames: %w", err)
	}

	topK, err := parseTopK(c.FormValue("top_k"))
	if err != nil {
		return err
	}

	result, err := h.service.VerifyMultiFrame(c.Context(), service.MultiFrameInput{
		TenantID:    tenantID,
		Frames:      frames,
		OwnerID:     ownerID,
		Mode:        verifyMode(ownerID),
		TopK:        topK,
		DeviceID:    strings.TrimSpace(c.FormValue("device_id")),
		Location:    strings.TrimSpace(c.FormValue("location")),
		EvidenceURI: strings.TrimSpace(c.FormValue("evidence_uri")),
	})
	if err != nil {
		return err
	}

	return c.JSON(toVerifyResponse(result))
}

func enrollStatusCode(status string) int {
	switch status {
	case domain.StatusOK:
		return fiber.StatusCreated
	case domain.StatusDuplicate:
		return fiber.StatusConflict
	default:
		return fiber.StatusUnprocessableEntity
	}
}

func verifyMode(ownerID *uuid.UUID) service.VerifyMode {
	if ownerID != nil {
		return service.ModeOneToOne
	}
	return service.ModeOneToMany
}

func toMatchResponse(m domain.Match) MatchResponse {
	return MatchResponse{
		ProfileID:  m.ProfileID.String(),
		OwnerID:    m.OwnerID.String(),
		Similarity: m.Similarity,
		IsPrimary:  m.IsPrimary,
	}
}

func toEnrollResponse(result *domain.EnrollResult) EnrollResponse {
	resp := EnrollResponse{
		Status:       result.Status,
		QualityScore: result.QualityScore,
		Message:      result.Message,
	}
	if result.ProfileID != nil {
		resp.ProfileID = result.ProfileID.String()
	}
	for _, m := range result.DuplicateMatches {
		resp.DuplicateMatches = append(resp.DuplicateMatches, toMatchResponse(m))
	}
	return resp
}

func toVerifyResponse(result *domain.VerifyResult) VerifyResponse {
	resp := VerifyResponse{
		Status:        result.Status,
		Verified:      result.Verified,
		Matches:       make([]MatchResponse, 0, len(result.Matches)),
		LivenessScore: result.LivenessScore,
		Message:       result.Message,
	}
	if result.BestMatch != nil {
		best := toMatchResponse(*result.BestMatch)
		resp.BestMatch = &best
	}
	for _, m := range result.Matches {
		resp.Matches = append(resp.Matches, toMatchResponse(m))
	}
	return resp
}

// parseFormUUID reads a UUID form field. A missing optional field yields nil.
func parseFormUUID(c *fiber.Ctx, field string, required bool) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		if required {
			return nil, domain.ErrBadRequest.WithError(fmt.Errorf("%s is required", field))
		}
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.ErrBadRequest.WithError(fmt.Errorf("%s: %w", field, err))
	}
	return &id, nil
}

func parseFormBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func parseTopK(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	topK, err := strconv.Atoi(raw)
	if err != nil || topK < 1 || topK > 50 {
		return 0, domain.ErrBadRequest.WithError(errors.New("top_k must be between 1 and 50"))
	}
	return topK, nil
}

func parseMetadata(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, domain.ErrBadRequest.WithError(fmt.Errorf("metadata must be a JSON string map: %w", err))
	}
	return metadata, nil
}

// extractAndValidateImage extracts and validates the image from the form
func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrBadRequest.WithError(err)
	}
	return readImageFile(file)
}

// extractFrames collects every file uploaded under the "frames" field.
func extractFrames(c *fiber.Ctx) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, domain.ErrBadRequest.WithError(err)
	}

	files := form.File["frames"]
	frames := make([][]byte, 0, len(files))
	for _, file := range files {
		frame, err := readImageFile(file)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func readImageFile(file *multipart.FileHeader) ([]byte, error) {
	// Validate size
	if file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	if file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	// Validate Content-Type
	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, nil
}
