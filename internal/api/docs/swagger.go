package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// MatchData represents a single candidate match
type MatchData struct {
	ProfileID  string  `json:"profile_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	OwnerID    string  `json:"owner_id" example:"9f1c3a1e-0b52-4df8-8f4e-2f1f2b3c4d5e"`
	Similarity float64 `json:"similarity" example:"0.93"`
	IsPrimary  bool    `json:"is_primary" example:"true"`
}

// EnrollResponse represents the response for a face enrollment
type EnrollResponse struct {
	Status           string      `json:"status" example:"ok"`
	ProfileID        string      `json:"profile_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	QualityScore     float64     `json:"quality_score" example:"0.87"`
	DuplicateMatches []MatchData `json:"duplicate_matches,omitempty"`
	Message          string      `json:"message,omitempty" example:""`
}

// VerifyResponse represents the response for face verification
type VerifyResponse struct {
	Status        string      `json:"status" example:"match"`
	Verified      bool        `json:"verified" example:"true"`
	BestMatch     *MatchData  `json:"best_match,omitempty"`
	Matches       []MatchData `json:"matches"`
	LivenessScore *float64    `json:"liveness_score,omitempty" example:"0.91"`
	Message       string      `json:"message,omitempty" example:""`
}

// ProfileResponse represents a stored face profile
type ProfileResponse struct {
	ProfileID    string            `json:"profile_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	OwnerID      string            `json:"owner_id" example:"9f1c3a1e-0b52-4df8-8f4e-2f1f2b3c4d5e"`
	QualityScore float64           `json:"quality_score" example:"0.87"`
	IsPrimary    bool              `json:"is_primary" example:"true"`
	Indexed      bool              `json:"indexed" example:"true"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    string            `json:"created_at" example:"2024-01-01T00:00:00Z"`
	UpdatedAt    string            `json:"updated_at" example:"2024-01-01T00:00:00Z"`
}

// ListProfilesResponse represents the response for listing an owner's profiles
type ListProfilesResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
	Total    int               `json:"total" example:"2"`
}

// ReindexResponse represents the response for an index rebuild
type ReindexResponse struct {
	Status          string `json:"status" example:"ok"`
	ProfilesIndexed int    `json:"profiles_indexed" example:"1500"`
	DurationMs      int64  `json:"duration_ms" example:"482"`
	Message         string `json:"message,omitempty" example:""`
}

// CleanupResponse represents the response for a retention sweep
type CleanupResponse struct {
	Removed int `json:"removed" example:"12"`
	Failed  int `json:"failed" example:"0"`
}

// AttendanceStatsResponse represents the attendance batcher counters
type AttendanceStatsResponse struct {
	Enqueued       uint64 `json:"enqueued" example:"1043"`
	Rejected       uint64 `json:"rejected" example:"2"`
	FlushedBatches uint64 `json:"flushed_batches" example:"110"`
	FlushedRecords uint64 `json:"flushed_records" example:"1035"`
	FailedBatches  uint64 `json:"failed_batches" example:"1"`
	Pending        int    `json:"pending" example:"6"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"BAD_REQUEST"`
	Message string `json:"message" example:"Invalid request"`
}

// EmptyResponse represents no content response (204)
type EmptyResponse struct{}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Facegate Identity Verification API",
		Version:     "v1.0.0",
		Description: "Multi-tenant biometric identity verification with enrollment gating, 1:1 and 1:N matching, and batched attendance delivery",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/faces - Enroll
		endpoint.New(
			endpoint.POST,
			"/faces",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Enroll a face profile"),
			endpoint.WithDescription("Registers a face profile for the given owner_id. Enrollment is gated by liveness, image quality, and a cross-tenant-owner duplicate check; gate outcomes are reported in the response status, not as errors."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollResponse{}, "201", "Profile enrolled"),
				response.New(EnrollResponse{Status: "duplicate"}, "409", "Face already enrolled for another owner"),
				response.New(EnrollResponse{Status: "failed"}, "422", "Quality or liveness gate failed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "VECTOR_STORE_UNAVAILABLE", Message: "Vector store is unreachable, retry later"}, "503", "Service Unavailable"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// POST /v1/faces/verify - Verify
		endpoint.New(
			endpoint.POST,
			"/faces/verify",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Verify an identity from a single image"),
			endpoint.WithDescription("Passing owner_id performs 1:1 verification against that owner's profiles; omitting it performs 1:N identification across the tenant. A confirmed match queues an attendance record."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerifyResponse{}, "200", "Verification completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "VECTOR_STORE_UNAVAILABLE", Message: "Vector store is unreachable, retry later"}, "503", "Service Unavailable"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// POST /v1/faces/verify/frames - Multi-frame verify
		endpoint.New(
			endpoint.POST,
			"/faces/verify/frames",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Verify an identity from several frames"),
			endpoint.WithDescription("Runs verification on 3 to 5 frames captured in quick succession and majority-votes the owner across frames that verify on their own. The reported confidence is the winner's mean similarity."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerifyResponse{}, "200", "Verification completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Between 3 and 5 frames are required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /v1/owners/:owner_id/profiles - List profiles
		endpoint.New(
			endpoint.GET,
			"/owners/{owner_id}/profiles",
			endpoint.WithTags("Profiles"),
			endpoint.WithSummary("List an owner's face profiles"),
			endpoint.WithDescription("Returns the owner's live profiles, primary first. Embedding vectors are never exposed."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("owner_id", parameter.Path, parameter.WithDescription("Owner UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ListProfilesResponse{}, "200", "Profiles listed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// PATCH /v1/profiles/:profile_id - Update profile
		endpoint.New(
			endpoint.PATCH,
			"/profiles/{profile_id}",
			endpoint.WithTags("Profiles"),
			endpoint.WithSummary("Update a face profile"),
			endpoint.WithDescription("Re-embeds the profile when a new image is attached, promotes it to primary, or patches its metadata. Absent fields are left untouched."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("profile_id", parameter.Path, parameter.WithDescription("Profile UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ProfileResponse{}, "200", "Profile updated"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "PROFILE_NOT_FOUND", Message: "Face profile not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "LOW_QUALITY_IMAGE", Message: "Image quality too low for reliable recognition"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// DELETE /v1/profiles/:profile_id - Delete profile
		endpoint.New(
			endpoint.DELETE,
			"/profiles/{profile_id}",
			endpoint.WithTags("Profiles"),
			endpoint.WithSummary("Delete a face profile"),
			endpoint.WithDescription("Soft-deletes by default, keeping the row for the retention window while removing it from matching immediately. Pass hard=true for immediate erasure."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("profile_id", parameter.Path, parameter.WithDescription("Profile UUID")),
				parameter.StrParam("hard", parameter.Query, parameter.WithDescription("Erase immediately instead of soft-deleting")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Profile deleted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "PROFILE_NOT_FOUND", Message: "Face profile not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// POST /v1/admin/reindex - Rebuild index
		endpoint.New(
			endpoint.POST,
			"/admin/reindex",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Rebuild the vector index from storage"),
			endpoint.WithDescription("Rebuilds every tenant partition from the profile store. Skipped when a rebuild ran within the configured interval unless force=true."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("force", parameter.Query, parameter.WithDescription("Rebuild even within the rebuild interval")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReindexResponse{}, "200", "Rebuild completed or skipped"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VECTOR_STORE_UNAVAILABLE", Message: "Vector store is unreachable, retry later"}, "503", "Service Unavailable"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// POST /v1/admin/retention/cleanup - Retention sweep
		endpoint.New(
			endpoint.POST,
			"/admin/retention/cleanup",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Purge soft-deleted profiles past retention"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CleanupResponse{}, "200", "Sweep completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /v1/admin/attendance/stats - Batcher counters
		endpoint.New(
			endpoint.GET,
			"/admin/attendance/stats",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Attendance batcher counters"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AttendanceStatsResponse{}, "200", "Counters returned"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
