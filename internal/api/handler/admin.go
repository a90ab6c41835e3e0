package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/facegate/facegate/internal/attendance"
	"github.com/facegate/facegate/internal/domain"
)

// MaintenanceService interface for index and retention maintenance
type MaintenanceService interface {
	Reindex(ctx context.Context, force bool) (*domain.ReindexResult, error)
	CleanupExpired(ctx context.Context) (*domain.CleanupResult, error)
}

// AttendanceStats exposes the batcher's counters
type AttendanceStats interface {
	Stats() attendance.Stats
}

// AdminHandler handles maintenance requests
type AdminHandler struct {
	service MaintenanceService
	batcher AttendanceStats
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(service MaintenanceService, batcher AttendanceStats, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		batcher: batcher,
		logger:  logger,
	}
}

// ReindexResponse response for the reindex endpoint
type ReindexResponse struct {
	Status          string `json:"status"`
	ProfilesIndexed int    `json:"profiles_indexed"`
	DurationMs      int64  `json:"duration_ms"`
	Message         string `json:"message,omitempty"`
}

// CleanupResponse response for the retention cleanup endpoint
type CleanupResponse struct {
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// AttendanceStatsResponse response for the attendance stats endpoint
type AttendanceStatsResponse struct {
	Enqueued       uint64 `json:"enqueued"`
	Rejected       uint64 `json:"rejected"`
	FlushedBatches uint64 `json:"flushed_batches"`
	FlushedRecords uint64 `json:"flushed_records"`
	FailedBatches  uint64 `json:"failed_batches"`
	Pending        int    `json:"pending"`
}

// Reindex POST /v1/admin/reindex - rebuild the vector index from storage
func (h *AdminHandler) Reindex(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)

	result, err := h.service.Reindex(c.Context(), force)
	if err != nil {
		return err
	}

	return c.JSON(ReindexResponse{
		Status:          result.Status,
		ProfilesIndexed: result.ProfilesIndexed,
		DurationMs:      result.Duration.Milliseconds(),
		Message:         result.Message,
	})
}

// Cleanup POST /v1/admin/retention/cleanup - purge profiles past retention
func (h *AdminHandler) Cleanup(c *fiber.Ctx) error {
	result, err := h.service.CleanupExpired(c.Context())
	if err != nil {
		return err
	}

	return c.JSON(CleanupResponse{
		Removed: result.Removed,
		Failed:  result.Failed,
	})
}

// AttendanceStats GET /v1/admin/attendance/stats - batcher counters
func (h *AdminHandler) AttendanceStats(c *fiber.Ctx) error {
	stats := h.batcher.Stats()

	return c.JSON(AttendanceStatsResponse{
		Enqueued:       stats.Enqueued,
		Rejected:       stats.Rejected,
		FlushedBatches: stats.FlushedBatches,
		FlushedRecords: stats.FlushedRecords,
		FailedBatches:  stats.FailedBatches,
		Pending:        stats.Pending,
	})
}
