package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/facegate/facegate/internal/attendance"
	"github.com/facegate/facegate/internal/domain"
)

// MockMaintenanceService is a mock implementation of MaintenanceService
type MockMaintenanceService struct {
	mock.Mock
}

func (m *MockMaintenanceService) Reindex(ctx context.Context, force bool) (*domain.ReindexResult, error) {
	args := m.Called(ctx, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReindexResult), args.Error(1)
}

func (m *MockMaintenanceService) CleanupExpired(ctx context.Context) (*domain.CleanupResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CleanupResult), args.Error(1)
}

type stubStats struct {
	stats attendance.Stats
}

func (s *stubStats) Stats() attendance.Stats {
	return s.stats
}

func TestAdminHandler_Reindex(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantForce  bool
		result     *domain.ReindexResult
		wantStatus string
	}{
		{
			name:       "rebuild runs",
			query:      "",
			wantForce:  false,
			result:     &domain.ReindexResult{Status: domain.StatusOK, ProfilesIndexed: 42, Duration: 1500 * time.Millisecond},
			wantStatus: domain.StatusOK,
		},
		{
			name:       "forced rebuild",
			query:      "?force=true",
			wantForce:  true,
			result:     &domain.ReindexResult{Status: domain.StatusOK, ProfilesIndexed: 42, Duration: time.Second},
			wantStatus: domain.StatusOK,
		},
		{
			name:       "skipped within interval",
			query:      "",
			wantForce:  false,
			result:     &domain.ReindexResult{Status: domain.StatusSkipped, Message: "index was rebuilt recently"},
			wantStatus: domain.StatusSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockMaintenanceService)
			mockService.On("Reindex", mock.Anything, tt.wantForce).Return(tt.result, nil)

			app := newTestApp(uuid.New())
			handler := NewAdminHandler(mockService, &stubStats{}, testLogger())
			app.Post("/v1/admin/reindex", handler.Reindex)

			req := httptest.NewRequest("POST", "/v1/admin/reindex"+tt.query, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)

			var result ReindexResponse
			assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.result.ProfilesIndexed, result.ProfilesIndexed)
			assert.Equal(t, tt.result.Duration.Milliseconds(), result.DurationMs)

			mockService.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_Cleanup(t *testing.T) {
	mockService := new(MockMaintenanceService)
	mockService.On("CleanupExpired", mock.Anything).Return(&domain.CleanupResult{Removed: 7, Failed: 1}, nil)

	app := newTestApp(uuid.New())
	handler := NewAdminHandler(mockService, &stubStats{}, testLogger())
	app.Post("/v1/admin/retention/cleanup", handler.Cleanup)

	req := httptest.NewRequest("POST", "/v1/admin/retention/cleanup", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result CleanupResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 7, result.Removed)
	assert.Equal(t, 1, result.Failed)
}

func TestAdminHandler_AttendanceStats(t *testing.T) {
	stats := attendance.Stats{
		Enqueued:       120,
		Rejected:       3,
		FlushedBatches: 11,
		FlushedRecords: 110,
		FailedBatches:  1,
		Pending:        7,
	}

	app := newTestApp(uuid.New())
	handler := NewAdminHandler(new(MockMaintenanceService), &stubStats{stats: stats}, testLogger())
	app.Get("/v1/admin/attendance/stats", handler.AttendanceStats)

	req := httptest.NewRequest("GET", "/v1/admin/attendance/stats", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result AttendanceStatsResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, uint64(120), result.Enqueued)
	assert.Equal(t, uint64(3), result.Rejected)
	assert.Equal(t, 7, result.Pending)
}
