package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTenantApp() *fiber.App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(logger),
	})
	app.Use(TenantContext(logger))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		tenantID, err := GetTenantID(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"tenant_id": tenantID.String()})
	})
	return app
}

func TestTenantContext(t *testing.T) {
	app := newTenantApp()
	tenantID := uuid.New()

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(HeaderTenantID, tenantID.String())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, tenantID.String(), payload["tenant_id"])
}

func TestTenantContext_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "malformed uuid", header: "not-a-uuid"},
		{name: "nil uuid", header: uuid.Nil.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTenantApp()

			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(HeaderTenantID, tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			assert.Equal(t, "TENANT_REQUIRED", payload.Error.Code)
		})
	}
}
