package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/domain"
)

const (
	// HeaderTenantID carries the calling tenant's identifier. Upstream
	// gateways are expected to authenticate the caller and stamp this header.
	HeaderTenantID = "X-Tenant-ID"

	// LocalTenantID is the fiber.Ctx locals key holding the parsed tenant UUID.
	LocalTenantID = "tenant_id"
)

// TenantContext parses the tenant header and stores the tenant UUID in the
// request locals. Every /v1 route requires it.
func TenantContext(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(HeaderTenantID))
		if raw == "" {
			return domain.ErrTenantRequired
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			logger.Warn("rejected request with malformed tenant header",
				slog.String("path", c.Path()),
				slog.String("ip", c.IP()),
			)
			return domain.ErrTenantRequired.WithError(err)
		}

		c.Locals(LocalTenantID, tenantID)
		return c.Next()
	}
}

// GetTenantID returns the tenant UUID stored by TenantContext.
func GetTenantID(c *fiber.Ctx) (uuid.UUID, error) {
	tenantID, ok := c.Locals(LocalTenantID).(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, domain.ErrTenantRequired
	}
	return tenantID, nil
}
