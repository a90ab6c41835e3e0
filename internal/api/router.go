package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	swagger "github.com/go-swagno/swagno-fiber/swagger"

	"github.com/facegate/facegate/internal/api/docs"
	"github.com/facegate/facegate/internal/api/handler"
	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/attendance"
	"github.com/facegate/facegate/internal/service"
)

type Dependencies struct {
	Resolver *service.IdentityResolver
	Batcher  *attendance.Batcher
	DB       *pgxpool.Pool // nil when running on the in-memory backend
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Facegate API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Tenant-ID",
	}))

	// Swagger documentation (no tenant required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Health check endpoints (no tenant required)
	var pinger handler.Pinger
	if r.deps != nil && r.deps.DB != nil {
		pinger = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(pinger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// API v1 group, tenant-scoped
	v1 := r.app.Group("/v1")

	// Only configure tenant routes if dependencies were provided
	if r.deps != nil {
		v1.Use(middleware.TenantContext(r.logger))

		// Face routes
		faceHandler := handler.NewFaceHandler(r.deps.Resolver, r.logger)
		v1.Post("/faces", faceHandler.Enroll)
		v1.Post("/faces/verify", faceHandler.Verify)
		v1.Post("/faces/verify/frames", faceHandler.VerifyFrames)

		// Profile routes
		profileHandler := handler.NewProfileHandler(r.deps.Resolver, r.logger)
		v1.Get("/owners/:owner_id/profiles", profileHandler.List)
		v1.Patch("/profiles/:profile_id", profileHandler.Update)
		v1.Delete("/profiles/:profile_id", profileHandler.Delete)

		// Maintenance routes
		adminHandler := handler.NewAdminHandler(r.deps.Resolver, r.deps.Batcher, r.logger)
		adminGroup := v1.Group("/admin")
		adminGroup.Post("/reindex", adminHandler.Reindex)
		adminGroup.Post("/retention/cleanup", adminHandler.Cleanup)
		adminGroup.Get("/attendance/stats", adminHandler.AttendanceStats)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
