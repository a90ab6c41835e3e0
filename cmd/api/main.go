package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facegate/facegate/internal/api"
	"github.com/facegate/facegate/internal/attendance"
	"github.com/facegate/facegate/internal/audit"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/database"
	"github.com/facegate/facegate/internal/provider/insight"
	"github.com/facegate/facegate/internal/repository"
	"github.com/facegate/facegate/internal/service"
	"github.com/facegate/facegate/internal/vector"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Facegate API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("vector_backend", cfg.VectorBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database pool
	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Vector index backend
	index, err := newVectorIndex(cfg, pool)
	if err != nil {
		return err
	}

	// Embedding and liveness provider
	faceProvider := insight.NewProvider(insight.Config{
		BaseURL:    cfg.InsightURL,
		Timeout:    cfg.InsightTimeout,
		Model:      "buffalo_l",
		Detector:   "retinaface",
		RetryCount: 3,
	})

	// Attendance batcher
	var sink attendance.Sink
	if cfg.AttendanceURL != "" {
		sink = attendance.NewHTTPSink(attendance.HTTPSinkConfig{
			URL:        cfg.AttendanceURL,
			Secret:     cfg.AttendanceSecret,
			RetryCount: 3,
		})
	} else {
		logger.Warn("no attendance endpoint configured, records go to the log")
		sink = attendance.NewLogSink(logger)
	}

	batcher := attendance.NewBatcher(sink, logger, attendance.BatcherConfig{
		MaxBatchSize:  cfg.AttendanceBatchMaxSize,
		FlushInterval: cfg.AttendanceFlushInterval,
		MaxPending:    cfg.AttendanceMaxPending,
	}, attendance.Hooks{})
	batcher.Start()
	defer batcher.Close(true)

	// Identity resolver
	resolver := service.NewIdentityResolver(
		repository.NewFaceProfileRepository(pool),
		index,
		faceProvider,
		faceProvider,
		batcher,
		audit.NewSlogLogger(logger),
		logger,
		service.ResolverConfig{
			QualityThreshold:      cfg.QualityThreshold,
			DuplicateThreshold:    cfg.DuplicateThreshold,
			DuplicateGapThreshold: cfg.DuplicateGapThreshold,
			VerifyThreshold:       cfg.VerifyThreshold,
			LivenessEnabled:       cfg.LivenessEnabled,
			LivenessThreshold:     cfg.LivenessThreshold,
			IndexVersion:          cfg.IndexVersion,
			SoftDeleteRetention:   cfg.SoftDeleteRetention(),
			RebuildInterval:       cfg.IndexRebuildInterval,
		},
	)

	// Warm the in-memory index from storage before serving traffic
	if cfg.VectorBackend == "memory" {
		if _, err := resolver.Reindex(ctx, true); err != nil {
			return fmt.Errorf("failed to warm vector index: %w", err)
		}
	}

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Resolver: resolver,
		Batcher:  batcher,
		DB:       pool,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}

func newVectorIndex(cfg *config.Config, pool *pgxpool.Pool) (vector.Index, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		return vector.NewPostgresIndex(pool), nil
	case "memory":
		return vector.NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.VectorBackend)
	}
}
