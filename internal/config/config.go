package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Vector index
	VectorBackend      string `envconfig:"VECTOR_BACKEND" default:"pgvector"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"512"`

	// Embedding provider
	InsightURL     string        `envconfig:"INSIGHT_URL" default:"http://localhost:5005"`
	InsightTimeout time.Duration `envconfig:"INSIGHT_TIMEOUT" default:"30s"`

	// Decision thresholds
	QualityThreshold      float64 `envconfig:"QUALITY_THRESHOLD" default:"0.5"`
	DuplicateThreshold    float64 `envconfig:"DUPLICATE_THRESHOLD" default:"0.95"`
	DuplicateGapThreshold float64 `envconfig:"DUPLICATE_GAP_THRESHOLD" default:"0.08"`
	VerifyThreshold       float64 `envconfig:"VERIFY_THRESHOLD" default:"0.80"`

	// Liveness
	LivenessEnabled   bool    `envconfig:"LIVENESS_ENABLED" default:"true"`
	LivenessThreshold float64 `envconfig:"LIVENESS_THRESHOLD" default:"0.7"`

	// Attendance batching
	AttendanceURL           string        `envconfig:"ATTENDANCE_URL" default:""`
	AttendanceSecret        string        `envconfig:"ATTENDANCE_SECRET" default:""`
	AttendanceBatchMaxSize  int           `envconfig:"ATTENDANCE_BATCH_MAX_SIZE" default:"10"`
	AttendanceFlushInterval time.Duration `envconfig:"ATTENDANCE_BATCH_FLUSH_INTERVAL" default:"3s"`
	AttendanceMaxPending    int           `envconfig:"ATTENDANCE_BATCH_MAX_PENDING" default:"100"`

	// Retention and reindexing
	SoftDeleteRetentionDays int           `envconfig:"SOFT_DELETE_RETENTION_DAYS" default:"30"`
	IndexRebuildInterval    time.Duration `envconfig:"VECTOR_INDEX_REBUILD_INTERVAL" default:"1h"`
	IndexVersion            int           `envconfig:"VECTOR_INDEX_VERSION" default:"1"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// SoftDeleteRetention returns the retention window as a duration.
func (c *Config) SoftDeleteRetention() time.Duration {
	return time.Duration(c.SoftDeleteRetentionDays) * 24 * time.Hour
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
