package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/facegate/facegate/internal/domain"
)

// Sink is the downstream attendance recorder. A batch is all-or-nothing:
// there is no partial-ack contract.
type Sink interface {
	Send(ctx context.Context, records []domain.AttendanceRecord) error
}

// HTTPSinkConfig holds the configuration for the HTTP attendance sink
type HTTPSinkConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	RetryCount int
}

// HTTPSink posts attendance batches to the attendance service, signing each
// payload so the receiver can verify origin.
type HTTPSink struct {
	httpClient *http.Client
	config     HTTPSinkConfig
}

func NewHTTPSink(config HTTPSinkConfig) *HTTPSink {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTTPSink{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

type batchPayload struct {
	Records []domain.AttendanceRecord `json:"records"`
}

func (s *HTTPSink) Send(ctx context.Context, records []domain.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	payload, err := json.Marshal(batchPayload{Records: records})
	if err != nil {
		return fmt.Errorf("marshal attendance batch: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		lastErr = s.post(ctx, payload)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return lastErr
}

func (s *HTTPSink) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.config.Secret != "" {
		req.Header.Set("X-Signature", Sign(s.config.Secret, payload))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send attendance batch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("attendance sink returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

var _ Sink = (*HTTPSink)(nil)

// LogSink writes batches to the log instead of a downstream service. Used in
// development when no attendance endpoint is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "attendance_sink")}
}

func (s *LogSink) Send(ctx context.Context, records []domain.AttendanceRecord) error {
	for _, record := range records {
		s.logger.Info("attendance record",
			slog.String("tenant_id", record.TenantID.String()),
			slog.String("owner_id", record.OwnerID.String()),
			slog.String("device_id", record.DeviceID),
			slog.Int64("record_time", record.RecordTime),
			slog.Float64("verification_score", record.VerificationScore),
		)
	}
	return nil
}

var _ Sink = (*LogSink)(nil)
