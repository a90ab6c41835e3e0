package domain

import (
	"github.com/google/uuid"
)

// AttendanceRecord is the event handed to the attendance batcher after a
// confirmed verification. The batcher owns queued records exclusively until
// they leave the buffer.
type AttendanceRecord struct {
	TenantID           uuid.UUID `json:"tenant_id"`
	OwnerID            uuid.UUID `json:"owner_id"`
	DeviceID           string    `json:"device_id,omitempty"`
	RecordTime         int64     `json:"record_time"`
	VerificationMethod string    `json:"verification_method"`
	VerificationScore  float64   `json:"verification_score"`
	EvidenceURI        string    `json:"evidence_uri,omitempty"`
	Location           string    `json:"location,omitempty"`
}
