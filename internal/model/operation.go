// internal/model/operation.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationStatus represents the outcome of a printer operation
type OperationStatus string

const (
	OperationStatusSuccess OperationStatus = "SUCCESS"
	OperationStatusFailed  OperationStatus = "FAILED"
)

// OperationRecord is one completed printer operation of a session
type OperationRecord struct {
	ID           uuid.UUID       `json:"id"`
	SessionID    string          `json:"session_id"`
	Operation    string          `json:"operation"`
	Status       OperationStatus `json:"status"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	BytesSent    int             `json:"bytes_sent"`
	DurationMs   int64           `json:"duration_ms"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// IsFailed checks if the operation failed
func (r *OperationRecord) IsFailed() bool {
	return r.Status == OperationStatusFailed
}
