// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pos-printer/internal/model"
)

// ErrOperationNotFound is returned when no record has the requested id
var ErrOperationNotFound = errors.New("repository: operation not found")

// OperationRepository defines operation log access
type OperationRepository interface {
	Create(ctx context.Context, record *model.OperationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.OperationRecord, error)

	// ListBySession returns the newest records of a session first
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.OperationRecord, error)

	GetOperationStats(ctx context.Context, filter *OperationStatsFilter) (*OperationStats, error)

	// Cleanup
	DeleteOldOperations(ctx context.Context, olderThan time.Time) (int64, error)
}

// OperationStatsFilter narrows statistics to a session and time window
type OperationStatsFilter struct {
	SessionID string     `json:"session_id,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// OperationStats represents operation statistics
type OperationStats struct {
	TotalOperations int                           `json:"total_operations"`
	SuccessfulOps   int                           `json:"successful_operations"`
	FailedOps       int                           `json:"failed_operations"`
	BytesSent       int64                         `json:"bytes_sent"`
	AvgDurationMs   int64                         `json:"average_duration_ms"`
	ByOperation     map[string]int                `json:"by_operation"`
	ByStatus        map[model.OperationStatus]int `json:"by_status"`
	ByErrorCode     map[string]int                `json:"by_error_code"`
}
