// internal/repository/operation_repository.go
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-printer/internal/model"
)

// DefaultMaxOperations bounds the log when no size is configured
const DefaultMaxOperations = 1000

// operationRepository keeps the operation log in memory, oldest first.
// Once full, each new record evicts the oldest one.
type operationRepository struct {
	mu         sync.RWMutex
	records    []*model.OperationRecord
	maxRecords int
	logger     *zap.Logger
}

// NewOperationRepository creates an in-memory operation log holding at most
// maxRecords entries
func NewOperationRepository(maxRecords int, logger *zap.Logger) OperationRepository {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxOperations
	}
	return &operationRepository{
		records:    make([]*model.OperationRecord, 0, maxRecords),
		maxRecords: maxRecords,
		logger:     logger,
	}
}

// Create appends a record, assigning an id and completion time if unset
func (r *operationRepository) Create(ctx context.Context, record *model.OperationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) >= r.maxRecords {
		evicted := len(r.records) - r.maxRecords + 1
		r.records = append(r.records[:0], r.records[evicted:]...)
	}
	r.records = append(r.records, record)

	r.logger.Debug("Operation recorded",
		zap.String("operation_id", record.ID.String()),
		zap.String("session_id", record.SessionID),
		zap.String("operation", record.Operation),
		zap.String("status", string(record.Status)),
	)
	return nil
}

// GetByID retrieves a record by id
func (r *operationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OperationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.ID == id {
			copied := *record
			return &copied, nil
		}
	}
	return nil, ErrOperationNotFound
}

// ListBySession returns up to limit records of a session, newest first. A
// non-positive limit returns all of them.
func (r *operationRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.OperationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	operations := []*model.OperationRecord{}
	for i := len(r.records) - 1; i >= 0; i-- {
		if limit > 0 && len(operations) >= limit {
			break
		}
		if r.records[i].SessionID != sessionID {
			continue
		}
		copied := *r.records[i]
		operations = append(operations, &copied)
	}
	return operations, nil
}

// GetOperationStats aggregates the records matching filter
func (r *operationRepository) GetOperationStats(ctx context.Context, filter *OperationStatsFilter) (*OperationStats, error) {
	if filter == nil {
		filter = &OperationStatsFilter{}
	}

	stats := &OperationStats{
		ByOperation: make(map[string]int),
		ByStatus:    make(map[model.OperationStatus]int),
		ByErrorCode: make(map[string]int),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var totalDuration int64
	for _, record := range r.records {
		if filter.SessionID != "" && record.SessionID != filter.SessionID {
			continue
		}
		if filter.StartDate != nil && record.CompletedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && record.CompletedAt.After(*filter.EndDate) {
			continue
		}

		stats.TotalOperations++
		stats.ByOperation[record.Operation]++
		stats.ByStatus[record.Status]++
		if record.IsFailed() {
			stats.FailedOps++
			stats.ByErrorCode[record.ErrorCode]++
		} else {
			stats.SuccessfulOps++
		}
		stats.BytesSent += int64(record.BytesSent)
		totalDuration += record.DurationMs
	}

	if stats.TotalOperations > 0 {
		stats.AvgDurationMs = totalDuration / int64(stats.TotalOperations)
	}
	return stats, nil
}

// DeleteOldOperations removes records completed before olderThan
func (r *operationRepository) DeleteOldOperations(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	for _, record := range r.records {
		if !record.CompletedAt.Before(olderThan) {
			kept = append(kept, record)
		}
	}
	deleted := int64(len(r.records) - len(kept))
	for i := len(kept); i < len(r.records); i++ {
		r.records[i] = nil
	}
	r.records = kept
	return deleted, nil
}
