// internal/service/operation_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-printer/internal/model"
	"pos-printer/internal/repository"
	"pos-printer/internal/utils"
	"pos-printer/pkg/driver"
)

// OperationService keeps the log of completed printer operations. Sessions
// publish to it directly and it never touches a printer.
type OperationService struct {
	operationRepo repository.OperationRepository
	retention     time.Duration
	logger        *utils.ServiceLogger
	now           func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOperationService creates a new operation service instance. A zero
// retention keeps records until the log is full.
func NewOperationService(operationRepo repository.OperationRepository, retention time.Duration, logger *zap.Logger) *OperationService {
	return &OperationService{
		operationRepo: operationRepo,
		retention:     retention,
		logger:        utils.NewServiceLogger(logger, "operation-service"),
		now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Publish records operation_completed events as they happen
func (s *OperationService) Publish(event SessionEvent) {
	if err := s.Record(context.Background(), event); err != nil {
		s.logger.Warn("Failed to record operation", zap.String("session_id", event.SessionID), zap.Error(err))
	}
}

// Start prunes expired records in the background until Stop
func (s *OperationService) Start() {
	if s.retention <= 0 {
		return
	}
	interval := s.retention / 10
	if interval < time.Minute {
		interval = time.Minute
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Prune(context.Background()); err != nil {
					s.logger.Error("Failed to prune operation log", zap.Error(err))
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends background pruning
func (s *OperationService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Record stores an operation_completed event. Other event types are ignored.
func (s *OperationService) Record(ctx context.Context, event SessionEvent) error {
	if event.Type != EventOperationCompleted {
		return nil
	}

	operation, _ := event.Data["operation"].(string)
	result, ok := event.Data["result"].(*driver.Result)
	if operation == "" || !ok || result == nil {
		return fmt.Errorf("malformed operation event for session %s", event.SessionID)
	}

	record := &model.OperationRecord{
		ID:          uuid.New(),
		SessionID:   event.SessionID,
		Operation:   operation,
		Status:      model.OperationStatusSuccess,
		BytesSent:   result.BytesSent,
		CompletedAt: result.Timestamp,
	}
	if d, err := time.ParseDuration(result.Duration); err == nil {
		record.DurationMs = d.Milliseconds()
	}
	if !result.Success {
		record.Status = model.OperationStatusFailed
		record.ErrorCode = result.ErrorCode
		record.ErrorMessage = result.ErrorMessage
	}

	return s.operationRepo.Create(ctx, record)
}

// ListSessionOperations returns the latest operations of a session
func (s *OperationService) ListSessionOperations(ctx context.Context, sessionID string, limit int) ([]*model.OperationRecord, error) {
	operations, err := s.operationRepo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return operations, nil
}

// GetOperation returns a single operation record
func (s *OperationService) GetOperation(ctx context.Context, id uuid.UUID) (*model.OperationRecord, error) {
	return s.operationRepo.GetByID(ctx, id)
}

// GetStats aggregates the log, optionally for one session and window
func (s *OperationService) GetStats(ctx context.Context, filter *repository.OperationStatsFilter) (*repository.OperationStats, error) {
	stats, err := s.operationRepo.GetOperationStats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation stats: %w", err)
	}
	return stats, nil
}

// Prune drops records older than the retention window
func (s *OperationService) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	opLogger := utils.NewOperationLogger(s.logger.Logger, "prune_operations", uuid.NewString())
	opLogger.Start(zap.Duration("retention", s.retention))

	deleted, err := s.operationRepo.DeleteOldOperations(ctx, s.now().Add(-s.retention))
	if err != nil {
		opLogger.Error(err)
		return 0, err
	}

	opLogger.Success(zap.Int64("deleted", deleted))
	return deleted, nil
}
