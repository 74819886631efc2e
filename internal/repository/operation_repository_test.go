package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-printer/internal/model"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func record(session, op string, status model.OperationStatus, at time.Duration) *model.OperationRecord {
	r := &model.OperationRecord{
		SessionID:   session,
		Operation:   op,
		Status:      status,
		BytesSent:   100,
		DurationMs:  20,
		CompletedAt: base.Add(at),
	}
	if status == model.OperationStatusFailed {
		r.ErrorCode = "WriteFailure"
		r.BytesSent = 0
		r.DurationMs = 40
	}
	return r
}

func TestCreateAssignsIDAndTime(t *testing.T) {
	repo := NewOperationRepository(10, zap.NewNop())
	r := &model.OperationRecord{SessionID: "s1", Operation: "print", Status: model.OperationStatusSuccess}

	require.NoError(t, repo.Create(context.Background(), r))
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.False(t, r.CompletedAt.IsZero())

	got, err := repo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "print", got.Operation)

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestListBySessionNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewOperationRepository(10, zap.NewNop())

	require.NoError(t, repo.Create(ctx, record("s1", "initialize", model.OperationStatusSuccess, 0)))
	require.NoError(t, repo.Create(ctx, record("s2", "initialize", model.OperationStatusSuccess, time.Second)))
	require.NoError(t, repo.Create(ctx, record("s1", "print", model.OperationStatusSuccess, 2*time.Second)))
	require.NoError(t, repo.Create(ctx, record("s1", "open_drawer", model.OperationStatusFailed, 3*time.Second)))

	all, err := repo.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "open_drawer", all[0].Operation)
	assert.Equal(t, "initialize", all[2].Operation)

	limited, err := repo.ListBySession(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := repo.ListBySession(ctx, "missing", 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCreateEvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo := NewOperationRepository(2, zap.NewNop())

	first := record("s1", "initialize", model.OperationStatusSuccess, 0)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, record("s1", "print", model.OperationStatusSuccess, time.Second)))
	require.NoError(t, repo.Create(ctx, record("s1", "disconnect", model.OperationStatusSuccess, 2*time.Second)))

	ops, err := repo.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "disconnect", ops[0].Operation)
	assert.Equal(t, "print", ops[1].Operation)

	_, err = repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestGetOperationStats(t *testing.T) {
	ctx := context.Background()
	repo := NewOperationRepository(10, zap.NewNop())

	require.NoError(t, repo.Create(ctx, record("s1", "print", model.OperationStatusSuccess, 0)))
	require.NoError(t, repo.Create(ctx, record("s1", "print", model.OperationStatusFailed, time.Minute)))
	require.NoError(t, repo.Create(ctx, record("s2", "open_drawer", model.OperationStatusSuccess, 2*time.Minute)))

	stats, err := repo.GetOperationStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOperations)
	assert.Equal(t, 2, stats.SuccessfulOps)
	assert.Equal(t, 1, stats.FailedOps)
	assert.Equal(t, int64(200), stats.BytesSent)
	assert.Equal(t, int64(26), stats.AvgDurationMs)
	assert.Equal(t, 2, stats.ByOperation["print"])
	assert.Equal(t, 1, stats.ByErrorCode["WriteFailure"])

	stats, err = repo.GetOperationStats(ctx, &OperationStatsFilter{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOperations)

	start := base.Add(30 * time.Second)
	end := base.Add(90 * time.Second)
	stats, err = repo.GetOperationStats(ctx, &OperationStatsFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOperations)
	assert.Equal(t, 1, stats.FailedOps)
}

func TestDeleteOldOperations(t *testing.T) {
	ctx := context.Background()
	repo := NewOperationRepository(10, zap.NewNop())

	require.NoError(t, repo.Create(ctx, record("s1", "initialize", model.OperationStatusSuccess, 0)))
	require.NoError(t, repo.Create(ctx, record("s1", "print", model.OperationStatusSuccess, time.Hour)))

	deleted, err := repo.DeleteOldOperations(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	ops, err := repo.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "print", ops[0].Operation)
}
