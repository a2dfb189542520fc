package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"promptforge/internal/types"
)

func TestUsageLogRepo_Record_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageLogRepo(db)

	entry := &types.UsageLogEntry{
		ID:       "ulog_abc",
		UserID:   "user_1",
		Feature:  types.FeaturePromptCopy,
		Metadata: map[string]any{"prompt_id": "prompt_1"},
	}

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			passed := args.Get(2).([]any)
			assert.Equal(t, "ulog_abc", passed[0])
			assert.Equal(t, "user_1", passed[1])
			assert.Equal(t, "prompt_copy", passed[2])
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Record(context.Background(), entry)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestUsageLogRepo_Record_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageLogRepo(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Record(context.Background(), &types.UsageLogEntry{ID: "ulog_abc"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestUsageLogRepo_Recent_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageLogRepo(db)

	now := time.Now().UTC()
	rows := newMockRows([][]any{
		{"ulog_2", "user_1", "growth_content", map[string]any{"topic": "prompting"}, now},
		{"ulog_1", "user_1", "prompt_copy", map[string]any{"prompt_id": "prompt_1"}, now.Add(-time.Hour)},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			passed := args.Get(2).([]any)
			assert.Equal(t, "user_1", passed[0])
			assert.Equal(t, 20, passed[1])
		}).
		Return(rows, nil)

	entries, err := repo.Recent(context.Background(), "user_1", 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.FeatureGrowthContent, entries[0].Feature)
	assert.Equal(t, "prompting", entries[0].Metadata["topic"])
	assert.Equal(t, types.FeaturePromptCopy, entries[1].Feature)
}

func TestUsageLogRepo_Recent_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageLogRepo(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows([][]any{}), nil)

	entries, err := repo.Recent(context.Background(), "user_1", 20)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
