package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"promptforge/internal/types"
)

func TestPromptRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	prompt := &types.Prompt{
		ID:         "prompt_abc",
		AuthorID:   "user_1",
		Title:      "Code review checklist",
		Body:       "Review for correctness first.",
		Visibility: types.PromptPublic,
	}

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), prompt)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPromptRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "prompt_abc"
			*dest[1].(*string) = "user_1"
			*dest[2].(*string) = "Code review checklist"
			*dest[3].(*string) = "Review for correctness first."
			*dest[4].(*types.PromptVisibility) = types.PromptPrivate
			*dest[5].(*int) = 3
			*dest[6].(*time.Time) = now
			*dest[7].(*time.Time) = now
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	prompt, err := repo.GetByID(context.Background(), "prompt_abc")
	require.NoError(t, err)
	assert.Equal(t, "prompt_abc", prompt.ID)
	assert.Equal(t, types.PromptPrivate, prompt.Visibility)
	assert.Equal(t, 3, prompt.CopyCount)
}

func TestPromptRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	prompt, err := repo.GetByID(context.Background(), "prompt_missing")
	require.Error(t, err)
	assert.Nil(t, prompt)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPrompt, appErr.Code)
}

func TestPromptRepository_ListPublic_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	now := time.Now().UTC()
	rows := newMockRows([][]any{
		{"prompt_1", "user_1", "First", "body one", types.PromptPublic, 10, now, now},
		{"prompt_2", "user_2", "Second", "body two", types.PromptPublic, 0, now, now},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			passed := args.Get(2).([]any)
			assert.Equal(t, 50, passed[0])
		}).
		Return(rows, nil)

	prompts, err := repo.ListPublic(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, "prompt_1", prompts[0].ID)
	assert.Equal(t, 10, prompts[0].CopyCount)
	assert.Equal(t, "prompt_2", prompts[1].ID)
}

func TestPromptRepository_ListPublic_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows([][]any{}), nil)

	prompts, err := repo.ListPublic(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestPromptRepository_IncrementCopyCount_UnknownPrompt(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.IncrementCopyCount(context.Background(), "prompt_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPrompt, appErr.Code)
}

func TestPromptRepository_Delete_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			passed := args.Get(2).([]any)
			assert.Equal(t, "prompt_abc", passed[0])
			assert.Equal(t, "user_1", passed[1])
		}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	err := repo.Delete(context.Background(), "prompt_abc", "user_1")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPromptRepository_Delete_WrongAuthorIsNotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPromptRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(context.Background(), "prompt_abc", "user_2")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPrompt, appErr.Code)
}
