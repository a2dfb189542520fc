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

// fakePgError carries a SQLSTATE the way *pgconn.PgError does.
type fakePgError struct {
	code string
}

func (e *fakePgError) Error() string    { return "pg error " + e.code }
func (e *fakePgError) SQLState() string { return e.code }

func TestUserRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	user := &types.User{
		ID:           "user_abc",
		Email:        "new@example.com",
		DisplayName:  "New User",
		PasswordHash: "$2a$10$hash",
		Plan:         types.PlanFree,
	}

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, &fakePgError{code: "23505"})

	err := repo.Create(context.Background(), &types.User{ID: "user_abc", Email: "dup@example.com"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConflictEmail, appErr.Code)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(context.Background(), &types.User{ID: "user_abc"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func userScanFn(id, email string, plan types.PlanTier, now time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*string) = email
		*dest[2].(*string) = "Display Name"
		*dest[3].(*string) = "$2a$10$hash"
		*dest[4].(*types.PlanTier) = plan
		*dest[5].(*time.Time) = now
		*dest[6].(*time.Time) = now
		*dest[7].(**time.Time) = nil
		return nil
	}
}

func TestUserRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: userScanFn("user_1", "u@example.com", types.PlanPro, now)})

	user, err := repo.GetByID(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)
	assert.Equal(t, "u@example.com", user.Email)
	assert.Equal(t, types.PlanPro, user.Plan)
	assert.Nil(t, user.DeletedAt)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	user, err := repo.GetByID(context.Background(), "user_missing")
	require.Error(t, err)
	assert.Nil(t, user)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func TestUserRepository_GetByEmail_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			passed := args.Get(2).([]any)
			assert.Equal(t, "u@example.com", passed[0])
		}).
		Return(&mockRow{scanFn: userScanFn("user_1", "u@example.com", types.PlanFree, now)})

	user, err := repo.GetByEmail(context.Background(), "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)
}

func TestUserRepository_UpdatePlan_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.UpdatePlan(context.Background(), "user_1", types.PlanPro)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestUserRepository_UpdatePlan_UnknownUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdatePlan(context.Background(), "user_missing", types.PlanPro)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func TestUserRepository_GetBillingInfo_NoCustomerYet(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(**string) = nil
			*dest[1].(*string) = "u@example.com"
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	customerID, email, err := repo.GetBillingInfo(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Empty(t, customerID)
	assert.Equal(t, "u@example.com", email)
}

func TestUserRepository_GetBillingInfo_StoredCustomer(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	stored := "cus_123"
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(**string) = &stored
			*dest[1].(*string) = "u@example.com"
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	customerID, _, err := repo.GetBillingInfo(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", customerID)
}

func TestUserRepository_UpdateStripeCustomerID_UnknownUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdateStripeCustomerID(context.Background(), "user_missing", "cus_123")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}
