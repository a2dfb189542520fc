package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"promptforge/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `u.id, u.email, u.display_name, u.password_hash, u.plan,
	u.created_at, u.updated_at, u.deleted_at`

// scanUser scans a single user row into a types.User struct.
// The columns must match the order defined in userColumns.
func scanUser(row pgx.Row) (*types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Plan,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user record. The caller must set the ID (prefixed
// UUID, e.g. "user_...") and required fields before calling. New accounts
// always start on the free plan.
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, plan, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.Plan,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "an account with this email already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Excludes soft-deleted accounts.
// Returns ErrCodeNotFoundUser if no active user is found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.id = $1 AND u.deleted_at IS NULL`,
		id,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email address. Excludes soft-deleted accounts.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.email = $1 AND u.deleted_at IS NULL`,
		email,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return user, nil
}

// UpdatePlan sets the user's plan tier. The plan-change flow wraps this in a
// transaction together with DailyUsageRepo.ResetAll so the plan write and the
// counter reset land atomically.
func (r *UserRepository) UpdatePlan(ctx context.Context, userID string, plan types.PlanTier) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET plan = $1, updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		plan,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// GetBillingInfo returns the Stripe customer ID (empty if not yet created)
// and billing email for the given user.
func (r *UserRepository) GetBillingInfo(ctx context.Context, userID string) (stripeCustomerID string, email string, err error) {
	var customerID *string
	row := r.db.QueryRow(ctx,
		`SELECT stripe_customer_id, email
		 FROM users
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID,
	)
	if err := row.Scan(&customerID, &email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return "", "", types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve billing info", err)
	}
	if customerID != nil {
		stripeCustomerID = *customerID
	}
	return stripeCustomerID, email, nil
}

// UpdateStripeCustomerID records the Stripe customer created for the user.
func (r *UserRepository) UpdateStripeCustomerID(ctx context.Context, userID string, customerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $1, updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		customerID,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update stripe customer id", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres unique_violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
