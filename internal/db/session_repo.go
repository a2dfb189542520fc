package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"promptforge/internal/types"
)

// SessionRepository provides data access for the sessions table. Sessions are
// opaque server-side bearer tokens; the token value is the row ID.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository backed by the given
// database connection (pool or transaction).
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session. The caller sets the ID (prefixed random
// token, e.g. "sess_...") and expiry.
func (r *SessionRepository) Create(ctx context.Context, s *types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		s.ID,
		s.UserID,
		s.ExpiresAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}
	return nil
}

// GetByID retrieves an unexpired session by token.
// Returns ErrCodeAuthSessionExpired when the session is absent or expired,
// so callers surface a uniform 401 without leaking which case occurred.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*types.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > NOW()`,
		id,
	)

	var s types.Session
	err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session expired or not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve session", err)
	}
	return &s, nil
}

// Delete removes a session (logout). Deleting an unknown token is not an
// error; logout is idempotent.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before the cutoff. Returns the
// number of rows removed. Called opportunistically at startup.
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
