// Package auth implements account signup, credential login, and session
// resolution for the PromptForge API. Sessions are opaque server-side bearer
// tokens stored in Postgres; the auth middleware resolves them to an Actor on
// every authenticated request.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"promptforge/internal/types"
)

// UserRepo defines the data access methods the auth service needs for user
// operations. Satisfied by db.UserRepository.
type UserRepo interface {
	Create(ctx context.Context, user *types.User) error
	GetByID(ctx context.Context, id string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

// SessionRepo defines the data access methods the auth service needs for
// session operations. Satisfied by db.SessionRepository.
type SessionRepo interface {
	Create(ctx context.Context, session *types.Session) error
	GetByID(ctx context.Context, id string) (*types.Session, error)
	Delete(ctx context.Context, id string) error
}

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// bcryptHasher is the production implementation of PasswordHasher.
type bcryptHasher struct {
	cost int
}

func (b *bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b *bcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Service implements signup, login, logout, and token resolution. It is the
// production implementation of core.Authenticator.
type Service struct {
	users      UserRepo
	sessions   SessionRepo
	hasher     PasswordHasher
	tokenGen   TokenGenerator
	sessionTTL time.Duration
	clock      types.Clock
	logger     *slog.Logger
}

// ServiceConfig holds the dependencies for creating an auth Service.
type ServiceConfig struct {
	Users      UserRepo
	Sessions   SessionRepo
	Hasher     PasswordHasher
	TokenGen   TokenGenerator
	SessionTTL time.Duration
	BcryptCost int
	Clock      types.Clock
	Logger     *slog.Logger
}

// NewService creates an auth Service. Nil optional dependencies fall back to
// production defaults: bcrypt hashing at the configured cost, crypto/rand
// tokens, the real clock, and slog.Default().
func NewService(cfg ServiceConfig) *Service {
	hasher := cfg.Hasher
	if hasher == nil {
		cost := cfg.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		hasher = &bcryptHasher{cost: cost}
	}
	tokenGen := cfg.TokenGen
	if tokenGen == nil {
		tokenGen = NewCryptoTokenGenerator()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &Service{
		users:      cfg.Users,
		sessions:   cfg.Sessions,
		hasher:     hasher,
		tokenGen:   tokenGen,
		sessionTTL: ttl,
		clock:      clock,
		logger:     logger,
	}
}

// Signup creates an account on the free plan and opens a session for it.
// Email uniqueness is enforced by the database; a duplicate surfaces as
// ErrCodeConflictEmail.
func (s *Service) Signup(ctx context.Context, email, displayName, password string) (*types.User, *types.Session, error) {
	passwordHash, err := s.hasher.GenerateFromPassword(password)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	user := &types.User{
		ID:           "user_" + uuid.NewString(),
		Email:        CanonicalizeEmail(email),
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Plan:         types.PlanFree,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user signed up",
		"user_id", user.ID,
		"plan", user.Plan,
	)

	return user, session, nil
}

// Login verifies credentials and opens a session. User-not-found and
// wrong-password both return the same generic invalid-credentials error so
// account existence cannot be probed.
func (s *Service) Login(ctx context.Context, email, password string) (*types.User, *types.Session, error) {
	user, err := s.users.GetByEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeNotFoundUser {
			return nil, nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
		}
		return nil, nil, err
	}

	if err := s.hasher.CompareHashAndPassword(user.PasswordHash, password); err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		"user_id", user.ID,
	)

	return user, session, nil
}

// Logout deletes the session. Unknown tokens are not an error; logout is
// idempotent.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session invalidated")
	return nil
}

// ResolveToken resolves a bearer token to the acting user. It implements
// core.Authenticator: the session is looked up first, then the owning user,
// and the Actor carries the user's current plan so downstream enforcement
// always sees plan changes immediately.
func (s *Service) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	session, err := s.sessions.GetByID(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeNotFoundUser {
			// The account was deleted out from under the session.
			return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session expired or not found", nil)
		}
		return nil, err
	}

	return &types.Actor{
		UserID: user.ID,
		Plan:   user.Plan,
		Email:  user.Email,
	}, nil
}

// createSession generates a fresh token and persists the session row.
func (s *Service) createSession(ctx context.Context, userID string) (*types.Session, error) {
	sessionID, err := s.tokenGen.GenerateSessionID()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CanonicalizeEmail normalizes email addresses for consistent DB lookups.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
