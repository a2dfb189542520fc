// Package handlers contains the HTTP handler implementations for the
// PromptForge API. Each handler declares the narrow service interface it
// needs, receives it by injection, and registers its routes on the /v1
// router via RegisterRoutes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"promptforge/internal/core"
	"promptforge/internal/types"
)

// AuthService defines the service contract for the auth handler.
type AuthService interface {
	Signup(ctx context.Context, email, displayName, password string) (*types.User, *types.Session, error)
	Login(ctx context.Context, email, password string) (*types.User, *types.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler maps the signup, login, and logout endpoints to the auth
// service.
type AuthHandler struct {
	service   AuthService
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the provided dependencies.
func NewAuthHandler(svc AuthService, val *core.Validator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the auth endpoints onto the mux. Signup and login
// are public paths; logout requires the bearer token it invalidates.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.HandleSignup)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
}

type signupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,min=10,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// sessionResponse is returned by signup and login. The token is the opaque
// session ID the client sends back as a bearer credential.
type sessionResponse struct {
	User      *types.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
}

// HandleSignup handles POST /v1/auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, session, err := h.service.Signup(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: sessionResponse{
		User:      user,
		Token:     session.ID,
		ExpiresAt: session.ExpiresAt.UTC().Format(http.TimeFormat),
	}})
}

// HandleLogin handles POST /v1/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sessionResponse{
		User:      user,
		Token:     session.ID,
		ExpiresAt: session.ExpiresAt.UTC().Format(http.TimeFormat),
	}})
}

// HandleLogout handles POST /v1/auth/logout. The session invalidated is the
// one presented in the Authorization header.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Bearer token is required", nil))
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "logged_out"}})
}

// bearerToken extracts the raw bearer credential from the request, or ""
// when absent.
func bearerToken(r *http.Request) string {
	const prefix = "bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
