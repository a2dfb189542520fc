// Package core provides the API chassis for the PromptForge platform.
// It creates a chi router and enforces cross-cutting concerns -- recovery,
// logging, metrics, throttling, and authentication -- before requests reach
// domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"promptforge/internal/config"
	"promptforge/internal/ratelimit"
	"promptforge/internal/types"
)

// Server encapsulates all dependencies for the PromptForge API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   *Metrics

	// Authenticator resolves bearer tokens to Actors; injected for testability.
	Authenticator Authenticator

	// APILimiter throttles all inbound traffic per client IP. When nil
	// (e.g. in handler unit tests) the traffic middleware passes through.
	APILimiter ratelimit.Limiter

	// V1RouteRegistrars holds handler route hooks mounted under /v1.
	// Populated by the application entry point to avoid import cycles
	// between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// HealthProbes are checked by the public health endpoint.
	HealthProbes []HealthProbe

	// Internal router
	router *chi.Mux
}

// Authenticator resolves a bearer token to the acting user.
type Authenticator interface {
	// ResolveToken returns the Actor for a valid session token, or an
	// AppError with an auth_* code otherwise.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server-owned resources:
// the rate limiter sweep is halted and its state cleared.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if s.APILimiter != nil {
		s.APILimiter.Stop()
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
