package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"promptforge/internal/config"
	"promptforge/internal/core"
	"promptforge/internal/types"
)

// setTestEnv sets the minimal environment variables required by
// config.LoadConfig for a local environment. It uses t.Setenv to ensure
// cleanup after the test.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("DASHBOARD_URL", "http://localhost:3000")
	t.Setenv("DATABASE_URL", "postgres://pf:pf@localhost:5432/promptforge")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_dummy")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_dummy")
	t.Setenv("STRIPE_PRO_PRICE_ID", "price_dummy")
	t.Setenv("GROWTH_PROVIDER_URL", "http://localhost:9090")
	t.Setenv("GROWTH_PROVIDER_API_KEY", "gk_dummy")
}

// noopAuthenticator lets infrastructure-route tests pass the auth middleware.
type noopAuthenticator struct{}

func (a *noopAuthenticator) ResolveToken(_ context.Context, _ string) (*types.Actor, error) {
	return &types.Actor{UserID: "user_test", Plan: types.PlanFree}, nil
}

// buildTestServer creates a minimal server for health endpoint tests. No
// database or domain handlers are wired.
func buildTestServer(t *testing.T) *core.Server {
	t.Helper()
	setTestEnv(t)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Authenticator = &noopAuthenticator{}

	srv.MountRoutes()
	return srv
}

// TestHealthEndpoint verifies that a wired server responds with 200 on
// GET /health when no probes are registered.
func TestHealthEndpoint(t *testing.T) {
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health: got status %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if status, ok := resp["status"]; !ok || status != "healthy" {
		t.Errorf("GET /health: got status=%v, want 'healthy'", status)
	}
}

type pingErr struct{}

func (pingErr) Ping(_ context.Context) error { return context.DeadlineExceeded }

// TestHealthEndpoint_FailingProbe verifies that a failing database probe
// flips the endpoint to 503.
func TestHealthEndpoint_FailingProbe(t *testing.T) {
	srv := buildTestServer(t)
	srv.HealthProbes = append(srv.HealthProbes, &databaseProbe{pool: pingErr{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health: got status %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestNewLogger verifies that the logger factory handles various log levels.
func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(tt.level)
			if logger == nil {
				t.Fatalf("newLogger(%q) returned nil", tt.level)
			}
			if !logger.Enabled(context.Background(), tt.enabled) {
				t.Errorf("newLogger(%q): expected level %v to be enabled", tt.level, tt.enabled)
			}
		})
	}
}
