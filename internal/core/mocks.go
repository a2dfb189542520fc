package core

import (
	"context"
	"sync"

	"promptforge/internal/ratelimit"
	"promptforge/internal/types"
)

// --- MockAuthenticator ---

// MockAuthenticator implements the Authenticator interface for testing.
// It allows injecting a predefined Actor for a given token, or returning
// a fixed error to simulate authentication failures.
//
// Usage:
//
//	mock := &MockAuthenticator{
//	    Actor: &types.Actor{UserID: "user_test123", Plan: types.PlanFree},
//	}
//	actor, err := mock.ResolveToken(ctx, "sess_abc123")
//
// To simulate an error:
//
//	mock := &MockAuthenticator{
//	    Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil),
//	}
type MockAuthenticator struct {
	// Actor is the predefined Actor returned on successful token resolution.
	// If nil and Err is also nil, ResolveToken returns (nil, nil).
	Actor *types.Actor

	// Err is the error returned by ResolveToken. When set, Actor is ignored.
	Err error

	// ResolveTokenFunc is an optional function that overrides the default
	// behavior. When set, it takes precedence over Actor and Err.
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	// mu protects Calls for concurrent access.
	mu sync.Mutex

	// Calls records every token passed to ResolveToken for assertion purposes.
	Calls []string
}

// ResolveToken implements the Authenticator interface.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

// --- MockLimiter ---

// MockLimiter implements ratelimit.Limiter for testing the traffic
// middleware without real windows. Results are returned in order; when the
// queue is exhausted the limiter allows everything.
type MockLimiter struct {
	mu      sync.Mutex
	Results []ratelimit.Result
	Keys    []string
	Stopped bool
}

// Check implements ratelimit.Limiter.
func (m *MockLimiter) Check(key string) ratelimit.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keys = append(m.Keys, key)
	if len(m.Results) == 0 {
		return ratelimit.Result{Allowed: true, Remaining: 1}
	}
	res := m.Results[0]
	m.Results = m.Results[1:]
	return res
}

// Name implements ratelimit.Limiter.
func (m *MockLimiter) Name() string {
	return "mock"
}

// Stop implements ratelimit.Limiter.
func (m *MockLimiter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped = true
}
