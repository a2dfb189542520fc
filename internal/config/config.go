// Package config defines the global configuration structure for the
// PromptForge platform. Configuration is loaded once at process startup and
// is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration: values come from the OS environment,
// optionally seeded from a .env file in development.
//
// Any missing required value or invalid format fails the process immediately
// on startup (fail fast).
package config

import (
	"time"

	"promptforge/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the PromptForge platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"promptforge-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Billing   BillingConfig
	Growth    GrowthConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public dashboard URL for billing redirects (no trailing slash).
	DashboardURL string `envconfig:"DASHBOARD_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RateLimitConfig holds the per-instance tuning for the named fixed-window
// limiters. The api limiter throttles all inbound traffic per client IP; the
// ai limiter additionally gates AI-cost-bearing endpoints with a stricter
// budget. Limits here are per process instance, not global.
type RateLimitConfig struct {
	APIWindow      time.Duration `envconfig:"RATE_LIMIT_API_WINDOW" default:"1m"`
	APIMaxRequests int           `envconfig:"RATE_LIMIT_API_MAX" default:"120" validate:"min=1"`
	AIWindow       time.Duration `envconfig:"RATE_LIMIT_AI_WINDOW" default:"1m"`
	AIMaxRequests  int           `envconfig:"RATE_LIMIT_AI_MAX" default:"10" validate:"min=1"`
	SweepInterval  time.Duration `envconfig:"RATE_LIMIT_SWEEP_INTERVAL" default:"1m"`
}

// AuthConfig holds session lifetime and password hashing parameters.
type AuthConfig struct {
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"168h"` // 7 days
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"12" validate:"min=10,max=16"`
}

// BillingConfig holds Stripe payment integration credentials and keys.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	ProPriceID          string       `envconfig:"STRIPE_PRO_PRICE_ID" validate:"required"`
}

// GrowthConfig holds the AI text provider used for growth content.
type GrowthConfig struct {
	ProviderURL   string        `envconfig:"GROWTH_PROVIDER_URL" validate:"required,url"`
	APIKey        SecretString  `envconfig:"GROWTH_PROVIDER_API_KEY" validate:"required"`
	Model         string        `envconfig:"GROWTH_MODEL" default:"gpt-4o-mini"`
	FallbackModel string        `envconfig:"GROWTH_FALLBACK_MODEL" default:"gpt-3.5-turbo"`
	Timeout       time.Duration `envconfig:"GROWTH_TIMEOUT" default:"30s"`
}
