// Package types defines the shared domain model for the PromptForge platform:
// users and plan tiers, metered features and their daily counters, the usage
// audit log, and the prompt library entities. It carries no dependencies on
// storage or transport so every layer can import it.
package types

import "time"

// User is a platform account. Plan is mutated only by the explicit
// plan-change operation and never expires on its own.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	Plan         PlanTier   `json:"plan"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// FeatureLimits holds the per-feature daily caps derived from a plan tier.
// A value of 0 means unlimited; enforcement code must treat 0 as no limit.
// Computed on demand from the plan registry, never persisted.
type FeatureLimits struct {
	DailyPromptCopies     int `json:"daily_prompt_copies"`
	DailyGrowthGeneration int `json:"daily_growth_generations"`
}

// LimitFor returns the daily cap for the given feature (0 = unlimited).
// Unknown features are unlimited: only features the registry knows about
// are metered at all.
func (l FeatureLimits) LimitFor(feature FeatureType) int {
	switch feature {
	case FeaturePromptCopy:
		return l.DailyPromptCopies
	case FeatureGrowthContent:
		return l.DailyGrowthGeneration
	}
	return 0
}

// UsageLogEntry is one append-only metering audit record. Entries are never
// mutated or deleted by the enforcement path.
type UsageLogEntry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Feature   FeatureType    `json:"feature"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FeatureUsage is the display projection of one counter against its limit.
// Limit 0 renders as unlimited.
type FeatureUsage struct {
	Feature FeatureType `json:"feature"`
	Used    int         `json:"used"`
	Limit   int         `json:"limit"`
}

// PlanStatus is the read-only quota status returned by GET /v1/usage.
type PlanStatus struct {
	Plan      PlanTier        `json:"plan"`
	Features  []FeatureUsage  `json:"features"`
	RecentLog []UsageLogEntry `json:"recent_log"`
}

// Prompt is a shared prompt in the community library.
type Prompt struct {
	ID         string           `json:"id"`
	AuthorID   string           `json:"author_id"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	Visibility PromptVisibility `json:"visibility"`
	CopyCount  int              `json:"copy_count"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Session is a server-side bearer session resolved by the auth middleware.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// GrowthRequest describes one AI growth-content generation.
type GrowthRequest struct {
	Topic string `json:"topic"`
	Goal  string `json:"goal,omitempty"`
}

// GrowthContent is the generated material returned to the caller.
type GrowthContent struct {
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
