// Package billing provides plan management and billing domain logic.
package billing

import "promptforge/internal/types"

// PlanRegistry defines the authoritative daily limits for each tier.
// This is the single source of truth for what each plan allows.
type PlanRegistry interface {
	// GetLimits returns the metered-feature limits for the given plan tier.
	// For unknown tiers, returns the most restrictive (Free) limits
	// to fail safely.
	GetLimits(tier types.PlanTier) types.FeatureLimits
}

// staticPlanRegistry is a compile-time plan registry backed by an in-memory map.
// It implements PlanRegistry and is the standard implementation for production use.
type staticPlanRegistry struct {
	limits map[types.PlanTier]types.FeatureLimits
}

// planDefaults defines the hardcoded plan limits:
//
//	| Plan | Prompt copies/day | Growth generations/day |
//	|------|-------------------|------------------------|
//	| Free | 10                | 3                      |
//	| Pro  | 0 (unlimited)     | 0 (unlimited)          |
//
// Pro uses 0 to represent "unlimited" -- enforcement code must treat 0 as no
// limit. The numbers are product defaults, not invariants; ops may override
// them by swapping the registry implementation.
var planDefaults = map[types.PlanTier]types.FeatureLimits{
	types.PlanFree: {
		DailyPromptCopies:     10,
		DailyGrowthGeneration: 3,
	},
	types.PlanPro: {
		DailyPromptCopies:     0, // Unlimited -- enforcement treats 0 as no limit
		DailyGrowthGeneration: 0, // Unlimited -- enforcement treats 0 as no limit
	},
}

// freeLimits is cached to avoid map lookups on the fallback path.
var freeLimits = planDefaults[types.PlanFree]

// NewStaticPlanRegistry returns a PlanRegistry backed by the hardcoded plan
// limits. This is the standard production implementation; no database or
// external service is required.
func NewStaticPlanRegistry() PlanRegistry {
	// Copy the defaults into a new map so callers cannot mutate the package-level variable.
	m := make(map[types.PlanTier]types.FeatureLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{limits: m}
}

// GetLimits returns the metered-feature limits for the given plan tier.
// If the tier is unknown, it returns the Free tier limits as a safe default.
func (r *staticPlanRegistry) GetLimits(tier types.PlanTier) types.FeatureLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return freeLimits
}
