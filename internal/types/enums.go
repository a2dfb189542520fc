package types

// PlanTier identifies the subscription plan for a user account.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// ValidPlanTiers lists every recognized plan tier. IsValid checks against it.
var ValidPlanTiers = []PlanTier{PlanFree, PlanPro}

// IsValid reports whether the tier is one of the defined plan tiers.
// Unknown tiers are rejected at the API boundary; enforcement code that
// encounters an unknown tier anyway falls back to free limits (fail closed).
func (p PlanTier) IsValid() bool {
	for _, t := range ValidPlanTiers {
		if p == t {
			return true
		}
	}
	return false
}

// FeatureType identifies a metered feature whose daily usage is tracked and
// capped per user per plan.
type FeatureType string

const (
	// FeaturePromptCopy is charged when a user copies a shared prompt into
	// their own library.
	FeaturePromptCopy FeatureType = "prompt_copy"

	// FeatureGrowthContent is charged when a user requests AI-generated
	// growth content (learning material, challenge ideas).
	FeatureGrowthContent FeatureType = "growth_content"
)

// MeteredFeatures lists every feature tracked by the quota enforcer, in the
// order counters are reported by the usage status endpoint.
var MeteredFeatures = []FeatureType{FeaturePromptCopy, FeatureGrowthContent}

// PromptVisibility controls who can see a shared prompt.
type PromptVisibility string

const (
	PromptPublic  PromptVisibility = "public"
	PromptPrivate PromptVisibility = "private"
)
