package billing

import (
	"context"
	"log/slog"

	"promptforge/internal/external"
	"promptforge/internal/types"
)

// PlanChanger applies a plan change atomically with the counter reset.
// Implemented by db.PlanTxManager.
type PlanChanger interface {
	ChangePlan(ctx context.Context, userID string, plan types.PlanTier) error
}

// CheckoutClient creates Stripe checkout sessions for paid upgrades.
// Implemented by external.StripeClient.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, userID string, urls external.CheckoutURLs) (checkoutURL string, sessionID string, err error)
}

// PlanChange is the outcome of a plan-change request. Exactly one of the two
// shapes occurs: an immediate change (Plan set, CheckoutURL empty) or a
// pending paid upgrade (CheckoutURL set, plan unchanged until checkout
// completes).
type PlanChange struct {
	Plan        types.PlanTier `json:"plan"`
	CheckoutURL string         `json:"checkout_url,omitempty"`
}

// Service implements the plan-change flow: free-tier moves apply
// immediately, pro upgrades go through Stripe checkout and are applied when
// the completed checkout comes back on the webhook.
type Service struct {
	plans        PlanChanger
	checkout     CheckoutClient
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates the billing Service. dashboardURL is the public base
// URL checkout redirects return to.
func NewService(plans PlanChanger, checkout CheckoutClient, dashboardURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		plans:        plans,
		checkout:     checkout,
		dashboardURL: dashboardURL,
		logger:       logger,
	}
}

// RequestPlanChange moves the user toward the target plan.
//
// Same-plan requests are a no-op. A downgrade to free applies immediately:
// the plan write and the counter reset commit together, so the stricter
// limits take effect against fresh counters. An upgrade to pro returns a
// checkout URL; the plan flips only when Stripe reports the completed
// checkout.
func (s *Service) RequestPlanChange(ctx context.Context, actor types.Actor, target types.PlanTier) (*PlanChange, error) {
	if !target.IsValid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "unknown plan tier", nil)
	}

	if target == actor.Plan {
		return &PlanChange{Plan: actor.Plan}, nil
	}

	if target == types.PlanPro {
		url, sessionID, err := s.checkout.CreateCheckoutSession(ctx, actor.UserID, external.CheckoutURLs{
			Success: s.dashboardURL + "/billing?upgraded=1",
			Cancel:  s.dashboardURL + "/billing?canceled=1",
		})
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "checkout session created",
			"user_id", actor.UserID,
			"session_id", sessionID,
		)
		return &PlanChange{Plan: actor.Plan, CheckoutURL: url}, nil
	}

	if err := s.plans.ChangePlan(ctx, actor.UserID, target); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "plan changed",
		"user_id", actor.UserID,
		"plan", target,
	)
	return &PlanChange{Plan: target}, nil
}

// CompleteCheckout activates the pro plan for a user whose Stripe checkout
// finished. Called from the webhook handler; idempotent, since re-applying
// the same plan and resetting already-reset counters is harmless.
func (s *Service) CompleteCheckout(ctx context.Context, userID string) error {
	if err := s.plans.ChangePlan(ctx, userID, types.PlanPro); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "checkout completed, plan upgraded",
		"user_id", userID,
		"plan", types.PlanPro,
	)
	return nil
}
