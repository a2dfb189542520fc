package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"promptforge/internal/billing"
	"promptforge/internal/core"
	"promptforge/internal/types"
)

// maxWebhookBodySize bounds the Stripe webhook payload read.
const maxWebhookBodySize = 64 * 1024

// BillingService defines the plan-change contract for the billing handler.
// Satisfied by billing.Service.
type BillingService interface {
	RequestPlanChange(ctx context.Context, actor types.Actor, target types.PlanTier) (*billing.PlanChange, error)
	CompleteCheckout(ctx context.Context, userID string) error
}

// WebhookVerifier validates Stripe webhook signatures. Satisfied by
// external.StripeClient.
type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, header string, secret string) error
}

// BillingHandler serves plan changes and the Stripe checkout webhook.
type BillingHandler struct {
	service       BillingService
	verifier      WebhookVerifier
	webhookSecret string
	validator     *core.Validator
	logger        *slog.Logger
}

// NewBillingHandler creates a new BillingHandler with the provided
// dependencies. webhookSecret is the Stripe endpoint signing secret; when
// empty the webhook route rejects everything.
func NewBillingHandler(
	svc BillingService,
	verifier WebhookVerifier,
	webhookSecret string,
	val *core.Validator,
	logger *slog.Logger,
) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		service:       svc,
		verifier:      verifier,
		webhookSecret: webhookSecret,
		validator:     val,
		logger:        logger,
	}
}

// RegisterRoutes mounts the billing endpoints onto the mux. The webhook path
// is exempt from bearer authentication; it authenticates with the Stripe
// signature instead.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/plan", h.HandleChangePlan)
	r.Post("/billing/webhook", h.HandleStripeWebhook)
}

type changePlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free pro"`
}

// HandleChangePlan handles POST /v1/billing/plan. Downgrades apply
// immediately together with a counter reset; upgrades return a Stripe
// checkout URL and apply when the webhook reports completion.
func (h *BillingHandler) HandleChangePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req changePlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	change, err := h.service.RequestPlanChange(r.Context(), actor, types.PlanTier(req.Plan))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: change})
}

// stripeEvent is the subset of the Stripe webhook envelope the platform
// reads: the event type and the checkout session's client_reference_id,
// which carries the PromptForge user ID.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ClientReferenceID string `json:"client_reference_id"`
		} `json:"object"`
	} `json:"data"`
}

// HandleStripeWebhook handles POST /v1/billing/webhook. Only
// checkout.session.completed is acted on; everything else is acknowledged
// and ignored so Stripe does not retry.
func (h *BillingHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "failed to read webhook payload", err))
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if h.webhookSecret == "" || h.verifier.VerifyWebhookSignature(payload, sig, h.webhookSecret) != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid webhook signature", nil))
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "webhook payload is not valid JSON", err))
		return
	}

	if event.Type != "checkout.session.completed" {
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "ignored"}})
		return
	}

	userID := event.Data.Object.ClientReferenceID
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "checkout session has no client_reference_id", nil))
		return
	}

	if err := h.service.CompleteCheckout(r.Context(), userID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "stripe checkout processed",
		"user_id", userID,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "processed"}})
}
