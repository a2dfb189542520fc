package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"promptforge/internal/core"
	"promptforge/internal/types"
)

// ContentGenerator produces AI growth content. Satisfied by
// external.GrowthClient.
type ContentGenerator interface {
	Generate(ctx context.Context, req types.GrowthRequest) (*types.GrowthContent, error)
}

// GrowthHandler serves AI growth-content generation. The endpoint carries
// two gates: the strict per-IP AI rate limit (middleware), then the per-user
// daily quota (enforcer).
type GrowthHandler struct {
	generator ContentGenerator
	enforcer  QuotaEnforcer
	aiLimit   func(http.Handler) http.Handler
	validator *core.Validator
	logger    *slog.Logger
}

// NewGrowthHandler creates a new GrowthHandler. aiLimit is the route-scoped
// throttling middleware (core.NamedRateLimit over the ai limiter); nil skips
// the extra gate, which handler tests rely on.
func NewGrowthHandler(
	generator ContentGenerator,
	enforcer QuotaEnforcer,
	aiLimit func(http.Handler) http.Handler,
	val *core.Validator,
	logger *slog.Logger,
) *GrowthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrowthHandler{
		generator: generator,
		enforcer:  enforcer,
		aiLimit:   aiLimit,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the growth endpoint onto the mux.
func (h *GrowthHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.aiLimit != nil {
			r.Use(h.aiLimit)
		}
		r.Post("/growth", h.HandleGenerate)
	})
}

type growthRequest struct {
	Topic string `json:"topic" validate:"required,max=200"`
	Goal  string `json:"goal" validate:"omitempty,max=500"`
}

// HandleGenerate handles POST /v1/growth. The quota is charged before the
// provider call: a generation that fails upstream still consumed a slot,
// which keeps the enforcement path free of refund bookkeeping.
func (h *GrowthHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req growthRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user := &types.User{ID: actor.UserID, Plan: actor.Plan, Email: actor.Email}
	if err := h.enforcer.Enforce(r.Context(), user, types.FeatureGrowthContent, map[string]any{
		"topic": req.Topic,
	}); err != nil {
		core.Error(w, r, err)
		return
	}

	content, err := h.generator.Generate(r.Context(), types.GrowthRequest{
		Topic: req.Topic,
		Goal:  req.Goal,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: content})
}
