package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"promptforge/internal/core"
	"promptforge/internal/types"
)

// UsageReader reports quota status. Satisfied by metering.Enforcer.
type UsageReader interface {
	Status(ctx context.Context, user *types.User) (*types.PlanStatus, error)
}

// UsageHandler serves the read-only quota status endpoint.
type UsageHandler struct {
	usage  UsageReader
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage UsageReader, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// RegisterRoutes mounts the usage endpoint onto the mux.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/usage", h.HandleGetUsage)
}

// HandleGetUsage handles GET /v1/usage: the caller's plan, today's count
// against the limit for each metered feature, and recent usage history.
// Reading status never consumes quota.
func (h *UsageHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	user := &types.User{ID: actor.UserID, Plan: actor.Plan, Email: actor.Email}
	status, err := h.usage.Status(r.Context(), user)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: status})
}
