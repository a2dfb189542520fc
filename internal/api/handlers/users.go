package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"promptforge/internal/core"
	"promptforge/internal/types"
)

// UserReader loads account records. Satisfied by db.UserRepository.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// UserHandler serves the current-account endpoint.
type UserHandler struct {
	users  UserReader
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserReader, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// RegisterRoutes mounts the user endpoints onto the mux.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users/me", h.HandleGetMe)
}

// HandleGetMe handles GET /v1/users/me. The full record is re-read rather
// than echoed from the Actor so the response reflects writes from other
// sessions.
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	user, err := h.users.GetByID(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: user})
}
