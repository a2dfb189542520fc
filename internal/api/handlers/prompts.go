package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"promptforge/internal/core"
	"promptforge/internal/types"
)

// defaultPromptListLimit bounds the library listing when the client does not
// ask for a size.
const defaultPromptListLimit = 50

// maxPromptListLimit caps the library listing size.
const maxPromptListLimit = 200

// PromptRepo defines the data access contract for the prompt handler.
// Satisfied by db.PromptRepository.
type PromptRepo interface {
	Create(ctx context.Context, p *types.Prompt) error
	GetByID(ctx context.Context, id string) (*types.Prompt, error)
	ListPublic(ctx context.Context, limit int) ([]types.Prompt, error)
	IncrementCopyCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id, authorID string) error
}

// QuotaEnforcer gates metered actions. Satisfied by metering.Enforcer.
type QuotaEnforcer interface {
	Enforce(ctx context.Context, user *types.User, feature types.FeatureType, metadata map[string]any) error
}

// PromptHandler serves the community prompt library, including the metered
// copy action.
type PromptHandler struct {
	repo      PromptRepo
	enforcer  QuotaEnforcer
	validator *core.Validator
	logger    *slog.Logger
}

// NewPromptHandler creates a new PromptHandler with the provided dependencies.
func NewPromptHandler(repo PromptRepo, enforcer QuotaEnforcer, val *core.Validator, logger *slog.Logger) *PromptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptHandler{
		repo:      repo,
		enforcer:  enforcer,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the prompt endpoints onto the mux. All routes assume
// the authentication middleware is already applied.
func (h *PromptHandler) RegisterRoutes(r chi.Router) {
	r.Get("/prompts", h.HandleList)
	r.Post("/prompts", h.HandleCreate)
	r.Get("/prompts/{promptID}", h.HandleGet)
	r.Delete("/prompts/{promptID}", h.HandleDelete)
	r.Post("/prompts/{promptID}/copy", h.HandleCopy)
}

type createPromptRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Body       string `json:"body" validate:"required,max=20000"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public private"`
}

// HandleList handles GET /v1/prompts. Returns public prompts, newest first.
func (h *PromptHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultPromptListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationFieldFailed,
				"limit must be a positive integer",
				nil,
			))
			return
		}
		limit = parsed
		if limit > maxPromptListLimit {
			limit = maxPromptListLimit
		}
	}

	prompts, err := h.repo.ListPublic(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: prompts})
}

// HandleCreate handles POST /v1/prompts. Creating a prompt is not metered;
// only copying is.
func (h *PromptHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req createPromptRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	visibility := types.PromptVisibility(req.Visibility)
	if visibility == "" {
		visibility = types.PromptPublic
	}

	prompt := &types.Prompt{
		ID:         "prompt_" + uuid.NewString(),
		AuthorID:   actor.UserID,
		Title:      req.Title,
		Body:       req.Body,
		Visibility: visibility,
	}
	if err := h.repo.Create(r.Context(), prompt); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "prompt created",
		"prompt_id", prompt.ID,
		"author_id", actor.UserID,
	)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: prompt})
}

// HandleGet handles GET /v1/prompts/{promptID}. Private prompts are only
// visible to their author.
func (h *PromptHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())
	promptID := chi.URLParam(r, "promptID")

	prompt, err := h.repo.GetByID(r.Context(), promptID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if prompt.Visibility == types.PromptPrivate && prompt.AuthorID != actor.UserID {
		// Report not-found rather than forbidden so private prompt IDs are
		// not probeable.
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundPrompt, "prompt not found", nil))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: prompt})
}

// HandleDelete handles DELETE /v1/prompts/{promptID}. Only the author may
// delete a prompt.
func (h *PromptHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}
	promptID := chi.URLParam(r, "promptID")

	prompt, err := h.repo.GetByID(r.Context(), promptID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if prompt.AuthorID != actor.UserID {
		core.Error(w, r, types.NewAppError(types.ErrCodePermissionOwner, "only the author may delete this prompt", nil))
		return
	}

	if err := h.repo.Delete(r.Context(), promptID, actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "deleted"}})
}

// HandleCopy handles POST /v1/prompts/{promptID}/copy, the metered action of
// copying a prompt body for use elsewhere. The quota check happens before
// any side effect: a denied copy does not bump the prompt's copy counter.
func (h *PromptHandler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}
	promptID := chi.URLParam(r, "promptID")

	prompt, err := h.repo.GetByID(r.Context(), promptID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if prompt.Visibility == types.PromptPrivate && prompt.AuthorID != actor.UserID {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundPrompt, "prompt not found", nil))
		return
	}

	user := &types.User{ID: actor.UserID, Plan: actor.Plan, Email: actor.Email}
	if err := h.enforcer.Enforce(r.Context(), user, types.FeaturePromptCopy, map[string]any{
		"prompt_id": promptID,
	}); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.repo.IncrementCopyCount(r.Context(), promptID); err != nil {
		// The quota slot is already spent; surfacing the counter failure
		// would make the copy look denied when it succeeded. Log and return
		// the prompt body anyway.
		h.logger.WarnContext(r.Context(), "copy count increment failed",
			"prompt_id", promptID,
			"error", err,
		)
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{
		"prompt_id": prompt.ID,
		"body":      prompt.Body,
	}})
}
