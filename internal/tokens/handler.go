package tokens

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/platform/httpx"
)

// Handler serves the tokens JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	engine  *access.Engine
	querier access.Querier
	valid   *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, engine *access.Engine, querier access.Querier) *Handler {
	return &Handler{logger: logger, service: service, engine: engine, querier: querier, valid: validator.New()}
}

// MountRoutes registers token routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{id}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tokens, err := h.service.List(r.Context(), c)
	if err != nil {
		h.logger.Error("list tokens failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

type createTokenRequest struct {
	Name   string   `json:"name" validate:"required,min=1"`
	ACLs   []string `json:"acls"`
	Groups []int64  `json:"groups"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	token, err := h.service.Create(r.Context(), c, NewToken{
		Name:   req.Name,
		ACLs:   req.ACLs,
		Groups: req.Groups,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, token)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.engine.Authorize(r.Context(), h.querier, "token", id, c, access.ModeWrite); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
