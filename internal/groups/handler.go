package groups

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/platform/httpx"
)

// Handler serves the groups JSON API.
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

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Patch("/{id}", h.rename)
	r.Delete("/{id}", h.remove)
	r.Get("/{id}/members", h.members)
	r.Put("/{id}/members/{userID}", h.addMember)
	r.Delete("/{id}/members/{userID}", h.removeMember)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groups, err := h.service.List(r.Context(), c)
	if err != nil {
		h.logger.Error("list groups failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type createGroupRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	group, err := h.service.Create(r.Context(), c, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, _, err := h.authorized(r, access.ModeRead)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	group, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

type renameGroupRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, c, err := h.authorized(r, access.ModeWrite)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req renameGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Rename(r.Context(), c, id, req.Name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, c, err := h.authorized(r, access.ModeWrite)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), c, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	id, _, err := h.authorized(r, access.ModeRead)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	members, err := h.service.Members(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

type addMemberRequest struct {
	Admin bool `json:"admin"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, c, err := h.authorized(r, access.ModeWrite)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req addMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.AddMember(r.Context(), c, id, userID, req.Admin); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, c, err := h.authorized(r, access.ModeWrite)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.RemoveMember(r.Context(), c, id, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorized parses the id param, resolves the closure and runs the
// engine check in one place.
func (h *Handler) authorized(r *http.Request, mode access.Mode) (int64, *access.Closure, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, nil, httpx.ErrValidation
	}
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		return 0, nil, err
	}
	if err := h.engine.Authorize(r.Context(), h.querier, "group", id, c, mode); err != nil {
		return 0, nil, err
	}
	return id, c, nil
}
