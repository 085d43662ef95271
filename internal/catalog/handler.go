package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/platform/httpx"
)

const defaultListLimit = 100

// Handler serves the catalog JSON API.
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

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/objs", h.listObjs)
	r.Get("/objs/{objID}", h.showObj)
	r.Get("/sources", h.listSources)
	r.Post("/sources", h.saveSource)
	r.Get("/candidates", h.listCandidates)
	r.Post("/candidates", h.createCandidate)
	r.Get("/filters", h.listFilters)
	r.Post("/filters", h.createFilter)
	r.Delete("/filters/{id}", h.deleteFilter)
	r.Get("/streams", h.listStreams)
	r.Post("/streams", h.createStream)
	r.Put("/streams/{id}/groups/{groupID}", h.grantStream)
}

func (h *Handler) listObjs(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	objs, err := h.service.ListObjs(r.Context(), c, listLimit(r))
	if err != nil {
		h.logger.Error("list objs failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"objs": objs})
}

func (h *Handler) showObj(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "objID")
	if err := h.engine.Authorize(r.Context(), h.querier, "obj", id, c, access.ModeRead); err != nil {
		httpx.RespondError(w, err)
		return
	}
	obj, err := h.service.GetObj(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, obj)
}

func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sources, err := h.service.ListSources(r.Context(), c, listLimit(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sources": sources})
}

type saveSourceRequest struct {
	ObjID    string   `json:"obj_id" validate:"required"`
	RA       float64  `json:"ra"`
	Dec      float64  `json:"dec"`
	Redshift *float64 `json:"redshift"`
	GroupID  int64    `json:"group_id" validate:"required"`
}

func (h *Handler) saveSource(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req saveSourceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	source, err := h.service.SaveSource(r.Context(), c,
		Obj{ID: req.ObjID, RA: req.RA, Dec: req.Dec, Redshift: req.Redshift}, req.GroupID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, source)
}

func (h *Handler) listCandidates(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	candidates, err := h.service.ListCandidates(r.Context(), c, listLimit(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

type createCandidateRequest struct {
	ObjID    string   `json:"obj_id" validate:"required"`
	RA       float64  `json:"ra"`
	Dec      float64  `json:"dec"`
	Redshift *float64 `json:"redshift"`
	FilterID int64    `json:"filter_id" validate:"required"`
}

func (h *Handler) createCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createCandidateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.engine.Authorize(r.Context(), h.querier, "filter", req.FilterID, c, access.ModeWrite); err != nil {
		httpx.RespondError(w, err)
		return
	}
	candidate, err := h.service.CreateCandidate(r.Context(),
		Obj{ID: req.ObjID, RA: req.RA, Dec: req.Dec, Redshift: req.Redshift}, req.FilterID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, candidate)
}

func (h *Handler) listFilters(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters, err := h.service.ListFilters(r.Context(), c)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"filters": filters})
}

type createFilterRequest struct {
	Name     string `json:"name" validate:"required"`
	StreamID int64  `json:"stream_id" validate:"required"`
	GroupID  int64  `json:"group_id" validate:"required"`
}

func (h *Handler) createFilter(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createFilterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	filter, err := h.service.CreateFilter(r.Context(), c,
		Filter{Name: req.Name, StreamID: req.StreamID, GroupID: req.GroupID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, filter)
}

func (h *Handler) deleteFilter(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.engine.Authorize(r.Context(), h.querier, "filter", id, c, access.ModeWrite); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteFilter(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listStreams(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	streams, err := h.service.ListStreams(r.Context(), c)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"streams": streams})
}

type createStreamRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) createStream(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createStreamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	stream, err := h.service.CreateStream(r.Context(), c, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stream)
}

func (h *Handler) grantStream(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	streamID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.GrantStream(r.Context(), c, streamID, groupID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func listLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}
