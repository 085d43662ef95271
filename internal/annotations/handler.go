package annotations

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/platform/httpx"
)

// Handler serves the annotations JSON API.
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

// MountRoutes registers annotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/objs/{objID}/comments", h.listComments)
	r.Post("/comments", h.postComment)
	r.Delete("/comments/{id}", h.deleteComment)
	r.Get("/objs/{objID}/annotations", h.listAnnotations)
	r.Post("/annotations", h.postAnnotation)
	r.Get("/objs/{objID}/classifications", h.listClassifications)
	r.Post("/classifications", h.postClassification)
	r.Delete("/classifications/{id}", h.deleteClassification)
	r.Get("/objs/{objID}/followup_requests", h.listFollowups)
	r.Post("/followup_requests", h.requestFollowup)
	r.Patch("/followup_requests/{id}", h.updateFollowup)
}

func (h *Handler) objAuthorized(r *http.Request) (string, *access.Closure, error) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		return "", nil, err
	}
	objID := chi.URLParam(r, "objID")
	if err := h.engine.Authorize(r.Context(), h.querier, "obj", objID, c, access.ModeRead); err != nil {
		return "", nil, err
	}
	return objID, c, nil
}

// writeAuthorized resolves the closure and checks write access on the
// named entity.
func (h *Handler) writeAuthorized(r *http.Request, typeName string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, httpx.ErrValidation
	}
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		return 0, err
	}
	if err := h.engine.Authorize(r.Context(), h.querier, typeName, id, c, access.ModeWrite); err != nil {
		return 0, err
	}
	return id, nil
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	objID, c, err := h.objAuthorized(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	comments, err := h.service.ListComments(r.Context(), c, objID)
	if err != nil {
		h.logger.Error("list comments failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"comments": comments})
}

type postCommentRequest struct {
	ObjID    string  `json:"obj_id" validate:"required"`
	Text     string  `json:"text" validate:"required"`
	GroupIDs []int64 `json:"group_ids" validate:"required,min=1"`
}

func (h *Handler) postComment(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req postCommentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	// Commenting requires read access to the obj itself.
	if err := h.engine.Authorize(r.Context(), h.querier, "obj", req.ObjID, c, access.ModeRead); err != nil {
		httpx.RespondError(w, err)
		return
	}
	comment, err := h.service.PostComment(r.Context(), c, Comment{
		ObjID:    req.ObjID,
		Text:     req.Text,
		GroupIDs: req.GroupIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, comment)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := h.writeAuthorized(r, "comment")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteComment(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listAnnotations(w http.ResponseWriter, r *http.Request) {
	objID, c, err := h.objAuthorized(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListAnnotations(r.Context(), c, objID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"annotations": items})
}

type postAnnotationRequest struct {
	ObjID    string          `json:"obj_id" validate:"required"`
	Origin   string          `json:"origin" validate:"required"`
	Data     json.RawMessage `json:"data" validate:"required"`
	GroupIDs []int64         `json:"group_ids" validate:"required,min=1"`
}

func (h *Handler) postAnnotation(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req postAnnotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.engine.Authorize(r.Context(), h.querier, "obj", req.ObjID, c, access.ModeRead); err != nil {
		httpx.RespondError(w, err)
		return
	}
	annotation, err := h.service.PostAnnotation(r.Context(), c, Annotation{
		ObjID:    req.ObjID,
		Origin:   req.Origin,
		Data:     req.Data,
		GroupIDs: req.GroupIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, annotation)
}

func (h *Handler) listClassifications(w http.ResponseWriter, r *http.Request) {
	objID, c, err := h.objAuthorized(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListClassifications(r.Context(), c, objID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"classifications": items})
}

type postClassificationRequest struct {
	ObjID       string   `json:"obj_id" validate:"required"`
	Label       string   `json:"label" validate:"required"`
	Probability *float64 `json:"probability" validate:"omitempty,gte=0,lte=1"`
	GroupIDs    []int64  `json:"group_ids" validate:"required,min=1"`
}

func (h *Handler) postClassification(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req postClassificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.engine.Authorize(r.Context(), h.querier, "obj", req.ObjID, c, access.ModeRead); err != nil {
		httpx.RespondError(w, err)
		return
	}
	classification, err := h.service.PostClassification(r.Context(), c, Classification{
		ObjID:       req.ObjID,
		Label:       req.Label,
		Probability: req.Probability,
		GroupIDs:    req.GroupIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, classification)
}

func (h *Handler) deleteClassification(w http.ResponseWriter, r *http.Request) {
	id, err := h.writeAuthorized(r, "classification")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteClassification(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listFollowups(w http.ResponseWriter, r *http.Request) {
	objID, c, err := h.objAuthorized(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListFollowupRequests(r.Context(), c, objID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"followup_requests": items})
}

type requestFollowupRequest struct {
	ObjID      string  `json:"obj_id" validate:"required"`
	Instrument string  `json:"instrument" validate:"required"`
	Priority   string  `json:"priority" validate:"required,oneof=low medium high"`
	GroupIDs   []int64 `json:"group_ids" validate:"required,min=1"`
}

func (h *Handler) requestFollowup(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req requestFollowupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.engine.Authorize(r.Context(), h.querier, "obj", req.ObjID, c, access.ModeRead); err != nil {
		httpx.RespondError(w, err)
		return
	}
	followup, err := h.service.RequestFollowup(r.Context(), c, FollowupRequest{
		ObjID:      req.ObjID,
		Instrument: req.Instrument,
		Priority:   req.Priority,
		GroupIDs:   req.GroupIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, followup)
}

type updateFollowupRequest struct {
	Status string `json:"status" validate:"required,oneof=pending submitted completed canceled"`
}

func (h *Handler) updateFollowup(w http.ResponseWriter, r *http.Request) {
	id, err := h.writeAuthorized(r, "followup_request")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateFollowupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.UpdateFollowupStatus(r.Context(), id, req.Status); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
