package observations

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/platform/httpx"
)

// Handler serves the observations JSON API.
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

// MountRoutes registers observation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/objs/{objID}/photometry", h.listPhotometry)
	r.Post("/photometry", h.uploadPhotometry)
	r.Delete("/photometry/{id}", h.deletePhotometry)
	r.Get("/objs/{objID}/spectra", h.listSpectra)
	r.Post("/spectra", h.uploadSpectrum)
	r.Get("/objs/{objID}/thumbnails", h.listThumbnails)
}

// objAuthorized checks that the closure can read the obj before any of
// its attachments are listed.
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

func (h *Handler) listPhotometry(w http.ResponseWriter, r *http.Request) {
	objID, c, err := h.objAuthorized(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	points, err := h.service.ListPhotometry(r.Context(), c, objID)
	if err != nil {
		h.logger.Error("list photometry failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"photometry": points})
}

type uploadPhotometryRequest struct {
	ObjID    string   `json:"obj_id" validate:"required"`
	RA       float64  `json:"ra"`
	Dec      float64  `json:"dec"`
	MJD      float64  `json:"mjd" validate:"required"`
	Flux     *float64 `json:"flux"`
	FluxErr  float64  `json:"fluxerr"`
	Band     string   `json:"band" validate:"required"`
	GroupIDs []int64  `json:"group_ids" validate:"required,min=1"`
}

func (h *Handler) uploadPhotometry(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req uploadPhotometryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	point, err := h.service.UploadPhotometry(r.Context(), c, Photometry{
		ObjID:    req.ObjID,
		MJD:      req.MJD,
		Flux:     req.Flux,
		FluxErr:  req.FluxErr,
		Band:     req.Band,
		GroupIDs: req.GroupIDs,
	}, req.RA, req.Dec)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, point)
}

func (h *Handler) deletePhotometry(w http.ResponseWriter, r *http.Request) {
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
	if err := h.engine.Authorize(r.Context(), h.querier, "photometry", id, c, access.ModeWrite); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePhotometry(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSpectra(w http.ResponseWriter, r *http.Request) {
	objID, c, err := h.objAuthorized(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	spectra, err := h.service.ListSpectra(r.Context(), c, objID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"spectra": spectra})
}

type uploadSpectrumRequest struct {
	ObjID       string    `json:"obj_id" validate:"required"`
	ObservedAt  time.Time `json:"observed_at" validate:"required"`
	Wavelengths []float64 `json:"wavelengths" validate:"required,min=1"`
	Fluxes      []float64 `json:"fluxes" validate:"required,min=1"`
	GroupIDs    []int64   `json:"group_ids" validate:"required,min=1"`
}

func (h *Handler) uploadSpectrum(w http.ResponseWriter, r *http.Request) {
	c, err := access.ClosureFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req uploadSpectrumRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if len(req.Wavelengths) != len(req.Fluxes) {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	spectrum, err := h.service.UploadSpectrum(r.Context(), c, Spectrum{
		ObjID:       req.ObjID,
		ObservedAt:  req.ObservedAt,
		Wavelengths: req.Wavelengths,
		Fluxes:      req.Fluxes,
		GroupIDs:    req.GroupIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, spectrum)
}

func (h *Handler) listThumbnails(w http.ResponseWriter, r *http.Request) {
	objID, _, err := h.objAuthorized(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	thumbs, err := h.service.ListThumbnails(r.Context(), objID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"thumbnails": thumbs})
}
