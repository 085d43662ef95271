package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/auth"
	"github.com/aurora-portal/aurora/internal/platform/httpx"
)

// Handler serves the audit log browser. Operator only.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
	guard  *auth.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository, guard *auth.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.RequireACL(access.AdminACL))
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.repo.List(r.Context(), Query{
		Entity:  r.URL.Query().Get("entity"),
		ActorID: actorID,
		Limit:   limit,
	})
	if err != nil {
		h.logger.Error("list audit logs failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"audit_logs": entries})
}
