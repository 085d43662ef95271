package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/annotations"
	"github.com/aurora-portal/aurora/internal/audit"
	"github.com/aurora-portal/aurora/internal/auth"
	"github.com/aurora-portal/aurora/internal/catalog"
	"github.com/aurora-portal/aurora/internal/groups"
	"github.com/aurora-portal/aurora/internal/observability"
	"github.com/aurora-portal/aurora/internal/observations"
	"github.com/aurora-portal/aurora/internal/roles"
	"github.com/aurora-portal/aurora/internal/shared"
	"github.com/aurora-portal/aurora/internal/tokens"
	"github.com/aurora-portal/aurora/internal/users"
	"github.com/aurora-portal/aurora/jobs"
)

// BuildEngine registers every entity type, finalizes the registry and
// returns the access engine. Metrics may be nil.
func BuildEngine(metrics *observability.Metrics) (*access.Engine, error) {
	reg := access.NewRegistry()
	users.RegisterTypes(reg)
	groups.RegisterTypes(reg)
	tokens.RegisterTypes(reg)
	catalog.RegisterTypes(reg)
	observations.RegisterTypes(reg)
	annotations.RegisterTypes(reg)
	if err := reg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize access registry: %w", err)
	}
	engine := access.NewEngine(reg)
	if metrics != nil {
		engine.SetObserver(func(entity string, mode access.Mode, allowed bool) {
			metrics.ObserveAccessDecision(entity, mode.String(), allowed)
		})
	}
	return engine, nil
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Guard          *auth.Middleware

	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	GroupsHandler       *groups.Handler
	RolesHandler        *roles.Handler
	TokensHandler       *tokens.Handler
	CatalogHandler      *catalog.Handler
	ObservationsHandler *observations.Handler
	AnnotationsHandler  *annotations.Handler
	AuditHandler        *audit.Handler
	JobsHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Aurora defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Guard.Principal)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.Guard.RequireAuth)

			r.Route("/users", params.UsersHandler.MountRoutes)
			r.Route("/groups", params.GroupsHandler.MountRoutes)
			r.Route("/roles", params.RolesHandler.MountRoutes)
			r.Route("/tokens", params.TokensHandler.MountRoutes)
			r.Route("/audit", params.AuditHandler.MountRoutes)
			r.Route("/jobs", params.JobsHandler.MountRoutes)
			params.CatalogHandler.MountRoutes(r)
			params.ObservationsHandler.MountRoutes(r)
			params.AnnotationsHandler.MountRoutes(r)
		})
	})

	return r
}
