package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/richhabits/richhabits-os/internal/observability"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// RouteMounter is implemented by every domain handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	// AuthHandler is mounted at /api/auth.
	AuthHandler RouteMounter
	// API handlers mount their own resource paths under /api.
	API []RouteMounter
	// JobHandler is mounted at /jobs.
	JobHandler RouteMounter
}

// NewRouter constructs the chi.Router with the application defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		for _, h := range params.API {
			h.MountRoutes(r)
		}
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, httpx.NotFound("route", r.URL.Path))
		})
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
