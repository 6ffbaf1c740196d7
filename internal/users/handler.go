package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Handler manages user endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.Users, rbac.ActionView))
		r.Get("/me", h.me)
		r.Get("/users", h.list)
	})
}

type meResponse struct {
	rbac.Principal
	Capabilities rbac.Capabilities `json:"capabilities"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, meResponse{Principal: p, Capabilities: rbac.CapabilitiesFor(p.Role)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	filter := ListFilter{ActiveOnly: r.URL.Query().Get("include_inactive") != "true"}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			httpx.RespondError(w, httpx.InvalidField("role", "unknown role"))
			return
		}
		filter.Role = role
	}
	out, err := h.service.ListUsers(r.Context(), p, filter)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
