package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Handler serves the dashboard endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the dashboard route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.Dashboard, rbac.ActionView)).Get("/dashboard", h.show)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.Summary(r.Context(), p)
	if err != nil {
		h.logger.Error("dashboard summary failed", slog.Int64("user_id", p.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
