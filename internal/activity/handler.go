package activity

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Handler exposes the trail over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.Activity, rbac.ActionView)).Get("/activity", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{EntityType: q.Get("entity_type")}
	if raw := q.Get("entity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, httpx.InvalidField("entity_id", "must be an integer"))
			return
		}
		f.EntityID = id
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	p, _ := rbac.PrincipalFromContext(r.Context())
	res, err := h.service.Trail(r.Context(), p, f)
	if err != nil {
		h.logger.Error("activity trail failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
