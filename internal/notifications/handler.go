package notifications

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Handler exposes the inbox.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.With(h.rbac.Require(rbac.Notifications, rbac.ActionView)).Get("/", h.list)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Notifications, rbac.ActionWrite))
			r.Post("/read-all", h.markAllRead)
			r.Post("/{id}/read", h.markRead)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	inbox, err := h.service.Inbox(r.Context(), p, r.URL.Query().Get("unread") == "true")
	if err != nil {
		h.logger.Error("list notifications failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inbox)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), p, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	n, err := h.service.MarkAllRead(r.Context(), p)
	if err != nil {
		h.logger.Error("mark all notifications read failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}
