package manufacturing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// Handler serves manufacturing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers manufacturing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/manufacturing", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Manufacturing, rbac.ActionView))
			r.Get("/", h.list)
			r.Get("/{id}", h.show)
			r.Get("/{id}/transitions", h.transitions)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Manufacturing, rbac.ActionWrite))
			r.Post("/", h.create)
			r.Patch("/{id}", h.update)
			r.Post("/{id}/status", h.updateStatus)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	page, err := h.service.ListJobs(r.Context(), p, ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Page:   shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list manufacturing jobs failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	job, err := h.service.GetJob(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get manufacturing job failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) transitions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	next, err := h.service.AllowedTransitions(r.Context(), p, id)
	if err != nil {
		h.fail(w, "manufacturing transitions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]Status{"next": next})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	job, err := h.service.CreateJob(r.Context(), p, req)
	if err != nil {
		h.fail(w, "create manufacturing job failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, job)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateJobRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	job, err := h.service.UpdateJob(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "update manufacturing job failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Status == "" {
		httpx.RespondError(w, httpx.InvalidField("status", "is required"))
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	job, err := h.service.UpdateJobStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.fail(w, "update manufacturing status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Debug(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
