package tasks

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// Handler serves task endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers task routes. Deletion is gated in the service because creators may
// archive their own tasks without the delete capability.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Tasks, rbac.ActionView))
			r.Get("/", h.list)
			r.Get("/{id}", h.show)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Tasks, rbac.ActionWrite))
			r.Post("/", h.create)
			r.Patch("/{id}", h.update)
			r.Post("/{id}/status", h.updateStatus)
			r.Delete("/{id}", h.delete)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status")), Page: shared.PageFromRequest(r)}
	for key, dst := range map[string]*int64{"assigned_to": &filter.AssignedTo, "order_id": &filter.OrderID} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, httpx.InvalidField(key, "must be a number"))
			return
		}
		*dst = v
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	page, err := h.service.ListTasks(r.Context(), p, filter)
	if err != nil {
		h.fail(w, "list tasks failed", err)
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
	task, err := h.service.GetTask(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get task failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	task, err := h.service.CreateTask(r.Context(), p, req)
	if err != nil {
		h.fail(w, "create task failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	task, err := h.service.UpdateTask(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "update task failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
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
	task, err := h.service.UpdateTaskStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.fail(w, "update task status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.DeleteTask(r.Context(), p, id); err != nil {
		h.fail(w, "delete task failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Debug(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
