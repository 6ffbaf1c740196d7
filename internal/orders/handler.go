package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// Handler serves the order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Orders, rbac.ActionView))
			r.Get("/", h.list)
			r.Get("/{id}", h.show)
			r.Get("/{id}/transitions", h.transitions)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Orders, rbac.ActionWrite))
			r.Post("/", h.create)
			r.Patch("/{id}", h.update)
			r.Post("/{id}/status", h.updateStatus)
		})
		r.With(h.rbac.Require(rbac.Orders, rbac.ActionDelete)).Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	page, err := h.service.ListOrders(r.Context(), p, ListFilter{
		Status: Status(q.Get("status")),
		Search: q.Get("q"),
		Page:   shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list orders failed", err)
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
	order, err := h.service.GetOrderByID(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
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
		h.fail(w, "order transitions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]Status{"next": next})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	order, err := h.service.CreateOrder(r.Context(), p, req)
	if err != nil {
		h.fail(w, "create order failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	order, err := h.service.UpdateOrder(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "update order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
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
	order, err := h.service.UpdateOrderStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.fail(w, "update order status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.DeleteOrder(r.Context(), p, id); err != nil {
		h.fail(w, "delete order failed", err)
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
