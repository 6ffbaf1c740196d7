package invoices

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// Handler serves invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Invoices, rbac.ActionView))
			r.Get("/", h.list)
			r.Get("/aging", h.aging)
			r.Get("/{id}", h.show)
			r.Get("/{id}/payments", h.payments)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Invoices, rbac.ActionWrite))
			r.Post("/", h.create)
			r.Post("/{id}/status", h.updateStatus)
			r.Post("/{id}/payments", h.recordPayment)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status")), Page: shared.PageFromRequest(r)}
	if raw := q.Get("order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, httpx.InvalidField("order_id", "must be a number"))
			return
		}
		filter.OrderID = id
	}
	page, err := h.service.ListInvoices(r.Context(), p, filter)
	if err != nil {
		h.fail(w, "list invoices failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.RespondError(w, httpx.InvalidField("as_of", "must be YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	aging, err := h.service.Aging(r.Context(), p, asOf)
	if err != nil {
		h.fail(w, "invoice aging failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, aging)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	inv, err := h.service.GetInvoice(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.ListPayments(r.Context(), p, id)
	if err != nil {
		h.fail(w, "list invoice payments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	inv, err := h.service.CreateInvoice(r.Context(), p, req)
	if err != nil {
		h.fail(w, "create invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
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
	inv, err := h.service.UpdateInvoiceStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.fail(w, "update invoice status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	inv, payment, err := h.service.RecordPayment(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "record payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"invoice": inv, "payment": payment})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Debug(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
