package commissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Handler serves commission endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers commission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/commissions", func(r chi.Router) {
		r.With(h.rbac.Require(rbac.Commissions, rbac.ActionView)).Get("/", h.list)
		r.With(h.rbac.Require(rbac.Commissions, rbac.ActionView)).Get("/{salespersonID}", h.summary)
		r.With(h.rbac.Require(rbac.Commissions, rbac.ActionView)).Get("/{salespersonID}/payments", h.payments)
		r.With(h.rbac.Require(rbac.Commissions, rbac.ActionWrite)).Post("/{salespersonID}/payments", h.recordPayment)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.ListSummaries(r.Context(), p)
	if err != nil {
		h.fail(w, "list commissions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "salespersonID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.Summary(r.Context(), p, id)
	if err != nil {
		h.fail(w, "commission summary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "salespersonID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.service.ListPayments(r.Context(), p, id)
	if err != nil {
		h.fail(w, "list commission payments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "salespersonID")
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
	out, err := h.service.RecordPayment(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "record commission payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Debug(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
