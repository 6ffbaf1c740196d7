package quotes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// Handler serves the quote endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Quotes, rbac.ActionView))
			r.Get("/", h.list)
			r.Get("/{id}", h.show)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.Quotes, rbac.ActionWrite))
			r.Post("/", h.create)
			r.Patch("/{id}", h.update)
			r.Post("/{id}/status", h.updateStatus)
			r.Post("/{id}/items", h.addItem)
			r.Patch("/{id}/items/{itemID}", h.updateItem)
			r.Delete("/{id}/items/{itemID}", h.removeItem)
		})
		r.With(h.rbac.Require(rbac.Quotes, rbac.ActionDelete)).Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	page, err := h.service.ListQuotes(r.Context(), p, ListFilter{
		Status: Status(q.Get("status")),
		Search: q.Get("q"),
		Page:   shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list quotes failed", err)
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
	quote, err := h.service.GetQuote(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get quote failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	quote, err := h.service.CreateQuote(r.Context(), p, req)
	if err != nil {
		h.fail(w, "create quote failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	quote, err := h.service.UpdateQuote(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "update quote failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
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
	quote, err := h.service.UpdateQuoteStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.fail(w, "update quote status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in LineItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	quote, err := h.service.AddLineItem(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, "add quote item failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch LineItemPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	quote, err := h.service.UpdateLineItem(r.Context(), p, id, itemID, patch)
	if err != nil {
		h.fail(w, "update quote item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	quote, err := h.service.RemoveLineItem(r.Context(), p, id, itemID)
	if err != nil {
		h.fail(w, "remove quote item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.DeleteQuote(r.Context(), p, id); err != nil {
		h.fail(w, "delete quote failed", err)
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
