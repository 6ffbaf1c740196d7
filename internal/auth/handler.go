// Package auth exposes the session endpoints the front end needs around an externally provided login.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// PrincipalInvalidator drops any cached principal for a user.
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// Handler wires HTTP endpoints for session housekeeping.
type Handler struct {
	logger         *slog.Logger
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	principals     PrincipalInvalidator
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, sessions *shared.SessionManager, csrf *shared.CSRFManager, principals PrincipalInvalidator) *Handler {
	return &Handler{
		logger:         logger,
		sessionManager: sessions,
		csrfManager:    csrf,
		principals:     principals,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrf)
	r.Post("/logout", h.logout)
}

type csrfResponse struct {
	Token  string `json:"csrf_token"`
	Header string `json:"header"`
}

func (h *Handler) csrf(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.RespondError(w, httpx.Wrap("auth: csrf", err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, csrfResponse{Token: token, Header: shared.CSRFHeader})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	userID, ok := int64(0), false
	if p, found := rbac.PrincipalFromContext(r.Context()); found {
		userID, ok = p.UserID, true
	} else if sess != nil {
		userID, ok = sess.UserID()
	}
	if ok && h.principals != nil {
		h.principals.Invalidate(r.Context(), userID)
	}
	if sess != nil {
		h.csrfManager.Clear(sess)
		h.sessionManager.Destroy(sess)
	}
	h.logger.Info("logout", slog.Int64("user_id", userID))
	httpx.NoContent(w)
}
