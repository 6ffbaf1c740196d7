package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/shared"
)

// PrincipalResolver loads the principal for a signed-in user id.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID int64) (Principal, error)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver PrincipalResolver
	Logger   *slog.Logger
	// TrustedHeader, when set, names a header an upstream auth proxy uses to pass the user id.
	TrustedHeader string
}

// Authenticate attaches the Principal for the signed-in user, if any. Anonymous requests pass through
// untouched so public routes keep working; Require rejects them later.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, err := m.Resolver.Resolve(r.Context(), userID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			m.Logger.Error("rbac resolve principal", slog.Int64("user_id", userID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Require ensures the current principal's role grants action on resource.
func (m Middleware) Require(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !p.Can(resource, action) {
				m.Logger.Warn("rbac denied",
					slog.Int64("user_id", p.UserID),
					slog.String("role", string(p.Role)),
					slog.String("resource", string(resource)),
					slog.String("action", string(action)))
				httpx.RespondError(w, httpx.Forbidden("you do not have access to "+string(resource)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if id, ok := sess.UserID(); ok {
			return id, true
		}
	}
	if m.TrustedHeader == "" {
		return 0, false
	}
	raw := strings.TrimSpace(r.Header.Get(m.TrustedHeader))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		m.Logger.Warn("rbac parse trusted user header", slog.String("value", raw))
		return 0, false
	}
	return id, true
}
