package rbac

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
)

type stubResolver map[int64]Principal

func (s stubResolver) Resolve(_ context.Context, id int64) (Principal, error) {
	p, ok := s[id]
	if !ok {
		return Principal{}, httpx.NotFound("user", id)
	}
	return p, nil
}

func newMiddleware() Middleware {
	return Middleware{
		Resolver: stubResolver{
			1: {UserID: 1, Role: RoleAdmin},
			2: {UserID: 2, Role: RoleSales},
		},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		TrustedHeader: "X-User-ID",
	}
}

func serve(m Middleware, userHeader string, resource Resource, action Action) int {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := m.Authenticate(m.Require(resource, action)(ok))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userHeader != "" {
		req.Header.Set("X-User-ID", userHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequire(t *testing.T) {
	m := newMiddleware()
	assert.Equal(t, http.StatusUnauthorized, serve(m, "", Orders, ActionView))
	assert.Equal(t, http.StatusUnauthorized, serve(m, "99", Orders, ActionView))
	assert.Equal(t, http.StatusUnauthorized, serve(m, "abc", Orders, ActionView))
	assert.Equal(t, http.StatusNoContent, serve(m, "1", Invoices, ActionDelete))
	assert.Equal(t, http.StatusForbidden, serve(m, "2", Invoices, ActionDelete))
	assert.Equal(t, http.StatusNoContent, serve(m, "2", Orders, ActionWrite))
}

func TestTrustedHeaderIgnoredWhenUnset(t *testing.T) {
	m := newMiddleware()
	m.TrustedHeader = ""
	assert.Equal(t, http.StatusUnauthorized, serve(m, "1", Orders, ActionView))
}
