package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richhabits/richhabits-os/internal/auth"
	"github.com/richhabits/richhabits-os/internal/shared"
	_ "github.com/richhabits/richhabits-os/testing"
)

type invalidations []int64

func (i *invalidations) Invalidate(_ context.Context, id int64) { *i = append(*i, id) }

type fixture struct {
	router   chi.Router
	sessions *shared.SessionManager
	csrf     *shared.CSRFManager
	redis    *miniredis.Miniredis
	dropped  *invalidations
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "rh_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	dropped := &invalidations{}
	h := auth.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), sessions, csrf, dropped)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Use(sessions.Middleware(logger))
	r.Route("/auth", h.MountRoutes)
	return fixture{router: r, sessions: sessions, csrf: csrf, redis: mr, dropped: dropped}
}

func TestCSRFEndpointIssuesStableToken(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["csrf_token"])
	assert.Equal(t, shared.CSRFHeader, body["header"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var again map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, body["csrf_token"], again["csrf_token"])
}

func TestLogoutDestroysSessionAndInvalidatesPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.sessions.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser(42)
	_, err = f.csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	seed := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(ctx, seed, sess))
	require.True(t, f.redis.Exists("session:"+sess.ID))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(seed.Result().Cookies()[0])
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, invalidations{42}, *f.dropped)
	assert.False(t, f.redis.Exists("session:"+sess.ID))
}

func TestLogoutWithoutSessionUser(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, *f.dropped)
}
