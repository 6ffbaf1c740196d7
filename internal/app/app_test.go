package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richhabits/richhabits-os/internal/observability"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
)

func TestLoadConfigReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("SESSION_SECRET=from-file\nCSRF_SECRET=csrf\nTRUSTED_USER_HEADER=X-Forwarded-User\n"), 0o600))
	t.Setenv("SESSION_SECRET", "from-env")
	t.Setenv("CSRF_SECRET", "csrf")

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SessionSecret)
	assert.Equal(t, "X-Forwarded-User", cfg.TrustedUserHeader)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Second, cfg.DashboardCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigMissingFileIsFine(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestInTestModeFollowsEnv(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "0": false, "": false, "yes": false} {
		t.Setenv(testModeEnv, value)
		assert.Equal(t, want, InTestMode(), "value %q", value)
	}
}

type echoHandler struct{}

func (echoHandler) MountRoutes(r chi.Router) {
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusCreated, map[string]string{"ok": "yes"})
	})
}

type csrfHandler struct{ csrf *shared.CSRFManager }

func (h csrfHandler) MountRoutes(r chi.Router) {
	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		token, _ := h.csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
		httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
	})
}

type noPrincipals struct{}

func (noPrincipals) Resolve(context.Context, int64) (rbac.Principal, error) {
	return rbac.Principal{}, httpx.ErrNotFound
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	csrf := shared.NewCSRFManager("secret")

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", RateLimitPerMinute: 1000},
		SessionManager: shared.NewSessionManager(client, "rh_session", time.Hour, false),
		CSRFManager:    csrf,
		RBACMiddleware: rbac.Middleware{Resolver: noPrincipals{}, Logger: logger},
		Metrics:        observability.NewMetrics(),
		AuthHandler:    csrfHandler{csrf: csrf},
		API:            []RouteMounter{echoHandler{}},
	})
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "richhabits_http_requests_total")
}

func TestMutationsRequireCSRFHeader(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/echo", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Message)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var issued map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/echo", nil)
	req.AddCookie(cookies[0])
	req.Header.Set(shared.CSRFHeader, issued["csrf_token"])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/echo", nil)
	req.AddCookie(cookies[0])
	req.Header.Set(shared.CSRFHeader, "forged")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownAPIRouteIsJSON404(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
