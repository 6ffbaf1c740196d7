package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

type principals map[int64]rbac.Principal

func (p principals) Resolve(_ context.Context, id int64) (rbac.Principal, error) {
	if got, ok := p[id]; ok {
		return got, nil
	}
	return rbac.Principal{}, httpx.NotFound("user", id)
}

func newTestRouter(f fixture) http.Handler {
	mw := rbac.Middleware{
		Resolver:      principals{admin.UserID: admin, sales.UserID: sales, other.UserID: other, financeUser.UserID: financeUser, designer.UserID: designer},
		Logger:        discardLogger(),
		TrustedHeader: "X-User-ID",
	}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	NewHandler(discardLogger(), f.svc, mw).MountRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, as rbac.Principal, body string) (*httptest.ResponseRecorder, httpx.ErrorBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-User-ID", strconv.FormatInt(as.UserID, 10))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var errBody httpx.ErrorBody
	if rec.Code >= 400 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	}
	return rec, errBody
}

func TestHandlerQuoteLifecycle(t *testing.T) {
	f := newFixture()
	h := newTestRouter(f)

	rec, _ := do(t, h, http.MethodPost, "/quotes", sales, `{"title":"League kit","tax_rate":"0.1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var q Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))

	path := fmt.Sprintf("/quotes/%d", q.ID)
	rec, _ = do(t, h, http.MethodPost, path+"/items", sales, `{"item_name":"Tee","quantity":2,"unit_price":"12.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "25.00", q.Subtotal.StringFixed(2))
	assert.Equal(t, "27.50", q.Total.StringFixed(2))

	rec, _ = do(t, h, http.MethodPost, path+"/status", sales, `{"status":"sent"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodDelete, path, sales, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body.Message)

	rec, body = do(t, h, http.MethodPost, path+"/status", sales, `{"status":"draft"}`)
	require.Equal(t, http.StatusOK, rec.Code, body.Message)

	rec, _ = do(t, h, http.MethodDelete, path, sales, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerInvalidTransitionBody(t *testing.T) {
	f := newFixture()
	q := f.repo.seed(Quote{SalespersonID: sales.UserID, Title: "Kit", Status: workflow.QuoteRejected})
	h := newTestRouter(f)

	rec, body := do(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/status", q.ID), sales, `{"status":"sent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rejected", body.Errors["from"])
	assert.Equal(t, "sent", body.Errors["to"])
}

func TestHandlerAccessControl(t *testing.T) {
	f := newFixture()
	q := f.repo.seed(Quote{SalespersonID: other.UserID, Title: "Theirs"})
	h := newTestRouter(f)

	rec, _ := do(t, h, http.MethodGet, "/quotes", designer, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, http.MethodGet, fmt.Sprintf("/quotes/%d", q.ID), sales, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, http.MethodGet, fmt.Sprintf("/quotes/%d", q.ID), financeUser, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, fmt.Sprintf("/quotes/%d", q.ID), financeUser, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/quotes/424242", admin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
