package invoices

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

func serve(t *testing.T, f fixture, method, path string, as rbac.Principal, body string) *httptest.ResponseRecorder {
	t.Helper()
	mw := rbac.Middleware{
		Resolver:      principals{admin.UserID: admin, sales.UserID: sales, financeUser.UserID: financeUser, ops.UserID: ops},
		Logger:        discardLogger(),
		TrustedHeader: "X-User-ID",
	}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	NewHandler(discardLogger(), f.svc, mw).MountRoutes(r)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-User-ID", strconv.FormatInt(as.UserID, 10))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRecordPayment(t *testing.T) {
	f := newFixture()
	inv := f.repo.seed(Invoice{SalespersonID: sales.UserID, Status: workflow.InvoiceSent, TotalAmount: dec("50")})

	rec := serve(t, f, http.MethodPost, fmt.Sprintf("/invoices/%d/payments", inv.ID), financeUser, `{"amount":"50","method":"cash"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Invoice Invoice `json:"invoice"`
		Payment Payment `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, workflow.InvoicePaid, body.Invoice.Status)

	rec = serve(t, f, http.MethodGet, fmt.Sprintf("/invoices/%d/payments", inv.ID), sales, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payments))
	assert.Len(t, payments, 1)
}

func TestHandlerInvoiceGuards(t *testing.T) {
	f := newFixture()
	inv := f.repo.seed(Invoice{SalespersonID: sales.UserID, TotalAmount: dec("50")})

	rec := serve(t, f, http.MethodPost, "/invoices", sales, `{"subtotal":"10"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, f, http.MethodPost, fmt.Sprintf("/invoices/%d/payments", inv.ID), financeUser, `{"amount":"5","method":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, f, http.MethodGet, "/invoices/aging?as_of=yesterday", financeUser, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, f, http.MethodGet, "/invoices/aging", ops, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
