package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

var (
	admin       = rbac.Principal{UserID: 1, Name: "Ada", Role: rbac.RoleAdmin}
	ops         = rbac.Principal{UserID: 2, Name: "Olu", Role: rbac.RoleOps}
	sales       = rbac.Principal{UserID: 10, Name: "Sam", Role: rbac.RoleSales}
	other       = rbac.Principal{UserID: 11, Name: "Sky", Role: rbac.RoleSales}
	financeUser = rbac.Principal{UserID: 20, Name: "Fin", Role: rbac.RoleFinance}
)

type fixture struct {
	svc      *Service
	repo     *mockRepository
	activity *recordingActivity
	notifier *recordingNotifier
}

func newFixture() fixture {
	repo := newMockRepository()
	act := &recordingActivity{}
	notif := &recordingNotifier{}
	return fixture{
		svc:      NewService(repo, act, notif, discardLogger()),
		repo:     repo,
		activity: act,
		notifier: notif,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateInvoiceFromOrder(t *testing.T) {
	f := newFixture()
	orderID := int64(7)
	f.repo.orders[orderID] = OrderSummary{SalespersonID: sales.UserID, Total: dec("1085")}

	inv, err := f.svc.CreateInvoice(context.Background(), financeUser, CreateInvoiceRequest{
		OrderID: &orderID,
		TaxRate: dec("0.0875"),
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.InvoiceDraft, inv.Status)
	assert.Equal(t, sales.UserID, inv.SalespersonID)
	assert.Regexp(t, `^INV-\d{6}-0001$`, inv.InvoiceNumber)
	assert.Equal(t, "94.94", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "1179.94", inv.TotalAmount.StringFixed(2))
	assert.True(t, inv.AmountPaid.IsZero())
	require.Len(t, f.activity.entries, 1)
}

func TestCreateInvoiceRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, sales, CreateInvoiceRequest{Subtotal: dec("10")})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = f.svc.CreateInvoice(ctx, financeUser, CreateInvoiceRequest{Subtotal: dec("-10")})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreateInvoice(ctx, financeUser, CreateInvoiceRequest{Subtotal: dec("10"), TaxRate: dec("3")})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreateInvoice(ctx, financeUser, CreateInvoiceRequest{Subtotal: dec("10"), Discount: dec("0.005")})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreateInvoice(ctx, financeUser, CreateInvoiceRequest{Subtotal: dec("10"), Discount: dec("10.50")})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreateInvoice(ctx, financeUser, CreateInvoiceRequest{Subtotal: dec("1000"), TaxRate: dec("0.08875")})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	missing := int64(99)
	_, err = f.svc.CreateInvoice(ctx, financeUser, CreateInvoiceRequest{OrderID: &missing})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRecordPaymentDerivesStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.repo.seed(Invoice{SalespersonID: sales.UserID, Status: workflow.InvoiceSent, TotalAmount: dec("1179.94"), AmountPaid: decimal.Zero})

	updated, payment, err := f.svc.RecordPayment(ctx, financeUser, inv.ID, PaymentRequest{Amount: dec("179.94"), Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, workflow.InvoicePartiallyPaid, updated.Status)
	assert.Equal(t, "179.94", updated.AmountPaid.StringFixed(2))
	assert.Equal(t, "1000.00", updated.Outstanding().StringFixed(2))
	assert.Equal(t, int64(1), payment.ID)

	_, _, err = f.svc.RecordPayment(ctx, financeUser, inv.ID, PaymentRequest{Amount: dec("1000.01"), Method: "card"})
	var verr *httpx.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["amount"], "$1,000.00")
	assert.Len(t, f.repo.payments[inv.ID], 1)

	updated, _, err = f.svc.RecordPayment(ctx, financeUser, inv.ID, PaymentRequest{Amount: dec("1000"), Method: "transfer"})
	require.NoError(t, err)
	assert.Equal(t, workflow.InvoicePaid, updated.Status)
	assert.True(t, updated.Outstanding().IsZero())

	_, _, err = f.svc.RecordPayment(ctx, financeUser, inv.ID, PaymentRequest{Amount: dec("1"), Method: "cash"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	var payments int
	for _, e := range f.activity.entries {
		if e.Action == activity.ActionPayment {
			payments++
		}
	}
	assert.Equal(t, 2, payments)
	assert.Len(t, f.notifier.sent, 2)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft := f.repo.seed(Invoice{SalespersonID: sales.UserID, TotalAmount: dec("100")})

	_, _, err := f.svc.RecordPayment(ctx, financeUser, draft.ID, PaymentRequest{Amount: dec("10"), Method: "cash"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = f.svc.RecordPayment(ctx, financeUser, draft.ID, PaymentRequest{Amount: dec("0"), Method: "cash"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = f.svc.RecordPayment(ctx, financeUser, draft.ID, PaymentRequest{Amount: dec("10"), Method: "barter"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = f.svc.RecordPayment(ctx, ops, draft.ID, PaymentRequest{Amount: dec("10"), Method: "cash"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestUpdateInvoiceStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.repo.seed(Invoice{SalespersonID: sales.UserID, TotalAmount: dec("100")})

	sent, err := f.svc.UpdateInvoiceStatus(ctx, financeUser, inv.ID, workflow.InvoiceSent)
	require.NoError(t, err)
	assert.Equal(t, workflow.InvoiceSent, sent.Status)
	require.Len(t, f.notifier.sent, 1)

	_, err = f.svc.UpdateInvoiceStatus(ctx, financeUser, inv.ID, workflow.InvoicePaid)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.UpdateInvoiceStatus(ctx, financeUser, inv.ID, workflow.InvoiceDraft)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	f.repo.invoices[inv.ID].AmountPaid = dec("10")
	_, err = f.svc.UpdateInvoiceStatus(ctx, financeUser, inv.ID, workflow.InvoiceCancelled)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, workflow.InvoiceSent, f.repo.invoices[inv.ID].Status)
}

func TestInvoiceVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mine := f.repo.seed(Invoice{SalespersonID: sales.UserID})
	f.repo.seed(Invoice{SalespersonID: other.UserID})

	_, err := f.svc.GetInvoice(ctx, sales, mine.ID)
	require.NoError(t, err)
	_, err = f.svc.GetInvoice(ctx, other, mine.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	page, err := f.svc.ListInvoices(ctx, sales, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = f.svc.ListInvoices(ctx, admin, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestAgingBuckets(t *testing.T) {
	f := newFixture()
	asOf := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	at := func(days int) *time.Time {
		d := asOf.AddDate(0, 0, -days)
		return &d
	}
	f.repo.seed(Invoice{SalespersonID: sales.UserID, Status: workflow.InvoiceSent, TotalAmount: dec("100"), DueDate: at(-5)})
	f.repo.seed(Invoice{SalespersonID: sales.UserID, Status: workflow.InvoicePartiallyPaid, TotalAmount: dec("100"), AmountPaid: dec("40"), DueDate: at(10)})
	f.repo.seed(Invoice{SalespersonID: other.UserID, Status: workflow.InvoiceSent, TotalAmount: dec("50"), DueDate: at(45)})
	f.repo.seed(Invoice{SalespersonID: other.UserID, Status: workflow.InvoiceSent, TotalAmount: dec("25"), DueDate: at(120)})
	f.repo.seed(Invoice{SalespersonID: other.UserID, Status: workflow.InvoicePaid, TotalAmount: dec("999"), AmountPaid: dec("999"), DueDate: at(120)})

	aging, err := f.svc.Aging(context.Background(), financeUser, asOf)
	require.NoError(t, err)
	assert.Equal(t, "100", aging.Current.String())
	assert.Equal(t, "60", aging.Days30.String())
	assert.Equal(t, "50", aging.Days60.String())
	assert.True(t, aging.Days90.IsZero())
	assert.Equal(t, "25", aging.Days90Plus.String())

	aging, err = f.svc.Aging(context.Background(), sales, asOf)
	require.NoError(t, err)
	assert.Equal(t, "100", aging.Current.String())
	assert.True(t, aging.Days60.IsZero())
}

func TestCreateInvoiceKeepsTotalsConsistent(t *testing.T) {
	f := newFixture()
	inv, err := f.svc.CreateInvoice(context.Background(), financeUser, CreateInvoiceRequest{
		Subtotal: dec("1085.00"),
		Discount: dec("85.15"),
		TaxRate:  dec("0.0875"),
	})
	require.NoError(t, err)
	assert.Equal(t, "85.15", inv.Discount.StringFixed(2))
	assert.True(t, inv.TotalAmount.Equal(inv.Subtotal.Sub(inv.Discount).Add(inv.TaxAmount)))
}
