package invoices

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

type mockRepository struct {
	invoices map[int64]*Invoice
	payments map[int64][]Payment
	orders   map[int64]OrderSummary
	nextID   int64
	seq      int64
	txError  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		invoices: make(map[int64]*Invoice),
		payments: make(map[int64][]Payment),
		orders:   make(map[int64]OrderSummary),
		nextID:   1,
	}
}

func (m *mockRepository) Get(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, httpx.NotFound("invoice", id)
	}
	return *inv, nil
}

func (m *mockRepository) List(_ context.Context, f ListFilter) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.SalespersonID != 0 && inv.SalespersonID != f.SalespersonID {
			continue
		}
		if f.OrderID != 0 && (inv.OrderID == nil || *inv.OrderID != f.OrderID) {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepository) ListOpen(_ context.Context, salespersonID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if !inv.AcceptsPayments() {
			continue
		}
		if salespersonID != 0 && inv.SalespersonID != salespersonID {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (m *mockRepository) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	return append([]Payment{}, m.payments[invoiceID]...), nil
}

func (m *mockRepository) OrderSummary(_ context.Context, orderID int64) (OrderSummary, error) {
	s, ok := m.orders[orderID]
	if !ok {
		return OrderSummary{}, httpx.NotFound("order", orderID)
	}
	return s, nil
}

func (m *mockRepository) NextInvoiceNumber(_ context.Context, at time.Time) (string, error) {
	m.seq++
	return FormatInvoiceNumber(at, m.seq), nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	staged := &mockRepository{
		invoices: make(map[int64]*Invoice, len(m.invoices)),
		payments: make(map[int64][]Payment, len(m.payments)),
		orders:   m.orders,
		nextID:   m.nextID,
		seq:      m.seq,
	}
	for id, inv := range m.invoices {
		cp := *inv
		staged.invoices[id] = &cp
	}
	for id, p := range m.payments {
		staged.payments[id] = append([]Payment{}, p...)
	}
	if err := fn(ctx, &mockTxRepo{mock: staged}); err != nil {
		return err
	}
	*m = *staged
	return nil
}

func (m *mockRepository) seed(inv Invoice) Invoice {
	inv.ID = m.nextID
	m.nextID++
	if inv.Status == "" {
		inv.Status = workflow.InvoiceDraft
	}
	m.invoices[inv.ID] = &inv
	return inv
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) Insert(_ context.Context, inv Invoice) (int64, error) {
	inv.ID = t.mock.nextID
	t.mock.nextID++
	t.mock.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (t *mockTxRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	inv, ok := t.mock.invoices[id]
	if !ok {
		return httpx.NotFound("invoice", id)
	}
	inv.Status = status
	return nil
}

func (t *mockTxRepo) InsertPayment(_ context.Context, p Payment) (int64, error) {
	p.ID = int64(len(t.mock.payments[p.InvoiceID]) + 1)
	t.mock.payments[p.InvoiceID] = append(t.mock.payments[p.InvoiceID], p)
	return p.ID, nil
}

func (t *mockTxRepo) SumPayments(_ context.Context, invoiceID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.mock.payments[invoiceID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (t *mockTxRepo) SetPaid(_ context.Context, id int64, paid decimal.Decimal, status Status) error {
	inv := t.mock.invoices[id]
	inv.AmountPaid = paid
	inv.Status = status
	return nil
}

type recordingActivity struct {
	entries []activity.Entry
}

func (r *recordingActivity) Record(_ context.Context, e activity.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

type recordingNotifier struct {
	sent []notifications.New
}

func (r *recordingNotifier) Notify(_ context.Context, n notifications.New) error {
	r.sent = append(r.sent, n)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
