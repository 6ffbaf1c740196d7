package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
)

type mockRepository struct {
	orders map[int64]*Order
	items  map[int64][]LineItem
	nextID int64
	seq    int64

	// Error injection
	txError     error
	getError    error
	statusError error
	writes      int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders: make(map[int64]*Order),
		items:  make(map[int64][]LineItem),
		nextID: 1,
	}
}

func (m *mockRepository) Get(_ context.Context, id int64) (Order, error) {
	if m.getError != nil {
		return Order{}, m.getError
	}
	o, ok := m.orders[id]
	if !ok {
		return Order{}, httpx.NotFound("order", id)
	}
	out := *o
	out.Items = append([]LineItem{}, m.items[id]...)
	return out, nil
}

func (m *mockRepository) List(_ context.Context, f ListFilter) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if o.IsArchived() {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.SalespersonID != 0 && o.SalespersonID != f.SalespersonID {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepository) NextOrderCode(_ context.Context, at time.Time) (string, error) {
	m.seq++
	return FormatOrderCode(at, m.seq), nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, &mockTxRepo{mock: m})
}

// seed stores an order directly, bypassing the service.
func (m *mockRepository) seed(o Order) Order {
	o.ID = m.nextID
	m.nextID++
	if o.Priority == "" {
		o.Priority = PriorityNormal
	}
	m.orders[o.ID] = &o
	return o
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) Insert(_ context.Context, o Order) (int64, error) {
	o.ID = t.mock.nextID
	t.mock.nextID++
	o.Items = nil
	t.mock.orders[o.ID] = &o
	t.mock.writes++
	return o.ID, nil
}

func (t *mockTxRepo) Update(_ context.Context, id int64, updates map[string]any) error {
	o, ok := t.mock.orders[id]
	if !ok {
		return httpx.NotFound("order", id)
	}
	for k, v := range updates {
		switch k {
		case "order_name":
			o.OrderName = v.(string)
		case "priority":
			o.Priority = v.(Priority)
		case "design_approved":
			o.DesignApproved = v.(bool)
		case "sizes_validated":
			o.SizesValidated = v.(bool)
		case "deposit_received":
			o.DepositReceived = v.(bool)
		case "notes":
			o.Notes = v.(string)
		case "total_amount":
			o.TotalAmount = v.(decimal.Decimal)
		default:
			return errors.New("unexpected column " + k)
		}
	}
	t.mock.writes++
	return nil
}

func (t *mockTxRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	if t.mock.statusError != nil {
		return t.mock.statusError
	}
	o, ok := t.mock.orders[id]
	if !ok {
		return httpx.NotFound("order", id)
	}
	o.Status = status
	t.mock.writes++
	return nil
}

func (t *mockTxRepo) ReplaceItems(_ context.Context, orderID int64, items []LineItem) error {
	stored := make([]LineItem, len(items))
	for i, li := range items {
		li.ID = int64(i + 1)
		li.OrderID = orderID
		stored[i] = li
	}
	t.mock.items[orderID] = stored
	return nil
}

func (t *mockTxRepo) Archive(_ context.Context, id int64, at time.Time) error {
	o, ok := t.mock.orders[id]
	if !ok || o.IsArchived() {
		return httpx.NotFound("order", id)
	}
	o.ArchivedAt = &at
	t.mock.writes++
	return nil
}

type recordingActivity struct {
	entries []activity.Entry
	err     error
}

func (r *recordingActivity) Record(_ context.Context, e activity.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

type recordingNotifier struct {
	sent []notifications.New
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notifications.New) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
