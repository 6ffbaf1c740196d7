package quotes

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/finance"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

type mockRepository struct {
	quotes     map[int64]*Quote
	items      map[int64][]LineItem
	nextID     int64
	nextItemID int64
	seq        int64

	txError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		quotes:     make(map[int64]*Quote),
		items:      make(map[int64][]LineItem),
		nextID:     1,
		nextItemID: 1,
	}
}

func (m *mockRepository) Get(_ context.Context, id int64) (Quote, error) {
	q, ok := m.quotes[id]
	if !ok {
		return Quote{}, httpx.NotFound("quote", id)
	}
	out := *q
	out.Items = append([]LineItem{}, m.items[id]...)
	return out, nil
}

func (m *mockRepository) List(_ context.Context, f ListFilter) ([]Quote, int, error) {
	var out []Quote
	for _, q := range m.quotes {
		if f.Status != "" && q.Status != f.Status {
			continue
		}
		if f.SalespersonID != 0 && q.SalespersonID != f.SalespersonID {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepository) ListExpirable(_ context.Context, now time.Time) ([]Quote, error) {
	var out []Quote
	for _, q := range m.quotes {
		if q.Status == workflow.QuoteSent && q.ValidUntil != nil && q.ValidUntil.Before(now) {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) NextQuoteCode(_ context.Context, at time.Time) (string, error) {
	m.seq++
	return FormatQuoteCode(at, m.seq), nil
}

// WithTx applies writes to a copy and swaps it in only when fn succeeds.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	staged := m.clone()
	if err := fn(ctx, &mockTxRepo{mock: staged}); err != nil {
		return err
	}
	*m = *staged
	return nil
}

func (m *mockRepository) clone() *mockRepository {
	c := *m
	c.quotes = make(map[int64]*Quote, len(m.quotes))
	for id, q := range m.quotes {
		cp := *q
		c.quotes[id] = &cp
	}
	c.items = make(map[int64][]LineItem, len(m.items))
	for id, items := range m.items {
		c.items[id] = append([]LineItem{}, items...)
	}
	return &c
}

func (m *mockRepository) seed(q Quote, items ...LineItem) Quote {
	q.ID = m.nextID
	m.nextID++
	if q.Status == "" {
		q.Status = workflow.QuoteDraft
	}
	for i := range items {
		items[i].ID = m.nextItemID
		m.nextItemID++
		items[i].QuoteID = q.ID
	}
	m.items[q.ID] = items
	m.quotes[q.ID] = &q
	return q
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) Insert(_ context.Context, q Quote) (int64, error) {
	q.ID = t.mock.nextID
	t.mock.nextID++
	q.Items = nil
	t.mock.quotes[q.ID] = &q
	return q.ID, nil
}

func (t *mockTxRepo) UpdateHeader(_ context.Context, q Quote) error {
	stored, ok := t.mock.quotes[q.ID]
	if !ok {
		return httpx.NotFound("quote", q.ID)
	}
	stored.Title = q.Title
	stored.Discount = q.Discount
	stored.TaxRate = q.TaxRate
	stored.ValidUntil = q.ValidUntil
	stored.Notes = q.Notes
	return nil
}

func (t *mockTxRepo) SaveTotals(_ context.Context, id int64, totals finance.Totals) error {
	stored, ok := t.mock.quotes[id]
	if !ok {
		return httpx.NotFound("quote", id)
	}
	stored.applyTotals(totals)
	return nil
}

func (t *mockTxRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	stored, ok := t.mock.quotes[id]
	if !ok {
		return httpx.NotFound("quote", id)
	}
	stored.Status = status
	return nil
}

func (t *mockTxRepo) Delete(_ context.Context, id int64) error {
	if _, ok := t.mock.quotes[id]; !ok {
		return httpx.NotFound("quote", id)
	}
	delete(t.mock.quotes, id)
	delete(t.mock.items, id)
	return nil
}

func (t *mockTxRepo) ListItems(_ context.Context, quoteID int64) ([]LineItem, error) {
	return append([]LineItem{}, t.mock.items[quoteID]...), nil
}

func (t *mockTxRepo) InsertItem(_ context.Context, li LineItem) (int64, error) {
	li.ID = t.mock.nextItemID
	t.mock.nextItemID++
	t.mock.items[li.QuoteID] = append(t.mock.items[li.QuoteID], li)
	return li.ID, nil
}

func (t *mockTxRepo) UpdateItem(_ context.Context, li LineItem) error {
	items := t.mock.items[li.QuoteID]
	for i := range items {
		if items[i].ID == li.ID {
			items[i] = li
			return nil
		}
	}
	return httpx.NotFound("quote line item", li.ID)
}

func (t *mockTxRepo) DeleteItem(_ context.Context, quoteID, itemID int64) error {
	items := t.mock.items[quoteID]
	for i := range items {
		if items[i].ID == itemID {
			t.mock.items[quoteID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return httpx.NotFound("quote line item", itemID)
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
