// Package quotes manages customer quotes, their priced line items and the quote workflow.
package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/finance"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Status aliases the quote workflow state.
type Status = workflow.QuoteStatus

// Quote is a priced offer to a customer.
type Quote struct {
	ID            int64           `json:"id"`
	QuoteCode     string          `json:"quote_code"`
	OrgID         *int64          `json:"org_id,omitempty"`
	SalespersonID int64           `json:"salesperson_id"`
	Title         string          `json:"title"`
	Status        Status          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Notes         string          `json:"notes"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []LineItem      `json:"items"`
}

// LineItem is one priced line on a quote.
type LineItem struct {
	ID          int64           `json:"id"`
	QuoteID     int64           `json:"quote_id"`
	ItemName    string          `json:"item_name"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func (l LineItem) LineQuantity() int               { return l.Quantity }
func (l LineItem) LineUnitPrice() decimal.Decimal { return l.UnitPrice }

// CanEdit reports whether header fields and line items may change.
func (q Quote) CanEdit() bool {
	return q.Status == workflow.QuoteDraft
}

// CanDelete reports whether the quote may be hard-deleted.
func (q Quote) CanDelete() bool {
	return q.Status == workflow.QuoteDraft
}

// applyTotals copies a computed breakdown onto the quote.
func (q *Quote) applyTotals(t finance.Totals) {
	q.Subtotal = t.Subtotal
	q.Discount = t.Discount
	q.TaxRate = t.TaxRate
	q.TaxAmount = t.Tax
	q.Total = t.Total
}

// CanUserModifyQuote mirrors the order rule: view-all writers may modify any quote, plain writers
// only their own.
func CanUserModifyQuote(user rbac.Principal, q Quote) bool {
	if !user.Can(rbac.Quotes, rbac.ActionWrite) {
		return false
	}
	return user.Can(rbac.Quotes, rbac.ActionViewAll) || q.SalespersonID == user.UserID
}

// CanUserViewQuote allows modifiers, view-all readers and the owning salesperson.
func CanUserViewQuote(user rbac.Principal, q Quote) bool {
	if CanUserModifyQuote(user, q) || user.Can(rbac.Quotes, rbac.ActionViewAll) {
		return true
	}
	return user.Can(rbac.Quotes, rbac.ActionView) && q.SalespersonID == user.UserID
}
