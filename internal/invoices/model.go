// Package invoices bills customers, records their payments and derives payment status.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/finance"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Status aliases the invoice workflow state.
type Status = workflow.InvoiceStatus

// Invoice is a bill issued to a customer, usually for one order.
type Invoice struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderID       *int64          `json:"order_id,omitempty"`
	OrgID         *int64          `json:"org_id,omitempty"`
	SalespersonID int64           `json:"salesperson_id"`
	Status        Status          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Notes         string          `json:"notes"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Payment is money received against an invoice.
type Payment struct {
	ID         int64           `json:"id"`
	InvoiceID  int64           `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	PaidAt     time.Time       `json:"paid_at"`
	RecordedBy int64           `json:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Outstanding is the unpaid balance; it is never negative for a consistent invoice.
func (i Invoice) Outstanding() decimal.Decimal {
	out, err := finance.Outstanding(i.TotalAmount, i.AmountPaid)
	if err != nil {
		return decimal.Zero
	}
	return out
}

// AcceptsPayments reports whether payments may be recorded.
func (i Invoice) AcceptsPayments() bool {
	return i.Status == workflow.InvoiceSent || i.Status == workflow.InvoicePartiallyPaid
}

// statusForPaid derives the payment status from the amount received so far.
func statusForPaid(total, paid decimal.Decimal) Status {
	if paid.GreaterThanOrEqual(total) {
		return workflow.InvoicePaid
	}
	return workflow.InvoicePartiallyPaid
}

// CanUserModifyInvoice: invoice writers with view-all rights may modify any invoice.
func CanUserModifyInvoice(user rbac.Principal, _ Invoice) bool {
	return user.Can(rbac.Invoices, rbac.ActionWrite) && user.Can(rbac.Invoices, rbac.ActionViewAll)
}

// CanUserViewInvoice allows view-all readers and the salesperson on the invoice.
func CanUserViewInvoice(user rbac.Principal, i Invoice) bool {
	if user.Can(rbac.Invoices, rbac.ActionViewAll) {
		return true
	}
	return user.Can(rbac.Invoices, rbac.ActionView) && i.SalespersonID == user.UserID
}

// CreateInvoiceRequest is the input of CreateInvoice. When OrderID is set and Subtotal is zero the
// order's total is billed.
type CreateInvoiceRequest struct {
	OrderID       *int64          `json:"order_id,omitempty"`
	OrgID         *int64          `json:"org_id,omitempty"`
	SalespersonID *int64          `json:"salesperson_id,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Notes         string          `json:"notes" validate:"max=4000"`
}

// PaymentRequest is the input of RecordPayment.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required,oneof=cash check card transfer other"`
	Reference string          `json:"reference" validate:"max=200"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

// UpdateStatusRequest is the body of the status endpoint.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// ListFilter narrows ListInvoices.
type ListFilter struct {
	Status        Status
	SalespersonID int64
	OrderID       int64
	Page          shared.PageRequest
}

// OrderSummary is the part of an order an invoice is billed from.
type OrderSummary struct {
	SalespersonID int64
	OrgID         *int64
	Total         decimal.Decimal
}

// Aging buckets the outstanding balance of open invoices by days past due.
type Aging struct {
	Current    decimal.Decimal `json:"current"`
	Days30     decimal.Decimal `json:"days_1_30"`
	Days60     decimal.Decimal `json:"days_31_60"`
	Days90     decimal.Decimal `json:"days_61_90"`
	Days90Plus decimal.Decimal `json:"days_90_plus"`
}
