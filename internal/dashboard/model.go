// Package dashboard assembles the role-based landing summary.
package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/rbac"
)

// StatusCounts maps a workflow status to the number of records in it.
type StatusCounts map[string]int

// InvoiceSnapshot summarises receivables.
type InvoiceSnapshot struct {
	Open          int             `json:"open"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	Overdue       int             `json:"overdue"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
}

// TaskSnapshot summarises unfinished tasks.
type TaskSnapshot struct {
	Open    int `json:"open"`
	Overdue int `json:"overdue"`
	DueSoon int `json:"due_soon"`
}

// CommissionSnapshot is the caller's own commission position.
type CommissionSnapshot struct {
	Earned  decimal.Decimal `json:"earned"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
}

// Summary is the dashboard payload. Sections the role cannot see are omitted.
type Summary struct {
	Role                rbac.Role           `json:"role"`
	GeneratedAt         time.Time           `json:"generated_at"`
	Orders              StatusCounts        `json:"orders,omitempty"`
	Quotes              StatusCounts        `json:"quotes,omitempty"`
	Manufacturing       StatusCounts        `json:"manufacturing,omitempty"`
	Invoices            *InvoiceSnapshot    `json:"invoices,omitempty"`
	Tasks               TaskSnapshot        `json:"tasks"`
	Commission          *CommissionSnapshot `json:"commission,omitempty"`
	UnreadNotifications int                 `json:"unread_notifications"`
}
