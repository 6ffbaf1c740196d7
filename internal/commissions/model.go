// Package commissions tracks what salespeople have earned on completed orders and what has been
// paid out to them.
package commissions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Salesperson is the commission profile of a user.
type Salesperson struct {
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

// Summary is the commission position of one salesperson.
type Summary struct {
	Salesperson
	CompletedOrders int             `json:"completed_orders"`
	SalesTotal      decimal.Decimal `json:"sales_total"`
	Earned          decimal.Decimal `json:"earned"`
	Paid            decimal.Decimal `json:"paid"`
	Pending         decimal.Decimal `json:"pending"`
}

// Payment is a commission payout.
type Payment struct {
	ID            int64           `json:"id"`
	SalespersonID int64           `json:"salesperson_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Period        string          `json:"period"`
	Notes         string          `json:"notes"`
	PaidAt        time.Time       `json:"paid_at"`
	RecordedBy    int64           `json:"recorded_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentRequest is the input of RecordPayment.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Period string          `json:"period" validate:"required,datetime=2006-01"`
	Notes  string          `json:"notes" validate:"max=1000"`
	PaidAt *time.Time      `json:"paid_at,omitempty"`
}

// CanUserViewCommission allows view-all readers and the salesperson themself.
func CanUserViewCommission(user rbac.Principal, salespersonID int64) bool {
	if user.Can(rbac.Commissions, rbac.ActionViewAll) {
		return true
	}
	return user.Can(rbac.Commissions, rbac.ActionView) && user.UserID == salespersonID
}

// CanUserPayCommission allows commission writers with view-all rights.
func CanUserPayCommission(user rbac.Principal) bool {
	return user.Can(rbac.Commissions, rbac.ActionWrite) && user.Can(rbac.Commissions, rbac.ActionViewAll)
}
