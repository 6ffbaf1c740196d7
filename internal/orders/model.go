// Package orders manages customer orders: creation, edits, status workflow and access rules.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Status aliases the order workflow state.
type Status = workflow.OrderStatus

// Priority orders the production queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Order is a customer order.
type Order struct {
	ID              int64           `json:"id"`
	OrderCode       string          `json:"order_code"`
	OrgID           *int64          `json:"org_id,omitempty"`
	SalespersonID   int64           `json:"salesperson_id"`
	OrderName       string          `json:"order_name"`
	Status          Status          `json:"status"`
	Priority        Priority        `json:"priority"`
	DesignApproved  bool            `json:"design_approved"`
	SizesValidated  bool            `json:"sizes_validated"`
	DepositReceived bool            `json:"deposit_received"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Notes           string          `json:"notes"`
	CreatedBy       int64           `json:"created_by"`
	ArchivedAt      *time.Time      `json:"archived_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []LineItem      `json:"items"`
}

// LineItem is one garment line on an order.
type LineItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ItemName  string          `json:"item_name"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func (l LineItem) LineQuantity() int               { return l.Quantity }
func (l LineItem) LineUnitPrice() decimal.Decimal { return l.UnitPrice }

// IsArchived reports whether the order was soft-deleted.
func (o Order) IsArchived() bool {
	return o.ArchivedAt != nil
}

// CanEdit reports whether the order's fields may still change.
func (o Order) CanEdit() bool {
	return o.Status != workflow.OrderCompleted
}

// IsValidOrderStatusTransition reports whether from → to is permitted.
func IsValidOrderStatusTransition(from, to Status) bool {
	return workflow.Orders.Allows(from, to)
}

// CanUserModifyOrder: roles with view-all write rights may modify any order; roles with plain write
// rights only their own.
func CanUserModifyOrder(user rbac.Principal, o Order) bool {
	if !user.Can(rbac.Orders, rbac.ActionWrite) {
		return false
	}
	if user.Can(rbac.Orders, rbac.ActionViewAll) {
		return true
	}
	return o.SalespersonID == user.UserID
}

// CanUserViewOrder extends modify rights with read-only view-all roles such as finance.
func CanUserViewOrder(user rbac.Principal, o Order) bool {
	if CanUserModifyOrder(user, o) || user.Can(rbac.Orders, rbac.ActionViewAll) {
		return true
	}
	return user.Can(rbac.Orders, rbac.ActionView) && o.SalespersonID == user.UserID
}

type statusSnapshot struct {
	Status Status `json:"status"`
}
