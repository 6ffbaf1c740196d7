package orders

import (
	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/shared"
)

// LineItemInput describes a line on create or replace.
type LineItemInput struct {
	ItemName  string          `json:"item_name" validate:"required,max=200"`
	Size      string          `json:"size" validate:"max=20"`
	Quantity  int             `json:"quantity" validate:"min=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderRequest is the input of CreateOrder.
type CreateOrderRequest struct {
	OrderName     string          `json:"order_name" validate:"required,max=200"`
	OrgID         *int64          `json:"org_id,omitempty"`
	SalespersonID *int64          `json:"salesperson_id,omitempty"`
	Priority      Priority        `json:"priority" validate:"omitempty,oneof=low normal high"`
	Notes         string          `json:"notes" validate:"max=4000"`
	Items         []LineItemInput `json:"items" validate:"dive"`
}

// UpdateOrderRequest patches an order. Nil fields are left untouched; Items, when present, replaces
// every line.
type UpdateOrderRequest struct {
	OrderName       *string          `json:"order_name,omitempty" validate:"omitempty,max=200"`
	Priority        *Priority        `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	DesignApproved  *bool            `json:"design_approved,omitempty"`
	SizesValidated  *bool            `json:"sizes_validated,omitempty"`
	DepositReceived *bool            `json:"deposit_received,omitempty"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=4000"`
	Items           *[]LineItemInput `json:"items,omitempty" validate:"omitempty,dive"`
}

// UpdateStatusRequest is the body of the status endpoint.
type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// ListFilter narrows ListOrders.
type ListFilter struct {
	Status        Status
	SalespersonID int64
	Search        string
	Page          shared.PageRequest
}
