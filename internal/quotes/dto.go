package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/shared"
)

// LineItemInput describes a new line.
type LineItemInput struct {
	ItemName    string          `json:"item_name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=1000"`
	Quantity    int             `json:"quantity" validate:"min=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineItemPatch edits an existing line. Nil fields are left untouched.
type LineItemPatch struct {
	ItemName    *string          `json:"item_name,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	Quantity    *int             `json:"quantity,omitempty" validate:"omitempty,min=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateQuoteRequest is the input of CreateQuote.
type CreateQuoteRequest struct {
	Title         string          `json:"title" validate:"required,max=200"`
	OrgID         *int64          `json:"org_id,omitempty"`
	SalespersonID *int64          `json:"salesperson_id,omitempty"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Notes         string          `json:"notes" validate:"max=4000"`
	Items         []LineItemInput `json:"items" validate:"dive"`
}

// UpdateQuoteRequest patches header fields of a draft quote.
type UpdateQuoteRequest struct {
	Title      *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	Discount   *decimal.Decimal `json:"discount,omitempty"`
	TaxRate    *decimal.Decimal `json:"tax_rate,omitempty"`
	ValidUntil *time.Time       `json:"valid_until,omitempty"`
	Notes      *string          `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// UpdateStatusRequest is the body of the status endpoint.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// ListFilter narrows ListQuotes.
type ListFilter struct {
	Status        Status
	SalespersonID int64
	Search        string
	Page          shared.PageRequest
}
