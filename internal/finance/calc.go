// Package finance implements the money arithmetic behind quotes, orders, invoices and commissions.
//
// All amounts are decimals rounded half-up to cents. Tax is always levied on the discounted base.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
)

// Scale is the number of decimal places kept on every money value.
const Scale = 2

// RateScale is the number of decimal places a stored rate keeps.
const RateScale = 4

var one = decimal.NewFromInt(1)

// Line is anything priced by quantity × unit price.
type Line interface {
	LineQuantity() int
	LineUnitPrice() decimal.Decimal
}

// Totals is the full breakdown for a priced document.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Total    decimal.Decimal `json:"total"`
}

// Round2 rounds half-up to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// LineTotal is quantity × unit price, rounded to cents.
func LineTotal(quantity int, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if quantity < 0 {
		return decimal.Zero, httpx.InvalidField("quantity", "must not be negative")
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, httpx.InvalidField("unit_price", "must not be negative")
	}
	return Round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity)))), nil
}

// Subtotal sums the line totals of items.
func Subtotal[L Line](items []L) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, item := range items {
		lt, err := LineTotal(item.LineQuantity(), item.LineUnitPrice())
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(lt)
	}
	return sum, nil
}

// TaxableBase is subtotal minus discount, floored at zero.
func TaxableBase(subtotal, discount decimal.Decimal) decimal.Decimal {
	base := subtotal.Sub(discount)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

// Tax is round2(max(subtotal - discount, 0) × rate).
func Tax(subtotal, discount, taxRate decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount("subtotal", subtotal); err != nil {
		return decimal.Zero, err
	}
	if err := CheckMoney("discount", discount); err != nil {
		return decimal.Zero, err
	}
	if err := CheckRate("tax_rate", taxRate); err != nil {
		return decimal.Zero, err
	}
	return Round2(TaxableBase(subtotal, discount).Mul(taxRate)), nil
}

// Total is max(subtotal - discount, 0) + tax. For discount <= subtotal this is exactly
// subtotal - discount + tax; CheckDiscount keeps user input on that side.
func Total(subtotal, discount, tax decimal.Decimal) decimal.Decimal {
	return Round2(TaxableBase(subtotal, discount).Add(tax))
}

// ComputeTotals derives the whole breakdown from line items, discount and tax rate.
func ComputeTotals[L Line](items []L, discount, taxRate decimal.Decimal) (Totals, error) {
	subtotal, err := Subtotal(items)
	if err != nil {
		return Totals{}, err
	}
	tax, err := Tax(subtotal, discount, taxRate)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		TaxRate:  taxRate,
		Tax:      tax,
		Total:    Total(subtotal, discount, tax),
	}, nil
}

// Commission is round2(Σ orderTotals × rate).
func Commission(orderTotals []decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, error) {
	if err := CheckRate("commission_rate", rate); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range orderTotals {
		if err := checkAmount("order_total", t); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(t)
	}
	return Round2(sum.Mul(rate)), nil
}

// PendingCommission is the earned commission minus what has already been paid out. It may be negative
// when payouts were made ahead of sales; callers decide how to present that.
func PendingCommission(orderTotals []decimal.Decimal, rate decimal.Decimal, payments []decimal.Decimal) (decimal.Decimal, error) {
	earned, err := Commission(orderTotals, rate)
	if err != nil {
		return decimal.Zero, err
	}
	return earned.Sub(Sum(payments)), nil
}

// Outstanding is total minus paid. Overpayment is a validation error.
func Outstanding(total, paid decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount("amount_paid", paid); err != nil {
		return decimal.Zero, err
	}
	if paid.GreaterThan(total) {
		return decimal.Zero, httpx.InvalidField("amount_paid", "exceeds invoice total")
	}
	return Round2(total.Sub(paid)), nil
}

// Sum adds amounts.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum
}

// CheckRate rejects rates outside [0, 1] and rates finer than RateScale places, which storage would
// round away and later recalculations would then disagree with.
func CheckRate(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(one) {
		return httpx.InvalidField(field, "must be between 0 and 1")
	}
	if !rate.Equal(rate.Round(RateScale)) {
		return httpx.InvalidField(field, "must have at most 4 decimal places")
	}
	return nil
}

// CheckMoney rejects negative amounts and fractions of a cent.
func CheckMoney(field string, amount decimal.Decimal) error {
	if err := checkAmount(field, amount); err != nil {
		return err
	}
	if !amount.Equal(Round2(amount)) {
		return httpx.InvalidField(field, "must not have fractions of a cent")
	}
	return nil
}

// CheckDiscount rejects a discount the document's subtotal cannot absorb.
func CheckDiscount(subtotal, discount decimal.Decimal) error {
	if err := CheckMoney("discount", discount); err != nil {
		return err
	}
	if discount.GreaterThan(subtotal) {
		return httpx.InvalidField("discount", "must not exceed the subtotal")
	}
	return nil
}

// CheckPositive rejects zero and negative amounts.
func CheckPositive(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return httpx.InvalidField(field, "must be greater than zero")
	}
	return nil
}

func checkAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return httpx.InvalidField(field, "must not be negative")
	}
	return nil
}
