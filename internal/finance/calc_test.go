package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
)

type item struct {
	qty   int
	price string
}

func (i item) LineQuantity() int               { return i.qty }
func (i item) LineUnitPrice() decimal.Decimal { return decimal.RequireFromString(i.price) }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTaxUsesDiscountedBase(t *testing.T) {
	tax, err := Tax(d("500"), d("50"), d("0.0875"))
	require.NoError(t, err)
	assert.Equal(t, "39.38", tax.StringFixed(2))

	total := Total(d("500"), d("50"), tax)
	assert.Equal(t, "489.38", total.StringFixed(2))
}

func TestComputeTotalsTwelveItems(t *testing.T) {
	items := []item{
		{qty: 12, price: "45.00"},
		{qty: 10, price: "38.50"},
		{qty: 5, price: "0.00"},
		{qty: 1, price: "160.00"},
	}
	// 540 + 385 + 0 + 160 = 1085
	totals, err := ComputeTotals(items, decimal.Zero, d("0.0875"))
	require.NoError(t, err)
	assert.Equal(t, "1085.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "94.94", totals.Tax.StringFixed(2))
	assert.Equal(t, "1179.94", totals.Total.StringFixed(2))
}

func TestDiscountLargerThanSubtotal(t *testing.T) {
	tax, err := Tax(d("100"), d("150"), d("0.1"))
	require.NoError(t, err)
	assert.True(t, tax.IsZero())
	assert.True(t, Total(d("100"), d("150"), tax).IsZero())
}

func TestLineTotalRounding(t *testing.T) {
	lt, err := LineTotal(3, d("0.335"))
	require.NoError(t, err)
	assert.Equal(t, "1.01", lt.StringFixed(2))

	lt, err = LineTotal(0, d("19.99"))
	require.NoError(t, err)
	assert.True(t, lt.IsZero())
}

func TestNegativeInputsRejected(t *testing.T) {
	_, err := LineTotal(-1, d("10"))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = LineTotal(1, d("-10"))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = Tax(d("100"), d("-5"), d("0.1"))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = ComputeTotals([]item{{qty: -2, price: "5"}}, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRateBounds(t *testing.T) {
	_, err := Tax(d("100"), decimal.Zero, d("1.5"))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = Tax(d("100"), decimal.Zero, d("-0.01"))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	tax, err := Tax(d("100"), decimal.Zero, d("1"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", tax.StringFixed(2))

	_, err = Commission([]decimal.Decimal{d("100")}, d("1.01"))
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCommission(t *testing.T) {
	totals := []decimal.Decimal{d("1179.94"), d("489.38"), d("2500")}
	earned, err := Commission(totals, d("0.1"))
	require.NoError(t, err)
	assert.Equal(t, "416.93", earned.StringFixed(2))

	pending, err := PendingCommission(totals, d("0.1"), []decimal.Decimal{d("200"), d("16.93")})
	require.NoError(t, err)
	assert.Equal(t, "200.00", pending.StringFixed(2))
}

func TestOutstanding(t *testing.T) {
	out, err := Outstanding(d("1179.94"), d("179.94"))
	require.NoError(t, err)
	assert.Equal(t, "1000.00", out.StringFixed(2))

	out, err = Outstanding(d("50"), d("50"))
	require.NoError(t, err)
	assert.True(t, out.IsZero())

	_, err = Outstanding(d("50"), d("50.01"))
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestFormatUSD(t *testing.T) {
	assert.Contains(t, FormatUSD(d("1179.94")), "1,179.94")
	assert.Equal(t, "$", FormatUSD(d("5"))[:1])
	assert.Equal(t, "-$", FormatUSD(d("-5"))[:2])
}

func TestStoredTotalsInvariant(t *testing.T) {
	items := []item{{qty: 3, price: "19.99"}, {qty: 1, price: "160.00"}}
	for _, tc := range []struct{ discount, rate string }{
		{"0", "0"},
		{"10.01", "0.0875"},
		{"219.97", "0.0725"},
		{"0.99", "1"},
	} {
		totals, err := ComputeTotals(items, d(tc.discount), d(tc.rate))
		require.NoError(t, err)
		want := totals.Subtotal.Sub(totals.Discount).Add(totals.Tax)
		assert.True(t, want.Equal(totals.Total), "discount %s rate %s: %s != %s", tc.discount, tc.rate, want, totals.Total)
		assert.True(t, totals.Discount.Equal(d(tc.discount)))
	}
}

func TestFractionalCentDiscountRejected(t *testing.T) {
	_, err := ComputeTotals([]item{{qty: 1, price: "10.00"}}, d("0.005"), decimal.Zero)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = Tax(d("10"), d("1.001"), decimal.Zero)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	// Trailing zeros are still whole cents.
	assert.NoError(t, CheckMoney("discount", d("1.500")))
}

func TestRatePrecisionMatchesStorage(t *testing.T) {
	err := CheckRate("tax_rate", d("0.08875"))
	var verr *httpx.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must have at most 4 decimal places", verr.Fields["tax_rate"])

	assert.NoError(t, CheckRate("tax_rate", d("0.0888")))
	_, err = Tax(d("1000"), decimal.Zero, d("0.08875"))
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCheckDiscount(t *testing.T) {
	assert.NoError(t, CheckDiscount(d("100"), d("100")))
	assert.ErrorIs(t, CheckDiscount(d("100"), d("100.01")), httpx.ErrValidation)
	assert.ErrorIs(t, CheckDiscount(d("100"), d("-1")), httpx.ErrValidation)
}
