package finance

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders an amount like "$1,179.94" for human-facing text.
func FormatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "$" + usPrinter.Sprint(number.Decimal(Round2(d).InexactFloat64(), number.Scale(Scale)))
}
