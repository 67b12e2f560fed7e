// Package money holds the decimal arithmetic shared by the cart and the ledger.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Scale is the number of minor-unit digits every stored amount keeps.
const Scale = 2

var (
	Zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Round rounds an amount to Scale digits, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Tax returns subtotal x rate rounded to the currency scale.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(rate))
}

// LineTotal is unitPrice x quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ToMinor converts an amount to integer minor units (cents).
func ToMinor(d decimal.Decimal) int64 {
	return Round(d).Mul(hundred).IntPart()
}

// FromMinor converts integer minor units back to an amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}

// Parse reads a decimal string such as a NUMERIC column rendered as text.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// ParseRate reads a tax rate and checks it lies in [0, 1).
func ParseRate(s string) (decimal.Decimal, error) {
	r, err := Parse(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("tax rate %s out of range [0, 1)", s)
	}
	return r, nil
}

// Formatter renders amounts for receipts, e.g. "Rp 15.000".
type Formatter struct {
	Symbol  string
	printer *message.Printer
	decimal string
}

// NewFormatter builds a Formatter using the grouping rules of lang.
// An unparseable tag falls back to Indonesian.
func NewFormatter(lang, symbol string) *Formatter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Indonesian
	}
	p := message.NewPrinter(tag)
	// "1<sep>5": the locale's decimal separator sits between the digits.
	half := p.Sprintf("%.1f", 1.5)
	return &Formatter{Symbol: symbol, printer: p, decimal: half[1 : len(half)-1]}
}

// Format prints whole currency units with the locale's grouping separator.
// Minor units are printed only when present, straight from the decimal.
func (f *Formatter) Format(d decimal.Decimal) string {
	d = Round(d)
	whole := d.Abs().Truncate(0)
	body := f.printer.Sprintf("%d", whole.IntPart())
	if frac := d.Abs().Sub(whole); !frac.IsZero() {
		body += f.decimal + frac.StringFixed(Scale)[2:]
	}
	if d.IsNegative() {
		body = "-" + body
	}
	if f.Symbol == "" {
		return body
	}
	return f.Symbol + " " + body
}
