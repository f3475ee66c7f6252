package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var symbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
}

// Formatter renders amounts for display only. Its output is not meant to be
// fed back into DecodeFromInput.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter builds a display formatter for the ISO 4217 currency code.
func NewFormatter(code string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	symbol, ok := symbols[unit.String()]
	if !ok {
		symbol = unit.String()
	}
	return &Formatter{
		printer: message.NewPrinter(language.German),
		symbol:  symbol,
	}, nil
}

// Format renders cents with the German locale's separators and the currency symbol.
func (f *Formatter) Format(cents int64) string {
	amount := decimal.New(cents, -fractionDigits).InexactFloat64()
	return f.printer.Sprintf("%v %s", number.Decimal(amount, number.Scale(fractionDigits)), f.symbol)
}

var defaultFormatter, _ = NewFormatter("EUR")

// Format renders cents in euros for display.
func Format(cents int64) string {
	return defaultFormatter.Format(cents)
}
