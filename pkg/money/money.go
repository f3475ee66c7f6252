// Package money converts integer minor-unit amounts to and from the portal's
// locale-formatted input text. Amounts never pass through floating point on
// the input path.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ThousandsSeparator = "."
	DecimalSeparator   = ","

	fractionDigits = 2
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// EncodeForInput renders cents with two fraction digits and grouped thousands.
// Zero renders as the empty string, which input fields treat as unset.
func EncodeForInput(cents int64) string {
	if cents == 0 {
		return ""
	}
	fixed := decimal.New(cents, -fractionDigits).StringFixed(fractionDigits)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	whole, frac, _ := strings.Cut(fixed, ".")
	out := groupThousands(whole) + DecimalSeparator + frac
	if negative {
		return "-" + out
	}
	return out
}

// DecodeFromInput parses user text back into cents. Anything other than
// digits and separators is ignored, a leading minus is kept, and input that
// still cannot be parsed decodes to zero.
func DecodeFromInput(text string) int64 {
	trimmed := strings.TrimSpace(text)
	negative := strings.HasPrefix(trimmed, "-")

	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case string(r) == DecimalSeparator:
			b.WriteByte('.')
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." || strings.Count(cleaned, ".") > 1 {
		return 0
	}
	if strings.HasPrefix(cleaned, ".") {
		cleaned = "0" + cleaned
	}
	if strings.HasSuffix(cleaned, ".") {
		cleaned += "0"
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}
	cents := amount.Shift(fractionDigits).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0
	}
	value := cents.IntPart()
	if negative {
		return -value
	}
	return value
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	var b strings.Builder
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(ThousandsSeparator)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
