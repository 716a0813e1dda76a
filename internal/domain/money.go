package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders minor units as "$1,234.50".
func FormatMoney(minor int64) string {
	s := decimal.NewFromInt(minor).Shift(-2).Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if minor < 0 {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
