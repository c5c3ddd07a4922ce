package utils

import (
	"strings"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FormatXAF renders an amount in whole francs with space-grouped thousands.
// Example: 1234567.6 returns "1 234 568 XAF"
func FormatXAF(amount decimal.Decimal) string {
	digits := amount.Abs().Round(0).StringFixed(0)

	var b strings.Builder
	if amount.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(" " + domain.Currency)
	return b.String()
}

// FormatWithPrecision formats an amount with the given precision
// This is a convenience function when you only have the precision value
func FormatWithPrecision(amount decimal.Decimal, precision int) string {
	return amount.Round(int32(precision)).String()
}
