package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Round2 rounds an amount to cents.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ParseMoney converts a NUMERIC column scanned as text into a decimal.
func ParseMoney(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", raw, err)
	}
	return v, nil
}

// MoneyArg renders an amount for a NUMERIC(18,2) parameter.
func MoneyArg(v decimal.Decimal) string {
	return v.StringFixed(2)
}
