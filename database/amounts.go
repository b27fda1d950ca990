package database

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// parseAmount converts a scanned NUMERIC column to a decimal. Amounts are
// scanned as strings to avoid float drift on money values.
func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}
