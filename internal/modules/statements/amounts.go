package statements

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amountReplacer strips thousands separators, currency and percent signs.
var amountReplacer = strings.NewReplacer(",", "", "$", "", "%", "")

// parseDecimal parses a statement figure such as "1,234.56", "$-12" or "3.2%".
func parseDecimal(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountReplacer.Replace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

func parseAmount(s string) (float64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// sumAmounts adds figures exactly before converting back to float.
func sumAmounts(values []decimal.Decimal) float64 {
	return decimal.Sum(decimal.Zero, values...).InexactFloat64()
}
