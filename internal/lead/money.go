package lead

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a currency amount into an exact decimal. Accepts
// "$45,750.00", "45750", "USD 45,750.00". Currency rounding drift from
// float parsing is not acceptable here, so everything goes through
// decimal.NewFromString.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "USD")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ':
			return -1
		}
		return r
	}, cleaned)

	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount %q", s)
	}
	return d, nil
}
