package storage

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePriceRange turns a storefront price filter expression into min/max
// bounds. Supported forms: "100-500", "1000+", "<500", and a bare number
// (matched with a tolerance of 1 either side). Unparseable input yields an
// unbounded filter rather than an error.
func ParsePriceRange(expr string) (min, max *decimal.Decimal) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	switch {
	case strings.Contains(expr, "-"):
		parts := strings.SplitN(expr, "-", 2)
		lo, loErr := decimal.NewFromString(strings.TrimSpace(parts[0]))
		hi, hiErr := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if loErr != nil || hiErr != nil {
			return nil, nil
		}
		return &lo, &hi

	case strings.HasSuffix(expr, "+"):
		lo, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(expr, "+")))
		if err != nil {
			return nil, nil
		}
		return &lo, nil

	case strings.HasPrefix(expr, "<"):
		hi, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(expr, "<")))
		if err != nil {
			return nil, nil
		}
		return nil, &hi

	default:
		exact, err := decimal.NewFromString(expr)
		if err != nil {
			return nil, nil
		}
		one := decimal.NewFromInt(1)
		lo := exact.Sub(one)
		hi := exact.Add(one)
		return &lo, &hi
	}
}
