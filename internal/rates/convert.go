package rates

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks a conversion rejected because of a non-finite or
// out-of-domain numeric input. Results carrying this error must not be stored.
var ErrInvalidInput = errors.New("rates: invalid input")

// GramsPerTroyOunce is the exact troy-ounce-to-gram conversion factor.
// Precious metals are quoted per troy ounce; retail rates are per gram.
const GramsPerTroyOunce = "31.1034768"

var gramsPerTroyOunce = decimal.RequireFromString(GramsPerTroyOunce)

// markupByMetal holds the combined import duty + tax + margin loading
// applied on top of the raw converted rate. Platinum carries no entry:
// it is never priced from a live rate.
var markupByMetal = map[Metal]decimal.Decimal{
	Gold:   decimal.RequireFromString("0.175"),
	Silver: decimal.RequireFromString("0.135"),
}

// Quote is a converted per-gram rate pair in the local currency.
type Quote struct {
	PerGramRaw   decimal.Decimal
	PerGramFinal decimal.Decimal
}

// Convert turns a USD-per-troy-ounce spot price into local per-gram rates:
// the raw rate after currency conversion, and the final rate with the
// metal's markup loaded on top. Both are rounded to 2 decimal places
// half-up, once, after all arithmetic.
func Convert(metal Metal, usdPerTroyOunce, usdToLocal float64) (Quote, error) {
	markup, ok := markupByMetal[metal]
	if !ok {
		return Quote{}, fmt.Errorf("%w: no loading policy for metal %q", ErrInvalidInput, metal)
	}
	if !isFinitePositive(usdPerTroyOunce) {
		return Quote{}, fmt.Errorf("%w: spot price %v", ErrInvalidInput, usdPerTroyOunce)
	}
	if !isFinitePositive(usdToLocal) {
		return Quote{}, fmt.Errorf("%w: fx rate %v", ErrInvalidInput, usdToLocal)
	}

	spot := decimal.NewFromFloat(usdPerTroyOunce)
	fx := decimal.NewFromFloat(usdToLocal)

	localPerOunce := spot.Mul(fx)
	raw := localPerOunce.Div(gramsPerTroyOunce)
	final := raw.Mul(decimal.NewFromInt(1).Add(markup))

	return Quote{
		PerGramRaw:   raw.Round(2),
		PerGramFinal: final.Round(2),
	}, nil
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
