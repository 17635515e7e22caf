package fetcher

import (
	"context"
	"errors"

	"jewelry-rates/internal/rates"
)

// ErrSourceUnavailable marks any failure at the external-provider boundary:
// network errors, timeouts, non-2xx responses, or malformed payloads.
// Callers treat it as "no observation this cycle", never as a hard failure.
var ErrSourceUnavailable = errors.New("fetcher: source unavailable")

// SpotPriceFetcher retrieves the USD-per-troy-ounce spot price for a metal.
type SpotPriceFetcher interface {
	FetchSpot(ctx context.Context, metal rates.Metal) (float64, error)
}

// FXRateFetcher retrieves the USD to local-currency exchange rate.
type FXRateFetcher interface {
	FetchRate(ctx context.Context) (float64, error)
}
