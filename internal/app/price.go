package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"jewelry-rates/internal/pricing"
	"jewelry-rates/internal/rates"
	"jewelry-rates/internal/service"
)

// Price computes a product price ad hoc, without saving anything. With
// --rate the lookup is stubbed to the given final rate; otherwise the
// latest stored rate for the material is used.
func (a *App) Price(ctx context.Context, opts PriceOptions) error {
	mode, err := pricing.ParseMode(opts.Mode)
	if err != nil {
		return err
	}

	input := pricing.Input{
		Mode:        mode,
		ManualPrice: opts.ManualPrice,
		Material:    opts.Material,
		WeightGrams: opts.WeightGrams,
	}

	var result pricing.Result
	if opts.RateOverride != "" {
		override, parseErr := decimal.NewFromString(opts.RateOverride)
		if parseErr != nil {
			return fmt.Errorf("invalid --rate value: %w", parseErr)
		}
		result, err = pricing.ComputePrice(input, staticLookup(override))
	} else {
		result, err = a.priceFromStore(ctx, input)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "price: %s\nrate used: %s/g\n",
		result.Price.StringFixed(2),
		result.RatePerGram.StringFixed(2),
	)
	return nil
}

func (a *App) priceFromStore(ctx context.Context, input pricing.Input) (pricing.Result, error) {
	svc, store, closer, err := a.newService(ctx)
	if err != nil {
		return pricing.Result{}, err
	}
	defer closer()
	if store == nil {
		return pricing.Result{}, errors.New("database not configured; pass --rate to price without storage")
	}

	return svc.ComputePrice(ctx, service.ProductInput{
		Mode:        input.Mode,
		ManualPrice: input.ManualPrice,
		Material:    input.Material,
		WeightGrams: input.WeightGrams,
	})
}

// staticLookup answers every material with a fixed final rate.
func staticLookup(rate decimal.Decimal) pricing.RateLookup {
	return func(rates.Metal) decimal.Decimal {
		return rate
	}
}
