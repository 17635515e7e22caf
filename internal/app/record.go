package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"jewelry-rates/internal/rates"
)

// Record appends a manual rate observation.
func (a *App) Record(ctx context.Context, opts RecordOptions) error {
	metal, err := rates.Parse(opts.Metal)
	if err != nil {
		return err
	}

	raw, err := decimal.NewFromString(opts.Raw)
	if err != nil {
		return fmt.Errorf("invalid --raw value: %w", err)
	}
	final, err := decimal.NewFromString(opts.Final)
	if err != nil {
		return fmt.Errorf("invalid --final value: %w", err)
	}

	svc, store, closer, svcErr := a.newService(ctx)
	if svcErr != nil {
		return svcErr
	}
	defer closer()
	if store == nil {
		return errors.New("database not configured; cannot record rates")
	}

	observation, err := svc.RecordManualRate(ctx, metal, raw, final)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "recorded %s: raw %s/g, final %s/g (source %s)\n",
		observation.Metal,
		observation.PerGramRaw.StringFixed(2),
		observation.PerGramFinal.StringFixed(2),
		observation.Source,
	)
	return nil
}
