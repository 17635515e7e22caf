package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"jewelry-rates/internal/service"
)

// Refresh runs a single refresh cycle and prints the per-metal report.
func (a *App) Refresh(ctx context.Context) error {
	svc, store, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()
	if store == nil {
		return errors.New("database not configured; cannot refresh rates")
	}

	results := svc.RefreshRates(ctx)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Metal\tStatus\tRaw/g\tFinal/g\tReason")
	for _, res := range results {
		raw, final := "-", "-"
		if res.Status == service.StatusSucceeded {
			raw = res.PerGramRaw.StringFixed(2)
			final = res.PerGramFinal.StringFixed(2)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", res.Metal, res.Status, raw, final, res.Reason)
	}
	return writer.Flush()
}

// Latest prints the canonical final rate per tracked metal.
func (a *App) Latest(ctx context.Context) error {
	svc, store, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()
	if store == nil {
		return errors.New("database not configured; cannot read rates")
	}

	latest, err := svc.GetLatestRates(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "gold: %s/g\nsilver: %s/g\n", latest.Gold.StringFixed(2), latest.Silver.StringFixed(2))
	return nil
}
