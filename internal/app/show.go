package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"jewelry-rates/internal/storage"
)

type rateLister interface {
	ListRecentRates(ctx context.Context, limit int) ([]storage.MetalRate, error)
}

type alertLister interface {
	ListRecentAlerts(ctx context.Context, limit int) ([]storage.RateAlert, error)
}

// Show prints recent rate observations, or recent alerts with --alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show observations")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return showAlerts(ctx, store, opts.Limit)
	}
	return showRates(ctx, store, opts.Limit)
}

func showRates(ctx context.Context, store rateLister, limit int) error {
	observations, err := store.ListRecentRates(ctx, limit)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Observed (UTC)\tMetal\tRaw/g\tFinal/g\tSource")
	for _, obs := range observations {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			obs.ObservedAt.UTC().Format(time.RFC3339),
			obs.Metal,
			obs.PerGramRaw.StringFixed(2),
			obs.PerGramFinal.StringFixed(2),
			obs.Source,
		)
	}
	return writer.Flush()
}

func showAlerts(ctx context.Context, store alertLister, limit int) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tMetal\tFinal/g\tPrevious/g\tChange%\tDirection")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Metal,
			alert.PerGramFinal.StringFixed(2),
			alert.PreviousFinal.StringFixed(2),
			alert.ChangePct.StringFixed(2),
			alert.Direction,
		)
	}
	return writer.Flush()
}
