package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"jewelry-rates/internal/alerting"
	"jewelry-rates/internal/cache"
	"jewelry-rates/internal/config"
	"jewelry-rates/internal/fetcher"
	"jewelry-rates/internal/scheduler"
	"jewelry-rates/internal/service"
	"jewelry-rates/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetchers() (fetcher.SpotPriceFetcher, fetcher.FXRateFetcher) {
	spot := fetcher.NewSpot(fetcher.SpotOptions{
		BaseURL:   a.Config.Spot.BaseURL,
		APIKey:    a.Config.Spot.APIKey,
		Currency:  a.Config.Spot.Currency,
		Timeout:   a.Config.Spot.RequestTimeout,
		UserAgent: a.Config.Spot.UserAgent,
	}, a.Logger)

	fx := fetcher.NewFX(fetcher.FXOptions{
		BaseURL:       a.Config.FX.BaseURL,
		BaseCurrency:  a.Config.FX.BaseCurrency,
		QuoteCurrency: a.Config.FX.QuoteCurrency,
		Timeout:       a.Config.FX.RequestTimeout,
	}, a.Logger)

	return spot, fx
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache(ctx context.Context) (service.RateCache, func()) {
	if !a.Config.Redis.Enabled {
		return nil, nil
	}

	rateCache := cache.New(a.Config.Redis, a.Logger)
	if err := rateCache.Ping(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("redis unreachable; latest-rate cache disabled")
		_ = rateCache.Close()
		return nil, nil
	}
	return rateCache, func() { _ = rateCache.Close() }
}

// newService assembles the pricing service along with its store handles.
// The returned closer must be invoked when the caller is done.
func (a *App) newService(ctx context.Context) (*service.Service, *storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}

	rateCache, closeCache := a.openCache(ctx)

	spot, fx := a.newFetchers()
	notifier := a.newNotifier()

	var rateStore storage.RateStore
	var productStore storage.ProductStore
	var alertStore storage.AlertStore
	if store != nil {
		rateStore = store
		productStore = store
		alertStore = store
	}

	svc := service.New(a.Config, spot, fx, rateStore, productStore, alertStore, rateCache, notifier, a.Logger)

	closer := func() {
		if closeCache != nil {
			closeCache()
		}
		if closeStore != nil {
			closeStore()
		}
	}
	return svc, store, closer, nil
}

// Run executes the long-running scheduled refresh service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, _, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Msg("starting rate refresh service")
	err = sched.Run(ctx, func(ctx context.Context, firedAt time.Time) error {
		results := svc.RefreshRates(ctx)
		logRefreshResults(a.Logger, results)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("refresh service terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh service stopped")
	return nil
}

func logRefreshResults(logger zerolog.Logger, results []service.RefreshResult) {
	for _, res := range results {
		event := logger.Info()
		if res.Status == service.StatusSkipped {
			event = logger.Warn()
		}
		event.
			Str("metal", res.Metal.String()).
			Str("status", string(res.Status)).
			Str("reason", res.Reason).
			Msg("refresh result")
	}
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// ExportOptions hold parameters for exporting rate history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// RecordOptions hold a manual rate entry.
type RecordOptions struct {
	Metal string
	Raw   string
	Final string
}

// PriceOptions hold inputs for an ad-hoc price computation.
type PriceOptions struct {
	Mode         string
	ManualPrice  string
	Material     string
	WeightGrams  string
	RateOverride string
}
