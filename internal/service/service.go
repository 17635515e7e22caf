// Package service coordinates the rate refresh cycle and the read paths
// built on top of the stored rate history.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"jewelry-rates/internal/alerting"
	"jewelry-rates/internal/config"
	"jewelry-rates/internal/fetcher"
	"jewelry-rates/internal/pricing"
	"jewelry-rates/internal/rates"
	"jewelry-rates/internal/storage"
)

// RefreshStatus is the per-metal outcome of one refresh cycle.
type RefreshStatus string

const (
	StatusSucceeded RefreshStatus = "succeeded"
	StatusSkipped   RefreshStatus = "skipped"
)

// RefreshResult reports one metal's outcome. A skipped metal carries the
// reason; a succeeded one carries the appended rates.
type RefreshResult struct {
	Metal        rates.Metal
	Status       RefreshStatus
	Reason       string
	PerGramRaw   decimal.Decimal
	PerGramFinal decimal.Decimal
}

// LatestRates holds the canonical (final, loaded) per-gram rates for
// display. Zero means no observation exists for that metal.
type LatestRates struct {
	Gold   decimal.Decimal
	Silver decimal.Decimal
}

// RateCache fronts latest-rate reads. Implementations are best-effort:
// any error degrades to the store.
type RateCache interface {
	GetLatest(ctx context.Context, metal rates.Metal) (decimal.Decimal, bool, error)
	SetLatest(ctx context.Context, metal rates.Metal, final decimal.Decimal) error
}

// ProductInput carries the form-shaped fields of a product save.
type ProductInput struct {
	SKU         string
	Name        string
	Mode        pricing.Mode
	ManualPrice string
	Material    string
	WeightGrams string
}

// Service orchestrates fetching, conversion, persistence, caching, and
// alerting. It holds no refresh state: every cycle is an independent
// fetch-convert-append sequence, safe to invoke concurrently.
type Service struct {
	spot       fetcher.SpotPriceFetcher
	fx         fetcher.FXRateFetcher
	store      storage.RateStore
	products   storage.ProductStore
	alertStore storage.AlertStore
	cache      RateCache
	notifier   alerting.Notifier
	logger     zerolog.Logger

	fxFallback float64
	threshold  decimal.Decimal
	cooldown   time.Duration
	channels   []string
	alertsOn   bool
	locker     storage.AdvisoryLocker
	lockKey    int64

	alertMux  sync.Mutex
	lastAlert map[rates.Metal]time.Time
}

// New constructs the pricing service.
func New(cfg *config.Config, spot fetcher.SpotPriceFetcher, fx fetcher.FXRateFetcher, store storage.RateStore, products storage.ProductStore, alertStore storage.AlertStore, cache RateCache, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.ThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.ThresholdPct)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		spot:       spot,
		fx:         fx,
		store:      store,
		products:   products,
		alertStore: alertStore,
		cache:      cache,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		fxFallback: cfg.FX.FallbackRate,
		threshold:  threshold,
		cooldown:   cfg.Alerting.Cooldown,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		lastAlert:  make(map[rates.Metal]time.Time),
	}
}

// RefreshRates runs one refresh cycle over the tracked metals. Each metal
// is handled independently; a failure skips that metal and the cycle
// continues. The cycle itself never fails.
func (s *Service) RefreshRates(ctx context.Context) []RefreshResult {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil || !proceed {
		reason := "refresh already in progress"
		if err != nil {
			reason = fmt.Sprintf("acquire refresh lock: %v", err)
		}
		results := make([]RefreshResult, 0, len(rates.Tracked))
		for _, metal := range rates.Tracked {
			results = append(results, RefreshResult{Metal: metal, Status: StatusSkipped, Reason: reason})
		}
		return results
	}
	if unlock != nil {
		defer unlock()
	}

	fxRate := s.resolveFX(ctx)

	results := make([]RefreshResult, 0, len(rates.Tracked))
	for _, metal := range rates.Tracked {
		results = append(results, s.refreshMetal(ctx, metal, fxRate))
	}
	return results
}

// resolveFX fetches the USD to local-currency rate once per cycle. On
// failure it falls back to the configured rate; degraded, but never fatal.
func (s *Service) resolveFX(ctx context.Context) float64 {
	if s.fx == nil {
		return s.fxFallback
	}
	rate, err := s.fx.FetchRate(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Float64("fallback_rate", s.fxFallback).Msg("fx provider unavailable, using fallback rate")
		return s.fxFallback
	}
	return rate
}

func (s *Service) refreshMetal(ctx context.Context, metal rates.Metal, fxRate float64) RefreshResult {
	skipped := func(reason string, err error) RefreshResult {
		s.logger.Warn().Err(err).Str("metal", metal.String()).Str("reason", reason).Msg("metal skipped this cycle")
		return RefreshResult{Metal: metal, Status: StatusSkipped, Reason: reason}
	}

	spotPrice, err := s.spot.FetchSpot(ctx, metal)
	if err != nil {
		return skipped("spot price unavailable", err)
	}

	quote, err := rates.Convert(metal, spotPrice, fxRate)
	if err != nil {
		return skipped("conversion rejected", err)
	}

	if s.store == nil {
		return skipped("storage not configured", nil)
	}

	previous, prevErr := s.store.LatestRate(ctx, metal)
	hasPrevious := prevErr == nil
	if prevErr != nil && !errors.Is(prevErr, storage.ErrNoRate) {
		s.logger.Warn().Err(prevErr).Str("metal", metal.String()).Msg("could not read previous rate")
	}

	observation := storage.MetalRate{
		Metal:        metal,
		PerGramRaw:   quote.PerGramRaw,
		PerGramFinal: quote.PerGramFinal,
		Source:       storage.SourceLiveAPI,
		ObservedAt:   time.Now().UTC(),
	}
	appended, err := s.store.AppendRate(ctx, observation)
	if err != nil {
		return skipped("persistence failed", err)
	}

	s.cacheLatest(ctx, metal, appended.PerGramFinal)

	s.logger.Info().
		Str("metal", metal.String()).
		Str("per_gram_raw", appended.PerGramRaw.String()).
		Str("per_gram_final", appended.PerGramFinal.String()).
		Msg("rate observation appended")

	if hasPrevious {
		s.maybeAlert(ctx, appended, previous)
	}

	return RefreshResult{
		Metal:        metal,
		Status:       StatusSucceeded,
		PerGramRaw:   appended.PerGramRaw,
		PerGramFinal: appended.PerGramFinal,
	}
}

// GetLatestRates returns the canonical final rate per tracked metal, zero
// when no observation exists. Storage failures propagate.
func (s *Service) GetLatestRates(ctx context.Context) (LatestRates, error) {
	gold, err := s.latestFinal(ctx, rates.Gold)
	if err != nil {
		return LatestRates{}, err
	}
	silver, err := s.latestFinal(ctx, rates.Silver)
	if err != nil {
		return LatestRates{}, err
	}
	return LatestRates{Gold: gold, Silver: silver}, nil
}

func (s *Service) latestFinal(ctx context.Context, metal rates.Metal) (decimal.Decimal, error) {
	if s.cache != nil {
		cached, hit, err := s.cache.GetLatest(ctx, metal)
		if err != nil {
			s.logger.Warn().Err(err).Str("metal", metal.String()).Msg("rate cache unavailable, reading store")
		} else if hit {
			return cached, nil
		}
	}

	if s.store == nil {
		return decimal.Zero, storage.ErrNotConfigured
	}

	latest, err := s.store.LatestRate(ctx, metal)
	if errors.Is(err, storage.ErrNoRate) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	s.cacheLatest(ctx, metal, latest.PerGramFinal)
	return latest.PerGramFinal, nil
}

// RecordManualRate appends an operator-entered observation, used when a
// live fetch is undesired. The pair must uphold final >= raw > 0.
func (s *Service) RecordManualRate(ctx context.Context, metal rates.Metal, raw, final decimal.Decimal) (storage.MetalRate, error) {
	if !metal.IsTracked() {
		return storage.MetalRate{}, fmt.Errorf("metal %q has no tracked rate", metal)
	}
	if !raw.IsPositive() {
		return storage.MetalRate{}, fmt.Errorf("raw rate must be positive, got %s", raw)
	}
	if final.LessThan(raw) {
		return storage.MetalRate{}, fmt.Errorf("final rate %s must not undercut raw rate %s", final, raw)
	}
	if s.store == nil {
		return storage.MetalRate{}, storage.ErrNotConfigured
	}

	observation := storage.MetalRate{
		Metal:        metal,
		PerGramRaw:   raw.Round(2),
		PerGramFinal: final.Round(2),
		Source:       storage.SourceManual,
		ObservedAt:   time.Now().UTC(),
	}
	appended, err := s.store.AppendRate(ctx, observation)
	if err != nil {
		return storage.MetalRate{}, err
	}

	s.cacheLatest(ctx, metal, appended.PerGramFinal)

	s.logger.Info().
		Str("metal", metal.String()).
		Str("per_gram_final", appended.PerGramFinal.String()).
		Msg("manual rate recorded")
	return appended, nil
}

// ComputePrice prices a product against the latest stored rates without
// persisting anything.
func (s *Service) ComputePrice(ctx context.Context, in ProductInput) (pricing.Result, error) {
	return pricing.ComputePrice(pricing.Input{
		Mode:        in.Mode,
		ManualPrice: in.ManualPrice,
		Material:    in.Material,
		WeightGrams: in.WeightGrams,
	}, s.rateLookup(ctx))
}

// SaveProduct computes the product's price snapshot and persists it. Both
// create and update land here; the snapshot is fixed until the next save.
func (s *Service) SaveProduct(ctx context.Context, in ProductInput) (storage.Product, error) {
	if strings.TrimSpace(in.SKU) == "" {
		return storage.Product{}, fmt.Errorf("product sku is required")
	}
	if s.products == nil {
		return storage.Product{}, storage.ErrNotConfigured
	}

	result, err := s.ComputePrice(ctx, in)
	if err != nil {
		return storage.Product{}, err
	}

	var material rates.Metal
	if strings.TrimSpace(in.Material) != "" {
		material, err = rates.Parse(in.Material)
		if err != nil {
			return storage.Product{}, err
		}
	}

	product := storage.Product{
		SKU:         strings.TrimSpace(in.SKU),
		Name:        strings.TrimSpace(in.Name),
		Material:    material,
		WeightGrams: pricing.ParseAmount(in.WeightGrams),
		ManualPrice: in.Mode == pricing.ModeManual,
		RatePerGram: result.RatePerGram,
		Price:       result.Price,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.products.UpsertProduct(ctx, product); err != nil {
		return storage.Product{}, err
	}

	s.logger.Info().
		Str("sku", product.SKU).
		Str("price", product.Price.String()).
		Bool("manual", product.ManualPrice).
		Msg("product price snapshot saved")
	return product, nil
}

// rateLookup adapts latest-rate reads to the calculator's lookup shape.
// Storage failures degrade to zero here: pricing favours availability
// over strictness for unverified reads.
func (s *Service) rateLookup(ctx context.Context) pricing.RateLookup {
	return func(material rates.Metal) decimal.Decimal {
		if !material.IsTracked() {
			return decimal.Zero
		}
		final, err := s.latestFinal(ctx, material)
		if err != nil {
			s.logger.Warn().Err(err).Str("metal", material.String()).Msg("rate lookup failed, pricing with zero")
			return decimal.Zero
		}
		return final
	}
}

func (s *Service) cacheLatest(ctx context.Context, metal rates.Metal, final decimal.Decimal) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetLatest(ctx, metal, final); err != nil {
		s.logger.Warn().Err(err).Str("metal", metal.String()).Msg("failed to update rate cache")
	}
}

func (s *Service) maybeAlert(ctx context.Context, current, previous storage.MetalRate) {
	if !s.alertsOn || s.notifier == nil || s.threshold.IsZero() || previous.PerGramFinal.IsZero() {
		return
	}

	change := current.PerGramFinal.Sub(previous.PerGramFinal).
		Div(previous.PerGramFinal).
		Mul(decimal.NewFromInt(100))
	if change.Abs().LessThanOrEqual(s.threshold) {
		return
	}

	if !s.passCooldown(current.Metal, current.ObservedAt) {
		s.logger.Debug().Str("metal", current.Metal.String()).Msg("alert suppressed by cooldown")
		return
	}

	direction := classifyChange(change)
	if s.alertStore != nil {
		record := storage.RateAlert{
			Metal:         current.Metal,
			PerGramFinal:  current.PerGramFinal,
			PreviousFinal: previous.PerGramFinal,
			ChangePct:     change,
			ThresholdPct:  s.threshold,
			Direction:     direction,
			Channels:      s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("metal", current.Metal.String()).Msg("failed to persist alert record")
		}
	}

	note := alerting.Notification{
		Metal:         current.Metal,
		PerGramFinal:  current.PerGramFinal,
		PreviousFinal: previous.PerGramFinal,
		ChangePct:     change,
		ThresholdPct:  s.threshold,
		Direction:     direction,
		Channels:      s.channels,
		ObservedAt:    current.ObservedAt,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("metal", current.Metal.String()).Msg("failed to dispatch alert")
	}
}

func (s *Service) passCooldown(metal rates.Metal, at time.Time) bool {
	if s.cooldown <= 0 {
		return true
	}

	s.alertMux.Lock()
	defer s.alertMux.Unlock()

	if last, ok := s.lastAlert[metal]; ok && at.Sub(last) < s.cooldown {
		return false
	}
	s.lastAlert[metal] = at
	return true
}

func classifyChange(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
