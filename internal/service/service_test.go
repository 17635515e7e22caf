package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"jewelry-rates/internal/alerting"
	"jewelry-rates/internal/config"
	"jewelry-rates/internal/pricing"
	"jewelry-rates/internal/rates"
	"jewelry-rates/internal/storage"
)

type fakeSpot struct {
	prices map[rates.Metal]float64
	errs   map[rates.Metal]error
	calls  int
}

func (f *fakeSpot) FetchSpot(ctx context.Context, metal rates.Metal) (float64, error) {
	f.calls++
	if err, ok := f.errs[metal]; ok {
		return 0, err
	}
	return f.prices[metal], nil
}

type fakeFX struct {
	rate float64
	err  error
}

func (f *fakeFX) FetchRate(ctx context.Context) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.rate, nil
}

type memRateStore struct {
	mu        sync.Mutex
	seq       int64
	rows      []storage.MetalRate
	appendErr error
}

func (m *memRateStore) AppendRate(ctx context.Context, rate storage.MetalRate) (storage.MetalRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return storage.MetalRate{}, m.appendErr
	}
	m.seq++
	rate.ID = m.seq
	m.rows = append(m.rows, rate)
	return rate, nil
}

func (m *memRateStore) LatestRate(ctx context.Context, metal rates.Metal) (storage.MetalRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *storage.MetalRate
	for i := range m.rows {
		row := &m.rows[i]
		if row.Metal != metal {
			continue
		}
		if best == nil || row.ObservedAt.After(best.ObservedAt) ||
			(row.ObservedAt.Equal(best.ObservedAt) && row.ID > best.ID) {
			best = row
		}
	}
	if best == nil {
		return storage.MetalRate{}, fmt.Errorf("%w: %s", storage.ErrNoRate, metal)
	}
	return *best, nil
}

func (m *memRateStore) ListRecentRates(ctx context.Context, limit int) ([]storage.MetalRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.MetalRate, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memRateStore) ListRatesBetween(ctx context.Context, from, to time.Time) ([]storage.MetalRate, error) {
	return m.ListRecentRates(ctx, 0)
}

func (m *memRateStore) countFor(metal rates.Metal) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.Metal == metal {
			n++
		}
	}
	return n
}

type memProductStore struct {
	mu       sync.Mutex
	products map[string]storage.Product
}

func (m *memProductStore) UpsertProduct(ctx context.Context, product storage.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.products == nil {
		m.products = make(map[string]storage.Product)
	}
	m.products[product.SKU] = product
	return nil
}

func (m *memProductStore) GetProduct(ctx context.Context, sku string) (storage.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[sku]
	if !ok {
		return storage.Product{}, storage.ErrProductNotFound
	}
	return product, nil
}

func (m *memProductStore) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]storage.Product, error) {
	return nil, nil
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		FX: config.FXConfig{FallbackRate: 83},
		Scheduler: config.SchedulerConfig{
			Interval: time.Hour,
		},
		Alerting: config.AlertingConfig{
			Channels: []string{"telegram"},
		},
	}
}

func newTestService(cfg *config.Config, spot *fakeSpot, fx *fakeFX, store *memRateStore, products *memProductStore, notifier alerting.Notifier) *Service {
	var productStore storage.ProductStore
	if products != nil {
		productStore = products
	}
	return New(cfg, spot, fx, store, productStore, nil, nil, notifier, zerolog.Nop())
}

func TestRefreshRatesPartialFailure(t *testing.T) {
	spot := &fakeSpot{
		prices: map[rates.Metal]float64{rates.Silver: 29.87},
		errs:   map[rates.Metal]error{rates.Gold: errors.New("provider down")},
	}
	store := &memRateStore{}
	svc := newTestService(testConfig(), spot, &fakeFX{rate: 83}, store, nil, nil)

	results := svc.RefreshRates(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	byMetal := map[rates.Metal]RefreshResult{}
	for _, res := range results {
		byMetal[res.Metal] = res
	}

	if byMetal[rates.Gold].Status != StatusSkipped {
		t.Errorf("gold should be skipped, got %s", byMetal[rates.Gold].Status)
	}
	if byMetal[rates.Silver].Status != StatusSucceeded {
		t.Errorf("silver should succeed, got %s (%s)", byMetal[rates.Silver].Status, byMetal[rates.Silver].Reason)
	}

	if n := store.countFor(rates.Gold); n != 0 {
		t.Errorf("gold observations = %d, want 0", n)
	}
	if n := store.countFor(rates.Silver); n != 1 {
		t.Errorf("silver observations = %d, want 1", n)
	}
}

func TestRefreshRatesAppendsEveryCycle(t *testing.T) {
	spot := &fakeSpot{prices: map[rates.Metal]float64{rates.Gold: 2400, rates.Silver: 29}}
	store := &memRateStore{}
	svc := newTestService(testConfig(), spot, &fakeFX{rate: 83}, store, nil, nil)

	ctx := context.Background()
	svc.RefreshRates(ctx)

	spot.prices[rates.Gold] = 2500
	second := svc.RefreshRates(ctx)

	if n := store.countFor(rates.Gold); n != 2 {
		t.Fatalf("gold observations = %d, want 2 (no deduplication)", n)
	}

	latest, err := store.LatestRate(ctx, rates.Gold)
	if err != nil {
		t.Fatalf("LatestRate: %v", err)
	}
	for _, res := range second {
		if res.Metal == rates.Gold && !latest.PerGramFinal.Equal(res.PerGramFinal) {
			t.Errorf("latest = %s, want second cycle's %s", latest.PerGramFinal, res.PerGramFinal)
		}
	}
}

func TestRefreshRatesFXFallback(t *testing.T) {
	spot := &fakeSpot{prices: map[rates.Metal]float64{rates.Gold: 2400, rates.Silver: 29}}
	store := &memRateStore{}
	svc := newTestService(testConfig(), spot, &fakeFX{err: errors.New("fx down")}, store, nil, nil)

	results := svc.RefreshRates(context.Background())
	for _, res := range results {
		if res.Status != StatusSucceeded {
			t.Fatalf("%s should succeed on fx fallback, got %s (%s)", res.Metal, res.Status, res.Reason)
		}
	}

	// gold at fallback 83: 2400*83/31.1034768 rounded, then *1.175
	want, err := rates.Convert(rates.Gold, 2400, 83)
	if err != nil {
		t.Fatal(err)
	}
	latest, err := store.LatestRate(context.Background(), rates.Gold)
	if err != nil {
		t.Fatal(err)
	}
	if !latest.PerGramFinal.Equal(want.PerGramFinal) {
		t.Errorf("final = %s, want %s (computed with fallback fx)", latest.PerGramFinal, want.PerGramFinal)
	}
}

func TestRefreshRatesPersistenceFailureSkips(t *testing.T) {
	spot := &fakeSpot{prices: map[rates.Metal]float64{rates.Gold: 2400, rates.Silver: 29}}
	store := &memRateStore{appendErr: errors.New("db down")}
	svc := newTestService(testConfig(), spot, &fakeFX{rate: 83}, store, nil, nil)

	for _, res := range svc.RefreshRates(context.Background()) {
		if res.Status != StatusSkipped {
			t.Errorf("%s should be skipped on persistence failure, got %s", res.Metal, res.Status)
		}
	}
}

func TestGetLatestRatesEmptyStore(t *testing.T) {
	svc := newTestService(testConfig(), &fakeSpot{}, &fakeFX{rate: 83}, &memRateStore{}, nil, nil)

	latest, err := svc.GetLatestRates(context.Background())
	if err != nil {
		t.Fatalf("GetLatestRates: %v", err)
	}
	if !latest.Gold.IsZero() || !latest.Silver.IsZero() {
		t.Errorf("empty store should yield zero rates, got %s / %s", latest.Gold, latest.Silver)
	}
}

func TestRecordManualRate(t *testing.T) {
	store := &memRateStore{}
	svc := newTestService(testConfig(), &fakeSpot{}, &fakeFX{rate: 83}, store, nil, nil)
	ctx := context.Background()

	obs, err := svc.RecordManualRate(ctx, rates.Gold, decimal.RequireFromString("6400"), decimal.RequireFromString("7520"))
	if err != nil {
		t.Fatalf("RecordManualRate: %v", err)
	}
	if obs.Source != storage.SourceManual {
		t.Errorf("source = %q, want %q", obs.Source, storage.SourceManual)
	}

	latest, err := svc.GetLatestRates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !latest.Gold.Equal(decimal.RequireFromString("7520")) {
		t.Errorf("gold = %s, want 7520", latest.Gold)
	}
}

func TestRecordManualRateValidation(t *testing.T) {
	svc := newTestService(testConfig(), &fakeSpot{}, &fakeFX{rate: 83}, &memRateStore{}, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		metal rates.Metal
		raw   string
		final string
	}{
		{"zero raw", rates.Gold, "0", "100"},
		{"negative raw", rates.Gold, "-5", "100"},
		{"final below raw", rates.Silver, "100", "90"},
		{"untracked metal", rates.Platinum, "100", "120"},
	}
	for _, tc := range cases {
		_, err := svc.RecordManualRate(ctx, tc.metal, decimal.RequireFromString(tc.raw), decimal.RequireFromString(tc.final))
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestSaveProductAutomaticPricing(t *testing.T) {
	store := &memRateStore{}
	products := &memProductStore{}
	svc := newTestService(testConfig(), &fakeSpot{}, &fakeFX{rate: 83}, store, products, nil)
	ctx := context.Background()

	if _, err := svc.RecordManualRate(ctx, rates.Silver, decimal.RequireFromString("80"), decimal.RequireFromString("90")); err != nil {
		t.Fatal(err)
	}

	product, err := svc.SaveProduct(ctx, ProductInput{
		SKU:         "ring-001",
		Name:        "Silver Ring",
		Mode:        pricing.ModeAutomatic,
		Material:    "silver",
		WeightGrams: "25",
	})
	if err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}

	if !product.Price.Equal(decimal.NewFromInt(2250)) {
		t.Errorf("price = %s, want 2250", product.Price)
	}
	if !product.RatePerGram.Equal(decimal.NewFromInt(90)) {
		t.Errorf("rate snapshot = %s, want 90", product.RatePerGram)
	}

	// Snapshot survives later observations until the next save.
	if _, err := svc.RecordManualRate(ctx, rates.Silver, decimal.RequireFromString("90"), decimal.RequireFromString("100")); err != nil {
		t.Fatal(err)
	}
	stored, err := products.GetProduct(ctx, "ring-001")
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Price.Equal(decimal.NewFromInt(2250)) {
		t.Errorf("stored price changed to %s, snapshot must not track new rates", stored.Price)
	}
}

func TestSaveProductManualPricing(t *testing.T) {
	products := &memProductStore{}
	svc := newTestService(testConfig(), &fakeSpot{}, &fakeFX{rate: 83}, &memRateStore{}, products, nil)

	product, err := svc.SaveProduct(context.Background(), ProductInput{
		SKU:         "pendant-7",
		Name:        "Pendant",
		Mode:        pricing.ModeManual,
		ManualPrice: "1500",
		Material:    "gold",
		WeightGrams: "0",
	})
	if err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	if !product.Price.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("price = %s, want 1500", product.Price)
	}
	if !product.RatePerGram.IsZero() {
		t.Errorf("manual product rate snapshot = %s, want 0", product.RatePerGram)
	}
	if !product.ManualPrice {
		t.Error("manual flag should be set")
	}
}

func TestSaveProductRequiresSKU(t *testing.T) {
	svc := newTestService(testConfig(), &fakeSpot{}, &fakeFX{rate: 83}, &memRateStore{}, &memProductStore{}, nil)
	if _, err := svc.SaveProduct(context.Background(), ProductInput{Mode: pricing.ModeManual}); err == nil {
		t.Error("expected error for missing sku")
	}
}

func TestRefreshAlertsOnLargeMove(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.Enabled = true
	cfg.Alerting.ThresholdPct = 2.0

	spot := &fakeSpot{prices: map[rates.Metal]float64{rates.Gold: 2400, rates.Silver: 29}}
	store := &memRateStore{}
	notifier := &recordingNotifier{}
	svc := newTestService(cfg, spot, &fakeFX{rate: 83}, store, nil, notifier)
	ctx := context.Background()

	svc.RefreshRates(ctx)
	if len(notifier.notes) != 0 {
		t.Fatalf("first cycle has no previous rate, expected no alerts, got %d", len(notifier.notes))
	}

	spot.prices[rates.Gold] = 2600 // > +2%
	svc.RefreshRates(ctx)

	var goldAlerts int
	for _, note := range notifier.notes {
		if note.Metal == rates.Gold {
			goldAlerts++
			if note.Direction != "up" {
				t.Errorf("direction = %q, want up", note.Direction)
			}
		}
	}
	if goldAlerts != 1 {
		t.Fatalf("gold alerts = %d, want 1", goldAlerts)
	}
}

func TestRefreshAlertCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.Enabled = true
	cfg.Alerting.ThresholdPct = 2.0
	cfg.Alerting.Cooldown = time.Hour

	spot := &fakeSpot{prices: map[rates.Metal]float64{rates.Gold: 2400, rates.Silver: 29}}
	store := &memRateStore{}
	notifier := &recordingNotifier{}
	svc := newTestService(cfg, spot, &fakeFX{rate: 83}, store, nil, notifier)
	ctx := context.Background()

	svc.RefreshRates(ctx)
	spot.prices[rates.Gold] = 2600
	svc.RefreshRates(ctx)
	spot.prices[rates.Gold] = 2800
	svc.RefreshRates(ctx)

	var goldAlerts int
	for _, note := range notifier.notes {
		if note.Metal == rates.Gold {
			goldAlerts++
		}
	}
	if goldAlerts != 1 {
		t.Fatalf("gold alerts = %d, want 1 (cooldown should suppress the second)", goldAlerts)
	}
}

var _ storage.RateStore = (*memRateStore)(nil)
var _ storage.ProductStore = (*memProductStore)(nil)
