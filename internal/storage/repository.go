package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"jewelry-rates/internal/rates"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNoRate indicates no observation exists for the requested metal.
	ErrNoRate = errors.New("storage: no rate observation")
	// ErrProductNotFound indicates an unknown product SKU.
	ErrProductNotFound = errors.New("storage: product not found")
)

const (
	insertMetalRateSQL = `INSERT INTO metal_rates (
        metal_type,
        rate_per_gram_raw,
        rate_per_gram_final,
        source,
        observed_at
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id;`

	latestMetalRateSQL = `SELECT
        id,
        metal_type,
        rate_per_gram_raw,
        rate_per_gram_final,
        source,
        observed_at
    FROM metal_rates
    WHERE metal_type = $1
    ORDER BY observed_at DESC, id DESC
    LIMIT 1;`

	listRecentRatesSQL = `SELECT
        id,
        metal_type,
        rate_per_gram_raw,
        rate_per_gram_final,
        source,
        observed_at
    FROM metal_rates
    ORDER BY observed_at DESC, id DESC
    LIMIT $1;`

	listRatesBetweenSQL = `SELECT
        id,
        metal_type,
        rate_per_gram_raw,
        rate_per_gram_final,
        source,
        observed_at
    FROM metal_rates
    WHERE observed_at >= $1
      AND observed_at < $2
    ORDER BY observed_at;`

	upsertProductSQL = `INSERT INTO products (
        sku,
        name,
        material,
        weight_grams,
        manual_price,
        rate_per_gram,
        price,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (sku) DO UPDATE
    SET
        name          = EXCLUDED.name,
        material      = EXCLUDED.material,
        weight_grams  = EXCLUDED.weight_grams,
        manual_price  = EXCLUDED.manual_price,
        rate_per_gram = EXCLUDED.rate_per_gram,
        price         = EXCLUDED.price,
        updated_at    = EXCLUDED.updated_at;`

	getProductSQL = `SELECT
        sku,
        name,
        material,
        weight_grams,
        manual_price,
        rate_per_gram,
        price,
        updated_at
    FROM products
    WHERE sku = $1;`

	listProductsSQL = `SELECT
        sku,
        name,
        material,
        weight_grams,
        manual_price,
        rate_per_gram,
        price,
        updated_at
    FROM products
    WHERE ($1::text = '' OR material = $1)
      AND ($2::numeric IS NULL OR price >= $2)
      AND ($3::numeric IS NULL OR price <= $3)
    ORDER BY updated_at DESC;`

	insertRateAlertSQL = `INSERT INTO rate_alerts (
        metal_type,
        rate_per_gram_final,
        previous_final,
        change_pct,
        threshold_pct,
        direction,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        metal_type,
        rate_per_gram_final,
        previous_final,
        change_pct,
        threshold_pct,
        direction,
        channels,
        created_at
    FROM rate_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RateStore defines operations on the append-only rate history.
type RateStore interface {
	AppendRate(ctx context.Context, rate MetalRate) (MetalRate, error)
	LatestRate(ctx context.Context, metal rates.Metal) (MetalRate, error)
	ListRecentRates(ctx context.Context, limit int) ([]MetalRate, error)
	ListRatesBetween(ctx context.Context, from, to time.Time) ([]MetalRate, error)
}

// ProductStore defines operations for product pricing snapshots.
type ProductStore interface {
	UpsertProduct(ctx context.Context, product Product) error
	GetProduct(ctx context.Context, sku string) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert RateAlert) (RateAlert, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]RateAlert, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Material rates.Metal
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// Store aggregates access to rate history, products, and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// AppendRate inserts a new immutable observation. Duplicate timestamps are
// legal; nothing is deduplicated.
func (s *Store) AppendRate(ctx context.Context, rate MetalRate) (MetalRate, error) {
	pool, err := s.getPool()
	if err != nil {
		return MetalRate{}, err
	}

	row := pool.QueryRow(ctx, insertMetalRateSQL,
		rate.Metal.String(),
		rate.PerGramRaw.String(),
		rate.PerGramFinal.String(),
		rate.Source,
		rate.ObservedAt,
	)
	if scanErr := row.Scan(&rate.ID); scanErr != nil {
		return MetalRate{}, fmt.Errorf("append rate: %w", scanErr)
	}
	return rate, nil
}

// LatestRate returns the most recent observation for a metal. Ties on
// observed_at resolve to the last inserted row.
func (s *Store) LatestRate(ctx context.Context, metal rates.Metal) (MetalRate, error) {
	pool, err := s.getPool()
	if err != nil {
		return MetalRate{}, err
	}

	rate, scanErr := scanMetalRate(pool.QueryRow(ctx, latestMetalRateSQL, metal.String()))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return MetalRate{}, fmt.Errorf("%w: %s", ErrNoRate, metal)
		}
		return MetalRate{}, fmt.Errorf("latest rate: %w", scanErr)
	}
	return rate, nil
}

// ListRecentRates lists observations ordered newest first.
func (s *Store) ListRecentRates(ctx context.Context, limit int) ([]MetalRate, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRatesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent rates: %w", queryErr)
	}
	defer rows.Close()

	return collectMetalRates(rows, limit)
}

// ListRatesBetween lists observations within a time window, oldest first.
func (s *Store) ListRatesBetween(ctx context.Context, from, to time.Time) ([]MetalRate, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRatesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list rates between: %w", queryErr)
	}
	defer rows.Close()

	return collectMetalRates(rows, 0)
}

// UpsertProduct persists a product pricing snapshot. Last writer wins:
// price is a point-in-time value, not a live binding.
func (s *Store) UpsertProduct(ctx context.Context, product Product) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertProductSQL,
		product.SKU,
		product.Name,
		product.Material.String(),
		product.WeightGrams.String(),
		product.ManualPrice,
		product.RatePerGram.String(),
		product.Price.String(),
		product.UpdatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert product: %w", execErr)
	}
	return nil
}

// GetProduct fetches a product by SKU.
func (s *Store) GetProduct(ctx context.Context, sku string) (Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return Product{}, err
	}

	product, scanErr := scanProduct(pool.QueryRow(ctx, getProductSQL, sku))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, sku)
		}
		return Product{}, fmt.Errorf("get product: %w", scanErr)
	}
	return product, nil
}

// ListProducts lists products matching a filter, newest first.
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var minPrice, maxPrice interface{}
	if filter.MinPrice != nil {
		minPrice = filter.MinPrice.String()
	}
	if filter.MaxPrice != nil {
		maxPrice = filter.MaxPrice.String()
	}

	rows, queryErr := pool.Query(ctx, listProductsSQL, filter.Material.String(), minPrice, maxPrice)
	if queryErr != nil {
		return nil, fmt.Errorf("list products: %w", queryErr)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		product, scanErr := scanProduct(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		products = append(products, product)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return products, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert RateAlert) (RateAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return RateAlert{}, err
	}

	row := pool.QueryRow(ctx, insertRateAlertSQL,
		alert.Metal.String(),
		alert.PerGramFinal.String(),
		alert.PreviousFinal.String(),
		alert.ChangePct.String(),
		alert.ThresholdPct.String(),
		alert.Direction,
		alert.Channels,
	)
	if scanErr := row.Scan(&alert.ID, &alert.CreatedAt); scanErr != nil {
		return RateAlert{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return alert, nil
}

// ListRecentAlerts lists the most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]RateAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]RateAlert, 0, limit)
	for rows.Next() {
		var rec RateAlert
		var metalStr, finalStr, previousStr, changeStr, thresholdStr string
		if err := rows.Scan(
			&rec.ID,
			&metalStr,
			&finalStr,
			&previousStr,
			&changeStr,
			&thresholdStr,
			&rec.Direction,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		rec.Metal = rates.Metal(metalStr)
		var convErr error
		if rec.PerGramFinal, convErr = decimal.NewFromString(finalStr); convErr != nil {
			return nil, fmt.Errorf("parse alert rate: %w", convErr)
		}
		if rec.PreviousFinal, convErr = decimal.NewFromString(previousStr); convErr != nil {
			return nil, fmt.Errorf("parse previous rate: %w", convErr)
		}
		if rec.ChangePct, convErr = decimal.NewFromString(changeStr); convErr != nil {
			return nil, fmt.Errorf("parse change pct: %w", convErr)
		}
		if rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr); convErr != nil {
			return nil, fmt.Errorf("parse threshold pct: %w", convErr)
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func collectMetalRates(rows pgx.Rows, sizeHint int) ([]MetalRate, error) {
	observations := make([]MetalRate, 0, sizeHint)
	for rows.Next() {
		rate, scanErr := scanMetalRate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, rate)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func scanMetalRate(row pgx.Row) (MetalRate, error) {
	var (
		rate       MetalRate
		metalStr   string
		rawStr     string
		finalStr   string
		source     string
		observedAt time.Time
	)

	if err := row.Scan(&rate.ID, &metalStr, &rawStr, &finalStr, &source, &observedAt); err != nil {
		return MetalRate{}, err
	}

	raw, err := decimal.NewFromString(rawStr)
	if err != nil {
		return MetalRate{}, fmt.Errorf("parse raw rate: %w", err)
	}
	final, err := decimal.NewFromString(finalStr)
	if err != nil {
		return MetalRate{}, fmt.Errorf("parse final rate: %w", err)
	}

	rate.Metal = rates.Metal(metalStr)
	rate.PerGramRaw = raw
	rate.PerGramFinal = final
	rate.Source = source
	rate.ObservedAt = observedAt
	return rate, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		product     Product
		materialStr string
		weightStr   string
		rateStr     string
		priceStr    string
	)

	if err := row.Scan(
		&product.SKU,
		&product.Name,
		&materialStr,
		&weightStr,
		&product.ManualPrice,
		&rateStr,
		&priceStr,
		&product.UpdatedAt,
	); err != nil {
		return Product{}, err
	}

	weight, err := decimal.NewFromString(weightStr)
	if err != nil {
		return Product{}, fmt.Errorf("parse weight: %w", err)
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return Product{}, fmt.Errorf("parse rate snapshot: %w", err)
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return Product{}, fmt.Errorf("parse price: %w", err)
	}

	product.Material = rates.Metal(materialStr)
	product.WeightGrams = weight
	product.RatePerGram = rate
	product.Price = price
	return product, nil
}
