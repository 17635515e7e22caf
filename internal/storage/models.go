package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"jewelry-rates/internal/rates"
)

// Rate provenance tags.
const (
	SourceLiveAPI = "live-api"
	SourceManual  = "manual"
)

// MetalRate is one immutable per-gram rate observation. Rows are
// append-only: the current rate for a metal is the newest observation,
// never an updated one.
type MetalRate struct {
	ID           int64
	Metal        rates.Metal
	PerGramRaw   decimal.Decimal
	PerGramFinal decimal.Decimal
	Source       string
	ObservedAt   time.Time
}

// Product is the pricing-relevant subset of a catalog product. RatePerGram
// and Price are a snapshot taken when the product was last saved; they do
// not track later rate observations.
type Product struct {
	SKU         string
	Name        string
	Material    rates.Metal
	WeightGrams decimal.Decimal
	ManualPrice bool
	RatePerGram decimal.Decimal
	Price       decimal.Decimal
	UpdatedAt   time.Time
}

// RateAlert captures an emitted rate-movement alert for auditing.
type RateAlert struct {
	ID            int64
	Metal         rates.Metal
	PerGramFinal  decimal.Decimal
	PreviousFinal decimal.Decimal
	ChangePct     decimal.Decimal
	ThresholdPct  decimal.Decimal
	Direction     string
	Channels      []string
	CreatedAt     time.Time
}
