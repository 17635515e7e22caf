// Package pricing computes a product's displayed price from its pricing
// mode, weight, and the latest stored metal rate. Both the create and the
// update flows call ComputePrice; there is no second implementation.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"jewelry-rates/internal/rates"
)

// Mode selects between operator-entered and rate-derived pricing.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAutomatic Mode = "automatic"
)

// ErrMissingMaterial is returned when automatic pricing is requested
// without a usable material. Unlike numeric junk, a missing material is a
// structural defect and must fail loudly.
var ErrMissingMaterial = errors.New("pricing: material required for automatic pricing")

// ParseMode normalises a pricing mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeManual:
		return ModeManual, nil
	case ModeAutomatic:
		return ModeAutomatic, nil
	}
	return "", fmt.Errorf("unknown pricing mode %q", s)
}

// RateLookup resolves the latest final per-gram rate for a material.
// Implementations return zero when no observation exists or the material
// is untracked (platinum).
type RateLookup func(material rates.Metal) decimal.Decimal

// Input carries the form-shaped pricing fields of a product save.
// ManualPrice and WeightGrams arrive as raw strings: unverified user
// input degrades to zero instead of failing the save.
type Input struct {
	Mode        Mode
	ManualPrice string
	Material    string
	WeightGrams string
}

// Result is the computed price and the rate snapshot it used.
type Result struct {
	Price       decimal.Decimal
	RatePerGram decimal.Decimal
}

// ComputePrice derives a product price.
//
// Manual mode: price is the parsed manual input clamped to >= 0; the rate
// used is zero. Automatic mode: price = latest rate for the material times
// the parsed weight. The returned price is always finite and non-negative;
// ParseAmount is the single place where invalid numeric input collapses
// to zero.
func ComputePrice(in Input, lookup RateLookup) (Result, error) {
	switch in.Mode {
	case ModeManual:
		return Result{
			Price:       ParseAmount(in.ManualPrice),
			RatePerGram: decimal.Zero,
		}, nil

	case ModeAutomatic:
		if strings.TrimSpace(in.Material) == "" {
			return Result{}, ErrMissingMaterial
		}
		material, err := rates.Parse(in.Material)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMissingMaterial, err)
		}

		rate := decimal.Zero
		if lookup != nil {
			if r := lookup(material); !r.IsNegative() {
				rate = r
			}
		}

		weight := ParseAmount(in.WeightGrams)
		return Result{
			Price:       rate.Mul(weight),
			RatePerGram: rate,
		}, nil
	}

	return Result{}, fmt.Errorf("unknown pricing mode %q", in.Mode)
}

// ParseAmount turns a raw form value into a non-negative decimal.
// Unparseable, missing, or negative input yields zero. All numeric
// coercion of unverified input funnels through here.
func ParseAmount(s string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || v.IsNegative() {
		return decimal.Zero
	}
	return v
}
