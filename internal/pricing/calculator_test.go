package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"jewelry-rates/internal/rates"
)

func fixedLookup(values map[rates.Metal]string) RateLookup {
	return func(m rates.Metal) decimal.Decimal {
		if v, ok := values[m]; ok {
			return decimal.RequireFromString(v)
		}
		return decimal.Zero
	}
}

func TestComputePriceManualBypassesLookup(t *testing.T) {
	lookup := fixedLookup(map[rates.Metal]string{rates.Gold: "7150.25"})

	res, err := ComputePrice(Input{
		Mode:        ModeManual,
		ManualPrice: "1500",
		Material:    "gold",
		WeightGrams: "0",
	}, lookup)
	if err != nil {
		t.Fatalf("ComputePrice returned error: %v", err)
	}

	if !res.Price.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("price = %s, want 1500", res.Price)
	}
	if !res.RatePerGram.IsZero() {
		t.Errorf("manual pricing must not record a rate, got %s", res.RatePerGram)
	}
}

func TestComputePriceManualInvalidInputIsZero(t *testing.T) {
	for _, input := range []string{"", "abc", "-200", "12.3.4"} {
		res, err := ComputePrice(Input{Mode: ModeManual, ManualPrice: input}, nil)
		if err != nil {
			t.Fatalf("ComputePrice(%q) returned error: %v", input, err)
		}
		if !res.Price.IsZero() {
			t.Errorf("ComputePrice(%q) price = %s, want 0", input, res.Price)
		}
	}
}

func TestComputePriceAutomatic(t *testing.T) {
	lookup := fixedLookup(map[rates.Metal]string{rates.Silver: "90"})

	res, err := ComputePrice(Input{
		Mode:        ModeAutomatic,
		Material:    "silver",
		WeightGrams: "25",
	}, lookup)
	if err != nil {
		t.Fatalf("ComputePrice returned error: %v", err)
	}

	if !res.Price.Equal(decimal.NewFromInt(2250)) {
		t.Errorf("price = %s, want 2250", res.Price)
	}
	if !res.RatePerGram.Equal(decimal.NewFromInt(90)) {
		t.Errorf("rate = %s, want 90", res.RatePerGram)
	}
}

func TestComputePriceAutomaticBadWeightIsZero(t *testing.T) {
	lookup := fixedLookup(map[rates.Metal]string{rates.Gold: "7000"})

	for _, weight := range []string{"not-a-number", "", "-3"} {
		res, err := ComputePrice(Input{
			Mode:        ModeAutomatic,
			Material:    "gold",
			WeightGrams: weight,
		}, lookup)
		if err != nil {
			t.Fatalf("ComputePrice(weight=%q) returned error: %v", weight, err)
		}
		if !res.Price.IsZero() {
			t.Errorf("ComputePrice(weight=%q) price = %s, want 0", weight, res.Price)
		}
		if !res.RatePerGram.Equal(decimal.NewFromInt(7000)) {
			t.Errorf("rate snapshot should survive bad weight, got %s", res.RatePerGram)
		}
	}
}

func TestComputePriceAutomaticUntrackedMaterial(t *testing.T) {
	// Platinum has no live rate; the price degrades to zero.
	res, err := ComputePrice(Input{
		Mode:        ModeAutomatic,
		Material:    "platinum",
		WeightGrams: "12.5",
	}, fixedLookup(nil))
	if err != nil {
		t.Fatalf("ComputePrice returned error: %v", err)
	}
	if !res.Price.IsZero() || !res.RatePerGram.IsZero() {
		t.Errorf("platinum pricing = %s @ %s, want 0 @ 0", res.Price, res.RatePerGram)
	}
}

func TestComputePriceAutomaticMissingMaterialFails(t *testing.T) {
	for _, material := range []string{"", "   ", "vibranium"} {
		_, err := ComputePrice(Input{
			Mode:        ModeAutomatic,
			Material:    material,
			WeightGrams: "10",
		}, fixedLookup(nil))
		if !errors.Is(err, ErrMissingMaterial) {
			t.Errorf("material %q: err = %v, want ErrMissingMaterial", material, err)
		}
	}
}

func TestComputePriceNegativeLookupClamped(t *testing.T) {
	lookup := func(rates.Metal) decimal.Decimal { return decimal.NewFromInt(-5) }

	res, err := ComputePrice(Input{
		Mode:        ModeAutomatic,
		Material:    "gold",
		WeightGrams: "10",
	}, lookup)
	if err != nil {
		t.Fatalf("ComputePrice returned error: %v", err)
	}
	if res.Price.IsNegative() {
		t.Errorf("price must never be negative, got %s", res.Price)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Manual "); err != nil || m != ModeManual {
		t.Errorf("ParseMode(manual) = %v, %v", m, err)
	}
	if m, err := ParseMode("AUTOMATIC"); err != nil || m != ModeAutomatic {
		t.Errorf("ParseMode(automatic) = %v, %v", m, err)
	}
	if _, err := ParseMode("auto"); err == nil {
		t.Error("ParseMode should reject unknown modes")
	}
}
