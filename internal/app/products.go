package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"jewelry-rates/internal/pricing"
	"jewelry-rates/internal/rates"
	"jewelry-rates/internal/service"
	"jewelry-rates/internal/storage"
)

// ProductSaveOptions hold the form-shaped fields of a product save.
type ProductSaveOptions struct {
	SKU         string
	Name        string
	Mode        string
	ManualPrice string
	Material    string
	WeightGrams string
}

// ProductListOptions narrow a product listing.
type ProductListOptions struct {
	Material   string
	PriceRange string
}

// SaveProduct prices a product against the latest rates and persists the
// snapshot.
func (a *App) SaveProduct(ctx context.Context, opts ProductSaveOptions) error {
	mode, err := pricing.ParseMode(opts.Mode)
	if err != nil {
		return err
	}

	svc, store, closer, svcErr := a.newService(ctx)
	if svcErr != nil {
		return svcErr
	}
	defer closer()
	if store == nil {
		return errors.New("database not configured; cannot save products")
	}

	product, err := svc.SaveProduct(ctx, service.ProductInput{
		SKU:         opts.SKU,
		Name:        opts.Name,
		Mode:        mode,
		ManualPrice: opts.ManualPrice,
		Material:    opts.Material,
		WeightGrams: opts.WeightGrams,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "saved %s: price %s (rate %s/g)\n",
		product.SKU,
		product.Price.StringFixed(2),
		product.RatePerGram.StringFixed(2),
	)
	return nil
}

// ListProducts prints saved products, optionally filtered by material and
// a price-range expression like "100-500", "1000+", or "<500".
func (a *App) ListProducts(ctx context.Context, opts ProductListOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list products")
	}
	if closeStore != nil {
		defer closeStore()
	}

	filter := storage.ProductFilter{}
	if opts.Material != "" {
		material, parseErr := rates.Parse(opts.Material)
		if parseErr != nil {
			return parseErr
		}
		filter.Material = material
	}
	filter.MinPrice, filter.MaxPrice = storage.ParsePriceRange(opts.PriceRange)

	products, err := store.ListProducts(ctx, filter)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(os.Stdout, "no products found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "SKU\tName\tMaterial\tWeight (g)\tRate/g\tPrice\tManual")
	for _, product := range products {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			product.SKU,
			product.Name,
			product.Material,
			product.WeightGrams.StringFixed(2),
			product.RatePerGram.StringFixed(2),
			product.Price.StringFixed(2),
			product.ManualPrice,
		)
	}
	return writer.Flush()
}
