package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"jewelry-rates/internal/app"
)

var (
	productSKU      string
	productName     string
	productMode     string
	productManual   string
	productMaterial string
	productWeight   string

	productListMaterial string
	productListPrice    string
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage product pricing snapshots",
}

var productSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Price a product against the latest rates and persist it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if productSKU == "" {
			return fmt.Errorf("--sku must be provided")
		}

		opts := app.ProductSaveOptions{
			SKU:         productSKU,
			Name:        productName,
			Mode:        productMode,
			ManualPrice: productManual,
			Material:    productMaterial,
			WeightGrams: productWeight,
		}

		return getApp().SaveProduct(cmd.Context(), opts)
	},
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved products, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ProductListOptions{
			Material:   productListMaterial,
			PriceRange: productListPrice,
		}

		return getApp().ListProducts(cmd.Context(), opts)
	},
}

func init() {
	productSaveCmd.Flags().StringVar(&productSKU, "sku", "", "Product SKU (unique key)")
	productSaveCmd.Flags().StringVar(&productName, "name", "", "Product display name")
	productSaveCmd.Flags().StringVar(&productMode, "mode", "automatic", "Pricing mode (manual or automatic)")
	productSaveCmd.Flags().StringVar(&productManual, "manual-price", "", "Operator-entered price (manual mode)")
	productSaveCmd.Flags().StringVar(&productMaterial, "material", "", "Product material (gold, silver, platinum)")
	productSaveCmd.Flags().StringVar(&productWeight, "weight", "", "Product weight in grams")

	productListCmd.Flags().StringVar(&productListMaterial, "material", "", "Filter by material")
	productListCmd.Flags().StringVar(&productListPrice, "price", "", "Price range filter, e.g. 100-500, 1000+, <500")

	productCmd.AddCommand(productSaveCmd)
	productCmd.AddCommand(productListCmd)
}
