package cli

import (
	"github.com/spf13/cobra"

	"jewelry-rates/internal/app"
)

var (
	priceMode     string
	priceManual   string
	priceMaterial string
	priceWeight   string
	priceRate     string
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Compute a product price from weight and the current rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PriceOptions{
			Mode:         priceMode,
			ManualPrice:  priceManual,
			Material:     priceMaterial,
			WeightGrams:  priceWeight,
			RateOverride: priceRate,
		}

		return getApp().Price(cmd.Context(), opts)
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceMode, "mode", "automatic", "Pricing mode (manual or automatic)")
	priceCmd.Flags().StringVar(&priceManual, "manual-price", "", "Operator-entered price (manual mode)")
	priceCmd.Flags().StringVar(&priceMaterial, "material", "", "Product material (gold, silver, platinum)")
	priceCmd.Flags().StringVar(&priceWeight, "weight", "", "Product weight in grams")
	priceCmd.Flags().StringVar(&priceRate, "rate", "", "Override final rate per gram instead of reading storage")
}
