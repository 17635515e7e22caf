package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"jewelry-rates/internal/app"
)

var (
	recordMetal string
	recordRaw   string
	recordFinal string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a manual rate observation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordMetal == "" || recordRaw == "" || recordFinal == "" {
			return fmt.Errorf("--metal, --raw and --final must be provided")
		}

		opts := app.RecordOptions{
			Metal: recordMetal,
			Raw:   recordRaw,
			Final: recordFinal,
		}

		return getApp().Record(cmd.Context(), opts)
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordMetal, "metal", "", "Metal type (gold or silver)")
	recordCmd.Flags().StringVar(&recordRaw, "raw", "", "Per-gram rate before markup")
	recordCmd.Flags().StringVar(&recordFinal, "final", "", "Per-gram rate after markup")
}
