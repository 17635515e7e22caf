package cli

import (
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch spot prices and append fresh rate observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Refresh(cmd.Context())
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the latest final rate per tracked metal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Latest(cmd.Context())
	},
}
