package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/savings/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		common.LoadVersionFromFile()
		fmt.Fprintln(cmd.OutOrStdout(), common.GetFullVersion())
	},
}
