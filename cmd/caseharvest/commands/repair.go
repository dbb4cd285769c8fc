package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"caseharvest/lib/casestore"
	"caseharvest/lib/serviceutil"
)

func init() {
	rootCmd.AddCommand(repairCmd)
}

var repairCmd = &cobra.Command{
	Use:   "repair <path/to/cases.json>",
	Short: "Closes the JSON array of a result file left open by a crashed run.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repaired, err := casestore.Repair(args[0])
		if err != nil {
			serviceutil.Fatal("failed to repair result file", err)
		}
		if repaired {
			slog.Info("closed unterminated result file", "path", args[0])
		} else {
			slog.Info("result file is already well formed", "path", args[0])
		}
	},
}
