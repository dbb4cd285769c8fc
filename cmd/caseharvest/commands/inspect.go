package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"caseharvest/lib/casestore"
	"caseharvest/lib/serviceutil"
)

var inspectLimit *int

func init() {
	inspectLimit = inspectCmd.Flags().Int("limit", 25, "Maximum number of rows to print, 0 for all.")
	rootCmd.AddCommand(inspectCmd)
}

func field(record casestore.Record, name string) string {
	value, ok := record[name].(string)
	if !ok {
		return casestore.Sentinel
	}
	return value
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <path/to/cases.json>",
	Short: "Prints a summary table of the records in a result file.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		records, err := casestore.Load(args[0])
		if err != nil {
			serviceutil.Fatal("failed to load result file", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Case No", "Title", "Status", "Institution", "Disposal"})
		for i, record := range records {
			if *inspectLimit > 0 && i >= *inspectLimit {
				break
			}
			t.AppendRow(table.Row{
				i + 1,
				field(record, "Case_No"),
				field(record, "Case_Title"),
				field(record, "Status"),
				field(record, "Institution_Date"),
				field(record, "Disposal_Date"),
			})
		}
		t.AppendFooter(table.Row{"", "Total", len(records)})
		t.Render()

		fmt.Printf("summary sidecar: %s\n", casestore.SummaryPath(args[0]))
	},
}
