package extraction

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"caseharvest/lib/casestore"
)

// Render formats the reconciliation as a terminal table.
func (r Report) Render() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRows([]table.Row{
		{"Offered", r.Offered},
		{"Committed", r.Committed},
		{"Duplicates", r.Duplicates},
		{"Rejected", r.Rejected},
		{"Failed", r.Failed},
	})
	t.AppendFooter(table.Row{"Total in file", r.Summary.TotalRecords})
	return fmt.Sprintf(
		"%s\noutput: %s\nsummary: %s\n",
		t.Render(),
		r.Summary.OutputPath,
		casestore.SummaryPath(r.Summary.OutputPath),
	)
}
