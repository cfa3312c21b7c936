package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"sqlsim/runner"
)

type humanFormatter struct{}

func (humanFormatter) FormatReport(report *runner.Report) (string, error) {
	var b strings.Builder

	if report.OK() {
		fmt.Fprintf(&b, "%s seed %d: %d interactions, %d steps in %s\n",
			color.GreenString("PASS"), report.Seed, report.Interactions, report.Steps, report.Elapsed.Round(0))
	} else {
		fmt.Fprintf(&b, "%s seed %d: %s\n",
			color.RedString("FAIL"), report.Seed, color.RedString(report.Failure))
		fmt.Fprintf(&b, "%d interactions, stopped after %d steps in %s\n",
			report.Interactions, report.Steps, report.Elapsed.Round(0))
	}

	stats := report.Stats
	table := tablewriter.NewTable(&b)
	table.Header([]string{"Read", "Write", "Delete", "Update", "Create", "CreateIndex", "Drop"})
	table.Append([]string{
		fmt.Sprint(stats.ReadCount),
		fmt.Sprint(stats.WriteCount),
		fmt.Sprint(stats.DeleteCount),
		fmt.Sprint(stats.UpdateCount),
		fmt.Sprint(stats.CreateCount),
		fmt.Sprint(stats.CreateIndexCount),
		fmt.Sprint(stats.DropCount),
	})
	table.Render()
	fmt.Fprintf(&b, "%s\n", stats)

	return b.String(), nil
}
