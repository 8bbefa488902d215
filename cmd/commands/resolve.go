package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var reportFormats = []string{"xml", "xls", "csv", "txt"}

var (
	resolveLevel string
	resolveName  string
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVarP(&resolveLevel, "level", "l", "state", "level of the jurisdiction (state, county, city, precinct)")
	resolveCmd.Flags().StringVarP(&resolveName, "name", "n", "", "display name of the jurisdiction")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Resolves the current version, summary page and report archives of a results page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		j, err := newClient().New(ctx, args[0], resolveLevel, resolveName)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows([]table.Row{
			{"Level", j.Level},
			{"Name", orDash(j.Name)},
			{"URL", j.URL},
			{"State", j.Template.State},
			{"Election", j.Template.Election},
			{"Version", orDash(j.Version)},
			{"Summary", orDash(j.SummaryURL)},
		})
		for _, format := range reportFormats {
			u, _ := j.ReportURL(ctx, format)
			t.AppendRow(table.Row{"Report (" + format + ")", orDash(u)})
		}
		u, _ := j.SummaryArchiveURL(ctx)
		t.AppendRow(table.Row{"Summary archive", orDash(u)})
		t.Render()
		return nil
	},
}
