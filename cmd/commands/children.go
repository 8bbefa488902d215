package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var childrenLevel string

func init() {
	rootCmd.AddCommand(childrenCmd)
	childrenCmd.Flags().StringVarP(&childrenLevel, "level", "l", "state", "level of the jurisdiction (state, county, city, precinct)")
}

var childrenCmd = &cobra.Command{
	Use:   "children <url>",
	Short: "Lists the sub-jurisdictions of a results page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newClient()

		j, err := client.New(ctx, args[0], childrenLevel, "")
		if err != nil {
			return err
		}

		d := client.Crawler().Discover(ctx, j)
		fmt.Printf("strategy: %s, children: %d, failures: %d\n", d.Strategy, len(d.Children), len(d.Failures))

		if len(d.Children) > 0 {
			t := newTable()
			t.AppendHeader(table.Row{"#", "Name", "Version", "Summary"})
			for i, child := range d.Children {
				t.AppendRow(table.Row{i + 1, child.Name, orDash(child.Version), orDash(child.SummaryURL)})
			}
			t.Render()
		}

		if len(d.Failures) > 0 {
			t := newTable()
			t.AppendHeader(table.Row{"Name", "URL", "Error"})
			for _, f := range d.Failures {
				t.AppendRow(table.Row{orDash(f.Name), orDash(f.URL), f.Err})
			}
			t.Render()
		}
		return nil
	},
}
