package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"election_spider/internal/report"

	"github.com/spf13/cobra"
)

var (
	reportLevel  string
	reportFormat string
	reportOut    string
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportLevel, "level", "l", "state", "level of the jurisdiction (state, county, city, precinct)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "xml", "detail report format (xml, xls, csv, txt)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output file, defaults to the archive member name")
}

var reportCmd = &cobra.Command{
	Use:   "report <url>",
	Short: "Downloads the detail report of a results page and extracts it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newClient()

		j, err := client.New(ctx, args[0], reportLevel, "")
		if err != nil {
			return err
		}

		u, ok := j.ReportURL(ctx, reportFormat)
		if !ok {
			return fmt.Errorf("no %s detail report published for %s", reportFormat, j.URL)
		}

		member, err := report.Fetch(ctx, client.Fetcher(), u)
		if err != nil {
			return err
		}

		out := reportOut
		if out == "" {
			out = filepath.Base(member.Name)
		}
		if err := os.WriteFile(out, member.Data, 0o644); err != nil {
			return err
		}
		slog.Info("report written", "url", u, "member", member.Name, "file", out, "bytes", len(member.Data))
		return nil
	},
}
