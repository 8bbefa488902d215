package commands

import (
	"fmt"
	"time"

	"election_spider/internal/app"
	"election_spider/internal/config"
	"election_spider/internal/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var configPath string

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "crawler configuration")
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawls every configured election and stores the jurisdictions in MongoDB.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		store, err := db.NewMongoDB(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		results, runErr := app.NewCrawlApp(cfg, store).Run(ctx)

		t := newTable()
		t.AppendHeader(table.Row{"Election", "Version", "Status", "Resolved", "Failures", "Stored", "Duration"})
		for _, r := range results {
			status := "crawled"
			if r.Skipped {
				status = "unchanged"
				if r.Refreshed > 0 {
					status = fmt.Sprintf("unchanged, %d refreshed", r.Refreshed)
				}
			}

			stored := "-"
			if stats, err := store.ElectionStats(ctx, r.Election); err == nil {
				stored = fmt.Sprint(stats)
			}

			t.AppendRow(table.Row{r.Election, orDash(r.Version), status, r.Resolved(), r.Failures, stored, r.Duration.Round(time.Millisecond)})
		}
		t.Render()

		return runErr
	},
}
