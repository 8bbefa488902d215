package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"election_spider/internal/app"
	"election_spider/internal/config"
	"election_spider/internal/jurisdiction"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	workers    int
	timeoutSec int
	robots     bool
)

var rootCmd = &cobra.Command{
	Use:   "election_spider",
	Short: "election_spider resolves and crawls election night reporting sites.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})))
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every request")
	flags.IntVar(&workers, "workers", config.DefaultWorkers, "maximum requests in flight during discovery")
	flags.IntVar(&timeoutSec, "timeout", config.DefaultTimeoutSec, "per-request timeout in seconds")
	flags.BoolVar(&robots, "robots", false, "honour robots.txt")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *jurisdiction.Client {
	return app.NewClient(config.HTTPConfig{
		TimeoutSec:       timeoutSec,
		Workers:          workers,
		RespectRobotsTxt: robots,
	})
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
