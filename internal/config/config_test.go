package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const baseConfig = `
db:
  connection: mongodb://localhost:27017
  database: elections
logic:
  max_depth: 2
http:
  timeout_sec: 15
  workers: 4
elections:
  ky-2014:
    url: https://results.enr.clarityelections.com/KY/50972/131636/en/summary.html
    name: Kentucky
    reports: [xml]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, baseConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "elections", cfg.DB.Database)
	require.Equal(t, "jurisdictions", cfg.DB.Collections.Jurisdictions)
	require.Equal(t, "crawl_history", cfg.DB.Collections.CrawlHistory)
	require.Equal(t, 2, cfg.Logic.MaxDepth)
	require.Equal(t, DefaultRecrawlThresholdHours, cfg.Logic.RecrawlThresholdHours)
	require.Equal(t, DefaultConcurrentElections, cfg.Logic.MaxConcurrentWorkers)
	require.Equal(t, DefaultStaleBatchSize, cfg.Logic.StaleBatchSize)
	require.Equal(t, 4, cfg.HTTP.Workers)
	require.Equal(t, 15*time.Second, cfg.HTTP.Timeout())

	ky := cfg.Elections["ky-2014"]
	require.Equal(t, "state", ky.Level)
	require.Equal(t, "Kentucky", ky.Name)
	require.Equal(t, []string{"xml"}, ky.Reports)
}

func TestLoadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, baseConfig)
	writeFile(t, filepath.Join(dir, "config.local.yaml"), `
http:
  workers: 8
elections:
  ga-2018:
    url: https://results.enr.clarityelections.com/GA/91639/Web02/web.220963/#/summary
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 8, cfg.HTTP.Workers)
	require.Equal(t, 15, cfg.HTTP.TimeoutSec)
	require.Equal(t, "mongodb://localhost:27017", cfg.DB.Connection)
	require.Len(t, cfg.Elections, 2)
	require.Equal(t, "state", cfg.Elections["ga-2018"].Level)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.yaml")
	writeFile(t, empty, "db:\n  database: x\n")
	_, err = LoadConfig(empty)
	require.ErrorIs(t, err, ErrNoElections)

	noURL := filepath.Join(dir, "nourl.yaml")
	writeFile(t, noURL, "elections:\n  ky:\n    name: Kentucky\n")
	_, err = LoadConfig(noURL)
	require.ErrorContains(t, err, "missing url")

	broken := filepath.Join(dir, "broken.yaml")
	writeFile(t, broken, "elections: [")
	_, err = LoadConfig(broken)
	require.Error(t, err)
}
