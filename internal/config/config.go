package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v2"
)

// ElectionConfig is one election the crawler walks, starting from its
// top-level results page.
type ElectionConfig struct {
	URL     string   `yaml:"url"`
	Level   string   `yaml:"level"`
	Name    string   `yaml:"name"`
	Reports []string `yaml:"reports"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Jurisdictions string `yaml:"jurisdictions"`
		CrawlHistory  string `yaml:"crawl_history"`
	} `yaml:"collections"`
}

type LogicConfig struct {
	MaxDepth              int `yaml:"max_depth"`
	RecrawlThresholdHours int `yaml:"recrawl_threshold_hours"`
	MaxConcurrentWorkers  int `yaml:"max_concurrent_workers"`
	// StaleBatchSize caps how many stale records of an unchanged election
	// are refreshed per run.
	StaleBatchSize        int `yaml:"stale_batch_size"`
}

type HTTPConfig struct {
	TimeoutSec       int  `yaml:"timeout_sec"`
	Workers          int  `yaml:"workers"`
	RespectRobotsTxt bool `yaml:"respect_robots_txt"`
}

func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

type SpiderConfig struct {
	DB        DBConfig                  `yaml:"db"`
	Logic     LogicConfig               `yaml:"logic"`
	HTTP      HTTPConfig                `yaml:"http"`
	Elections map[string]ElectionConfig `yaml:"elections"`
}

const (
	DefaultWorkers               = 10
	DefaultTimeoutSec            = 30
	DefaultRecrawlThresholdHours = 6
	DefaultMaxDepth              = 1
	DefaultConcurrentElections   = 2
	DefaultStaleBatchSize        = 100
	DefaultDatabase              = "election_spider"
)

var ErrNoElections = errors.New("no elections configured")

// LoadConfig reads path and merges <name>.local.<ext> from the same
// directory over it when present.
func LoadConfig(path string) (*SpiderConfig, error) {
	cfg, err := readYAML(path)
	if err != nil {
		return nil, err
	}

	localPath := localName(path)
	local, err := readYAML(localPath)
	switch {
	case err == nil:
		if err := mergo.Merge(cfg, *local, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge %s: %w", localPath, err)
		}
		slog.Info("merging config with local overrides", "local", localPath)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readYAML(path string) (*SpiderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg SpiderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func localName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func (c *SpiderConfig) applyDefaults() {
	if c.HTTP.Workers <= 0 {
		c.HTTP.Workers = DefaultWorkers
	}
	if c.HTTP.TimeoutSec <= 0 {
		c.HTTP.TimeoutSec = DefaultTimeoutSec
	}
	if c.Logic.RecrawlThresholdHours <= 0 {
		c.Logic.RecrawlThresholdHours = DefaultRecrawlThresholdHours
	}
	if c.Logic.MaxDepth <= 0 {
		c.Logic.MaxDepth = DefaultMaxDepth
	}
	if c.Logic.MaxConcurrentWorkers <= 0 {
		c.Logic.MaxConcurrentWorkers = DefaultConcurrentElections
	}
	if c.Logic.StaleBatchSize <= 0 {
		c.Logic.StaleBatchSize = DefaultStaleBatchSize
	}
	if c.DB.Database == "" {
		c.DB.Database = DefaultDatabase
	}
	if c.DB.Collections.Jurisdictions == "" {
		c.DB.Collections.Jurisdictions = "jurisdictions"
	}
	if c.DB.Collections.CrawlHistory == "" {
		c.DB.Collections.CrawlHistory = "crawl_history"
	}
	for key, e := range c.Elections {
		if e.Level == "" {
			e.Level = "state"
			c.Elections[key] = e
		}
	}
}

// Validate checks that every election has a start URL.
func (c *SpiderConfig) Validate() error {
	if len(c.Elections) == 0 {
		return ErrNoElections
	}
	for key, e := range c.Elections {
		if strings.TrimSpace(e.URL) == "" {
			return fmt.Errorf("election %q: missing url", key)
		}
	}
	return nil
}
