package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"election_spider/internal/config"
	"election_spider/internal/fetch"
	"election_spider/internal/jurisdiction"
	"election_spider/internal/models"
	urlqueue "election_spider/internal/url_queue"

	"golang.org/x/sync/errgroup"
)

// Store persists crawl results. *db.MongoDB satisfies it.
type Store interface {
	GetJurisdiction(ctx context.Context, normalizedURL string) (*models.JurisdictionRecord, error)
	SaveJurisdiction(ctx context.Context, rec *models.JurisdictionRecord) error
	SaveCrawlHistory(ctx context.Context, history *models.CrawlHistory) error
	GetStaleJurisdictions(ctx context.Context, election string, thresholdHours int, limit int) ([]string, error)
}

type CrawlApp struct {
	config *config.SpiderConfig
	store  Store
	client *jurisdiction.Client
	now    func() time.Time
}

type Option func(*CrawlApp)

// WithClient replaces the client built from the http section of the config.
func WithClient(c *jurisdiction.Client) Option {
	return func(a *CrawlApp) {
		a.client = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *CrawlApp) {
		a.now = now
	}
}

func NewCrawlApp(cfg *config.SpiderConfig, store Store, opts ...Option) *CrawlApp {
	a := &CrawlApp{
		config: cfg,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = NewClient(cfg.HTTP)
	}
	return a
}

// NewClient builds a jurisdiction client from the http section of the config.
func NewClient(cfg config.HTTPConfig) *jurisdiction.Client {
	http := fetch.New(
		fetch.WithTimeout(cfg.Timeout()),
		fetch.WithRobots(cfg.RespectRobotsTxt),
	)
	return jurisdiction.NewClient(
		jurisdiction.WithHTTP(http),
		jurisdiction.WithWorkers(cfg.Workers),
	)
}

// ElectionResult summarizes the crawl of one election.
type ElectionResult struct {
	Election  string
	URL       string
	Version   string
	// Skipped is set when the election was crawled recently and its version
	// has not moved since.
	Skipped   bool
	// Refreshed counts the stale records of a skipped election that were
	// resolved again.
	Refreshed int
	Levels    map[string]int
	Failures  int
	Duration  time.Duration
}

func (r ElectionResult) Resolved() int {
	n := 0
	for _, c := range r.Levels {
		n += c
	}
	return n
}

// Run crawls every configured election, at most MaxConcurrentWorkers at
// once. A failing election does not stop the others; all failures are
// returned joined.
func (a *CrawlApp) Run(ctx context.Context) ([]ElectionResult, error) {
	names := make([]string, 0, len(a.config.Elections))
	for name := range a.config.Elections {
		names = append(names, name)
	}
	sort.Strings(names)

	slog.InfoContext(ctx, "starting crawl",
		"elections", len(names),
		"database", a.config.DB.Database,
		"max_depth", a.config.Logic.MaxDepth,
		"recrawl_threshold_hours", a.config.Logic.RecrawlThresholdHours,
	)

	results := make([]ElectionResult, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(max(a.config.Logic.MaxConcurrentWorkers, 1))
	for i, name := range names {
		g.Go(func() error {
			results[i], errs[i] = a.CrawlElection(ctx, name, a.config.Elections[name])
			if errs[i] != nil {
				slog.ErrorContext(ctx, "election crawl failed", "election", name, "err", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// CrawlElection walks the hierarchy of one election breadth first down to
// MaxDepth and stores every jurisdiction it resolves.
func (a *CrawlApp) CrawlElection(ctx context.Context, key string, e config.ElectionConfig) (ElectionResult, error) {
	start := a.now()
	result := ElectionResult{Election: key, URL: e.URL, Levels: make(map[string]int)}

	root, err := a.client.New(ctx, e.URL, e.Level, e.Name)
	if err != nil {
		return result, fmt.Errorf("election %s: %w", key, err)
	}
	result.Version = root.Version

	unchanged, err := a.unchanged(ctx, root)
	if err != nil {
		return result, fmt.Errorf("election %s: %w", key, err)
	}
	if unchanged {
		slog.InfoContext(ctx, "election unchanged, skipping", "election", key, "version", root.Version)
		result.Skipped = true
		errs := []error{a.store.SaveCrawlHistory(ctx, &models.CrawlHistory{
			Election:  key,
			URL:       root.URL,
			Level:     root.Level.String(),
			Status:    models.StatusUnchanged,
			Version:   root.Version,
			Timestamp: a.now().Unix(),
		})}
		errs = append(errs, a.refreshStale(ctx, key, e.Reports, &result))
		result.Duration = a.now().Sub(start)
		if err := errors.Join(errs...); err != nil {
			return result, fmt.Errorf("election %s: %w", key, err)
		}
		return result, nil
	}

	queue := urlqueue.NewURLQueue(key, a.config.Logic.MaxDepth)
	pending := map[string]*jurisdiction.Jurisdiction{}
	enqueue := func(j *jurisdiction.Jurisdiction, parent string, depth int) {
		item := urlqueue.Item{
			URL:    j.URL,
			Level:  j.Level.String(),
			Name:   j.Name,
			Parent: parent,
			Depth:  depth,
		}
		if queue.Add(item) {
			pending[urlqueue.NormalizeURL(j.URL)] = j
		}
	}
	enqueue(root, "", 0)

	var errs []error
	for item, ok := queue.Get(); ok; item, ok = queue.Get() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		normalized := urlqueue.NormalizeURL(item.URL)
		j := pending[normalized]
		delete(pending, normalized)

		if err := a.persist(ctx, key, j, item, e.Reports); err != nil {
			errs = append(errs, err)
			continue
		}
		result.Levels[item.Level]++

		if item.Depth >= queue.MaxDepth {
			continue
		}

		discoverStart := a.now()
		d := a.client.Crawler().Discover(ctx, j)
		if d.Strategy == jurisdiction.StrategyNone {
			continue
		}
		result.Failures += len(d.Failures)

		for _, child := range d.Children {
			enqueue(child, j.URL, item.Depth+1)
		}

		if err := a.store.SaveCrawlHistory(ctx, historyEntry(key, j, d, a.now().Sub(discoverStart), a.now())); err != nil {
			errs = append(errs, err)
		}
	}

	result.Duration = a.now().Sub(start)
	slog.InfoContext(ctx, "election crawled",
		"election", key,
		"resolved", result.Resolved(),
		"failures", result.Failures,
		"duration", result.Duration,
	)

	if err := errors.Join(errs...); err != nil {
		return result, fmt.Errorf("election %s: %w", key, err)
	}
	return result, nil
}

// unchanged reports whether root was crawled within the recrawl threshold
// at the version it has now.
func (a *CrawlApp) unchanged(ctx context.Context, root *jurisdiction.Jurisdiction) (bool, error) {
	if root.Version == "" {
		return false, nil
	}
	rec, err := a.store.GetJurisdiction(ctx, urlqueue.NormalizeURL(root.URL))
	if err != nil || rec == nil {
		return false, err
	}
	threshold := time.Duration(a.config.Logic.RecrawlThresholdHours) * time.Hour
	fresh := a.now().Sub(time.Unix(rec.LastCrawled, 0)) < threshold
	return fresh && rec.Version == root.Version, nil
}

// refreshStale resolves again the records of an unchanged election that
// have not been crawled within the recrawl threshold, typically left over
// by an interrupted run. No discovery is done for them.
func (a *CrawlApp) refreshStale(ctx context.Context, key string, formats []string, result *ElectionResult) error {
	limit := a.config.Logic.StaleBatchSize
	if limit <= 0 {
		limit = config.DefaultStaleBatchSize
	}
	stale, err := a.store.GetStaleJurisdictions(ctx, key, a.config.Logic.RecrawlThresholdHours, limit)
	if err != nil {
		return err
	}

	var errs []error
	for _, normalized := range stale {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rec, err := a.store.GetJurisdiction(ctx, normalized)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec == nil {
			continue
		}

		j, err := a.client.New(ctx, rec.URL, rec.Level, rec.Name)
		if err != nil {
			slog.WarnContext(ctx, "stale jurisdiction not refreshed", "election", key, "url", rec.URL, "err", err)
			result.Failures++
			continue
		}
		item := urlqueue.Item{
			URL:    rec.URL,
			Level:  rec.Level,
			Name:   rec.Name,
			Parent: rec.ParentURL,
			Depth:  rec.Depth,
		}
		if err := a.persist(ctx, key, j, item, formats); err != nil {
			errs = append(errs, err)
			continue
		}
		result.Refreshed++
		result.Levels[rec.Level]++
	}

	if len(stale) > 0 {
		slog.InfoContext(ctx, "refreshed stale jurisdictions", "election", key, "stale", len(stale), "refreshed", result.Refreshed)
	}
	return errors.Join(errs...)
}

func (a *CrawlApp) persist(ctx context.Context, election string, j *jurisdiction.Jurisdiction, item urlqueue.Item, formats []string) error {
	now := a.now().Unix()
	rec := &models.JurisdictionRecord{
		URL:           j.URL,
		NormalizedURL: urlqueue.NormalizeURL(j.URL),
		Election:      election,
		Level:         j.Level.String(),
		Name:          j.Name,
		State:         j.Template.State,
		ElectionID:    j.Template.Election,
		Version:       j.Version,
		SummaryURL:    j.SummaryURL,
		ParentURL:     item.Parent,
		Depth:         item.Depth,
		FirstSeen:     now,
		LastCrawled:   now,
	}

	for _, format := range formats {
		if u, ok := j.ReportURL(ctx, format); ok {
			if rec.ReportURLs == nil {
				rec.ReportURLs = make(map[string]string)
			}
			rec.ReportURLs[format] = u
		}
	}

	return a.store.SaveJurisdiction(ctx, rec)
}

func historyEntry(election string, j *jurisdiction.Jurisdiction, d jurisdiction.Discovery, took time.Duration, at time.Time) *models.CrawlHistory {
	h := &models.CrawlHistory{
		Election:  election,
		URL:       j.URL,
		Level:     j.Level.String(),
		Status:    models.StatusSuccess,
		Strategy:  d.Strategy.String(),
		Version:   j.Version,
		Children:  len(d.Children),
		Failures:  len(d.Failures),
		Timestamp: at.Unix(),
		Duration:  int(took.Milliseconds()),
	}
	switch {
	case len(d.Failures) > 0 && len(d.Children) == 0:
		h.Status = models.StatusError
		h.Error = d.Failures[0].Err.Error()
	case len(d.Failures) > 0:
		h.Status = models.StatusPartial
		h.Error = d.Failures[0].Err.Error()
	}
	return h
}
