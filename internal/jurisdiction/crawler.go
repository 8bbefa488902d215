package jurisdiction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"election_spider/internal/fetch"
	"election_spider/internal/redirect"
	urltemplate "election_spider/internal/url_template"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"golang.org/x/sync/errgroup"
)

// Strategy is how the children of a jurisdiction are found.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyJSONSettings
	StrategyHTMLListing
)

func (s Strategy) String() string {
	switch s {
	case StrategyJSONSettings:
		return "json-settings"
	case StrategyHTMLListing:
		return "html-listing"
	default:
		return "none"
	}
}

const listingPage = "select-county.html"

var (
	ErrBadListingPath = errors.New("listing path has fewer than two segments")
	// ErrDiscoveryInterrupted marks a discovery cut short by its context.
	// Children not reached before that are neither listed nor failed
	// individually.
	ErrDiscoveryInterrupted = errors.New("discovery interrupted")
)

// Candidate is a child scraped from a listing page (Name, Path) or read from
// the election settings (Name, Election, Version, Date).
type Candidate struct {
	Name     string
	Path     string
	Election string
	Version  string
	Date     string
}

// ChildFailure is a child that was dropped from a discovery. Name and URL
// are as far as the crawl got before Err.
type ChildFailure struct {
	Name string
	URL  string
	Err  error
}

// Discovery is the outcome of one Discover call.
type Discovery struct {
	Strategy Strategy
	Children []*Jurisdiction
	Failures []ChildFailure
}

type childRef struct {
	name string
	url  string
}

type Crawler struct {
	client *Client
}

// Discover finds the children of j. Only states list their counties; every
// other level yields an empty result without touching the network. A child
// that cannot be resolved is dropped and reported in Failures.
func (cr *Crawler) Discover(ctx context.Context, j *Jurisdiction) Discovery {
	strategy := selectStrategy(j)

	var d Discovery
	switch strategy {
	case StrategyJSONSettings:
		d = cr.discoverFromSettings(ctx, j)
	case StrategyHTMLListing:
		d = cr.discoverFromListing(ctx, j)
	default:
		return Discovery{Strategy: StrategyNone}
	}
	d.Strategy = strategy
	if err := ctx.Err(); err != nil {
		d.Failures = append(d.Failures, ChildFailure{URL: j.URL, Err: fmt.Errorf("%w: %w", ErrDiscoveryInterrupted, err)})
	}

	for _, f := range d.Failures {
		slog.WarnContext(ctx, "dropped subjurisdiction", "name", f.Name, "url", f.URL, "err", f.Err)
	}
	slog.InfoContext(ctx, "discovered subjurisdictions",
		"url", j.URL,
		"strategy", strategy,
		"children", len(d.Children),
		"failures", len(d.Failures),
	)
	return d
}

func selectStrategy(j *Jurisdiction) Strategy {
	if j.Level != LevelState {
		return StrategyNone
	}
	if hasAppMarker(j.URL) || strings.HasSuffix(j.SummaryURL, ".json") {
		return StrategyJSONSettings
	}
	return StrategyHTMLListing
}

// hasAppMarker reports whether raw uses one of the URL shapes of the
// settings-driven site generations.
func hasAppMarker(raw string) bool {
	if urltemplate.HasLegacyMarker(raw) {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	rest := u.Path + "#" + u.Fragment
	return strings.Contains(rest, "Web02") || strings.Contains(rest, "web.")
}

func (cr *Crawler) discoverFromSettings(ctx context.Context, j *Jurisdiction) Discovery {
	var d Discovery

	for _, candidate := range SettingsCandidates {
		settingsURL := j.Template.Construct(candidate, true)
		page, err := cr.client.http.Get(ctx, settingsURL)
		if err != nil {
			slog.DebugContext(ctx, "election settings unavailable", "url", settingsURL, "err", err)
			continue
		}

		records, err := decodeParticipatingCounties(page.Body)
		if err != nil {
			slog.WarnContext(ctx, "unreadable election settings", "url", settingsURL, "err", err)
			return d
		}

		for _, record := range records {
			child, err := cr.fromRecord(j, record)
			if err != nil {
				d.Failures = append(d.Failures, ChildFailure{Name: record, URL: settingsURL, Err: err})
				continue
			}
			d.Children = append(d.Children, child)
		}
		return d
	}

	return d
}

// fromRecord builds a county from a settings record. The record carries the
// authoritative election id and version, so the child's summary URL is
// known without touching the network.
func (cr *Crawler) fromRecord(state *Jurisdiction, record string) (*Jurisdiction, error) {
	c, err := parseCountyRecord(record)
	if err != nil {
		return nil, err
	}
	tmpl := state.Template.Child(pathSegment(c.Name), c.Election, c.Version)
	summary := tmpl.Construct("/"+urltemplate.LegacyMarker+redirect.SummaryTail, true)

	child, err := cr.client.build(summary, string(LevelCounty), c.Name)
	if err != nil {
		return nil, err
	}
	child.Version = child.Template.Version
	child.SummaryURL = child.URL
	return child, nil
}

func (cr *Crawler) discoverFromListing(ctx context.Context, j *Jurisdiction) Discovery {
	var d Discovery

	listingURL := j.Template.Construct(listingPath(j.Template.Tail), true)
	page, err := cr.client.http.Get(ctx, listingURL)
	if err != nil {
		slog.InfoContext(ctx, "county listing unavailable", "url", listingURL, "err", err)
		return d
	}
	doc, err := page.Document()
	if err != nil {
		slog.WarnContext(ctx, "unreadable county listing", "url", listingURL, "err", err)
		return d
	}

	refs, failures := cr.resolveRedirects(ctx, j.Template, scrapeListing(doc))
	children, more := cr.buildChildren(ctx, refs)

	d.Children = children
	d.Failures = append(failures, more...)
	return d
}

// listingPath swaps the last segment of the tail for the listing page.
func listingPath(tail string) string {
	dir := ""
	if i := strings.LastIndex(tail, "/"); i >= 0 {
		dir = tail[:i]
	}
	return dir + "/" + listingPage
}

func scrapeListing(doc *goquery.Document) []Candidate {
	var candidates []Candidate
	doc.Find("ul li a").Each(func(_ int, s *goquery.Selection) {
		path := strings.TrimSpace(s.AttrOr("value", ""))
		if path == "" {
			return
		}
		candidates = append(candidates, Candidate{
			Name: strings.TrimSpace(s.AttrOr("id", "")),
			Path: path,
		})
	})
	return candidates
}

// intermediateURL keeps the name and election segments of a listing path.
// The trailing slash saves the server a redirect.
func intermediateURL(state urltemplate.Template, path string) (string, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrBadListingPath, path)
	}
	return state.StateURL() + "/" + segments[0] + "/" + segments[1] + "/", nil
}

// joinTarget rebuilds the child URL from the post-redirect URL of the
// intermediate page and the path its markup points at.
func joinTarget(resolved, target string) (string, error) {
	t, err := urltemplate.Parse(resolved)
	if err != nil {
		return "", err
	}
	return t.Construct(target, false), nil
}

// resolveRedirects fetches the intermediate page of every candidate with at
// most workers requests in flight. No new request is started once ctx is
// done; the candidates left over are covered by the interrupted failure
// Discover records.
func (cr *Crawler) resolveRedirects(ctx context.Context, state urltemplate.Template, candidates []Candidate) ([]childRef, []ChildFailure) {
	c, err := cr.collector()
	if err != nil {
		failures := make([]ChildFailure, 0, len(candidates))
		for _, cand := range candidates {
			failures = append(failures, ChildFailure{Name: cand.Name, URL: cand.Path, Err: err})
		}
		return nil, failures
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		resolved := r.Request.URL.String()
		r.Ctx.Put("resolved", resolved)

		target, err := redirect.ExtractTarget(r.Body)
		if err != nil {
			r.Ctx.Put("err", err)
			return
		}
		childURL, err := joinTarget(resolved, target)
		if err != nil {
			r.Ctx.Put("err", err)
			return
		}
		r.Ctx.Put("child", childURL)
	})

	refs := make([]childRef, len(candidates))
	errs := make([]error, len(candidates))
	started := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(cr.client.workers)
	for i, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			refs[i], errs[i] = followRedirect(ctx, c, state, cand)
			return nil
		})
	}
	_ = g.Wait()

	var resolved []childRef
	var failures []ChildFailure
	for i := range candidates {
		switch {
		case !started[i]:
		case errs[i] != nil:
			failures = append(failures, ChildFailure{Name: refs[i].name, URL: refs[i].url, Err: errs[i]})
		default:
			resolved = append(resolved, refs[i])
		}
	}
	return resolved, failures
}

// followRedirect loads the intermediate page of cand on the synchronous
// collector c and returns the child summary URL it points at.
func followRedirect(ctx context.Context, c *colly.Collector, state urltemplate.Template, cand Candidate) (childRef, error) {
	u, err := intermediateURL(state, cand.Path)
	if err != nil {
		return childRef{name: cand.Name, url: cand.Path}, err
	}
	ref := childRef{name: cand.Name, url: u}
	if err := ctx.Err(); err != nil {
		return ref, err
	}

	rctx := colly.NewContext()
	if err := c.Request("GET", u, nil, rctx, nil); err != nil {
		return ref, err
	}
	if resolved := rctx.Get("resolved"); resolved != "" {
		ref.url = resolved
	}
	if err, ok := rctx.GetAny("err").(error); ok {
		return ref, err
	}

	child := rctx.Get("child")
	if child == "" {
		if err := ctx.Err(); err != nil {
			return ref, err
		}
		return ref, fmt.Errorf("request to %s aborted", u)
	}
	ref.url = child
	return ref, nil
}

func (cr *Crawler) collector() (*colly.Collector, error) {
	h := cr.client.http

	c := colly.NewCollector(
		colly.UserAgent(fetch.UserAgent),
		colly.AllowedDomains(AllowedHosts...),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = !h.RespectsRobots()
	c.WithTransport(h.Transport())
	c.SetRequestTimeout(h.Timeout())

	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cr.client.workers,
	})
	if err != nil {
		return nil, fmt.Errorf("configure collector: %w", err)
	}
	return c, nil
}

// buildChildren constructs one county per ref, running at most workers
// constructions at once. Each task only writes its own slot; the result
// is assembled after all of them finish.
func (cr *Crawler) buildChildren(ctx context.Context, refs []childRef) ([]*Jurisdiction, []ChildFailure) {
	results := make([]*Jurisdiction, len(refs))
	errs := make([]error, len(refs))

	var g errgroup.Group
	g.SetLimit(cr.client.workers)
	for i, ref := range refs {
		g.Go(func() error {
			results[i], errs[i] = cr.client.New(ctx, ref.url, string(LevelCounty), ref.name)
			return nil
		})
	}
	_ = g.Wait()

	children := make([]*Jurisdiction, 0, len(refs))
	var failures []ChildFailure
	for i, ref := range refs {
		if errs[i] != nil {
			failures = append(failures, ChildFailure{Name: ref.name, URL: ref.url, Err: errs[i]})
			continue
		}
		children = append(children, results[i])
	}
	return children, failures
}
