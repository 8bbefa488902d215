package jurisdiction

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"election_spider/internal/fetch"
	urltemplate "election_spider/internal/url_template"
)

// AllowedHosts are the only origins jurisdictions may be built from.
var AllowedHosts = []string{
	"results.enr.clarityelections.com",
}

const DefaultWorkers = 10

// Fetcher is the transport the resolution helpers need. *fetch.Client
// satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Client builds jurisdictions and discovers their children. It is safe for
// concurrent use.
type Client struct {
	http    *fetch.Client
	workers int
}

type Option func(*Client)

func WithHTTP(c *fetch.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithWorkers bounds the number of requests in flight during discovery.
func WithWorkers(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.workers = n
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{workers: DefaultWorkers}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = fetch.New()
	}
	return c
}

func (c *Client) Fetcher() Fetcher {
	return c.http
}

func (c *Client) Crawler() *Crawler {
	return &Crawler{client: c}
}

var defaultClient = NewClient()

// New builds a jurisdiction with the default client.
func New(ctx context.Context, rawURL any, level, name string) (*Jurisdiction, error) {
	return defaultClient.New(ctx, rawURL, level, name)
}

// Jurisdiction is one node of the reporting hierarchy. Version and
// SummaryURL are resolved once, when the value is built, and are empty when
// the site has not published them.
type Jurisdiction struct {
	Level Level
	Name  string
	// URL is the input URL after origin normalization.
	URL        string
	Template   urltemplate.Template
	Version    string
	SummaryURL string

	client *Client
}

// New validates rawURL and level, then resolves the data version and the
// summary resource. rawURL may be a string, []byte, url.URL, *url.URL or any
// fmt.Stringer. If ctx is done by the end of resolution New fails with the
// context error instead of returning a half-resolved jurisdiction.
func (c *Client) New(ctx context.Context, rawURL any, level, name string) (*Jurisdiction, error) {
	j, err := c.build(rawURL, level, name)
	if err != nil {
		return nil, err
	}

	version := j.Template.Version
	if version == "" {
		version, _ = ResolveVersion(ctx, c.http, j.Template)
	}
	j.Version = version
	j.Template = j.Template.WithVersion(version)
	if version != "" {
		j.SummaryURL, _ = Locate(ctx, c.http, j.Template, SummaryCandidates)
	}
	// a miss caused by cancellation is not a resolution miss
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", j.URL, err)
	}

	slog.DebugContext(ctx, "jurisdiction resolved",
		"level", j.Level,
		"name", j.Name,
		"version", j.Version,
		"summary_url", j.SummaryURL,
	)
	return j, nil
}

// build validates the inputs and returns the jurisdiction before any
// network resolution.
func (c *Client) build(rawURL any, level, name string) (*Jurisdiction, error) {
	s, err := urlString(rawURL)
	if err != nil {
		return nil, err
	}
	normalized, err := normalizeOrigin(s)
	if err != nil {
		return nil, err
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	tmpl, err := urltemplate.Parse(normalized)
	if err != nil {
		return nil, err
	}
	return &Jurisdiction{
		Level:    lvl,
		Name:     name,
		URL:      normalized,
		Template: tmpl,
		client:   c,
	}, nil
}

func urlString(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", ErrInvalidURLType
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case *url.URL:
		if v == nil {
			return "", ErrInvalidURLType
		}
		return v.String(), nil
	case url.URL:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidURLType, raw)
	}
}

// normalizeOrigin rejects hosts outside AllowedHosts, lowercases the host
// and upgrades plain http to https.
func normalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", &urltemplate.ParseError{URL: raw, Err: err}
	}

	if !isAllowedHost(u.Host) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedHost, u.Host)
	}
	u.Host = strings.ToLower(u.Host)
	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedHost, u.Scheme)
	}
	return u.String(), nil
}

func isAllowedHost(host string) bool {
	for _, allowed := range AllowedHosts {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}

var reFormat = regexp.MustCompile(`^[a-z0-9]+$`)

// ReportURL returns the detail report archive for format (xml, xls, txt,
// csv) if the site serves it.
func (j *Jurisdiction) ReportURL(ctx context.Context, format string) (string, bool) {
	format = strings.ToLower(format)
	if !reFormat.MatchString(format) {
		return "", false
	}
	return j.existingReport(ctx, "/reports/detail"+format+".zip")
}

// SummaryArchiveURL returns the summary report archive if the site serves it.
func (j *Jurisdiction) SummaryArchiveURL(ctx context.Context) (string, bool) {
	return j.existingReport(ctx, "/reports/summary.zip")
}

func (j *Jurisdiction) existingReport(ctx context.Context, rel string) (string, bool) {
	if !j.Template.HasVersion() {
		return "", false
	}
	u := j.Template.Construct(rel, true)
	if !j.client.http.Exists(ctx, u) {
		return "", false
	}
	return u, true
}

// DiscoverChildren returns the sub-jurisdictions of j. An empty result means
// either that j has none or that they could not be discovered.
func (j *Jurisdiction) DiscoverChildren(ctx context.Context) []*Jurisdiction {
	return j.client.Crawler().Discover(ctx, j).Children
}

func (j *Jurisdiction) Client() *Client {
	return j.client
}
