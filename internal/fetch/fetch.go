package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

// UserAgent is sent on every request. The reporting sites block clients
// that do not look like a browser, so the value must stay as is.
const UserAgent = "Mozilla/5.0 (platform; rv:geckoversion) Gecko/geckotrail Firefox/firefoxversion"

const (
	DefaultTimeout = 30 * time.Second
	MaxRedirects   = 10
)

var ErrDisallowed = errors.New("disallowed by robots.txt")

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

// Page is a successfully fetched resource.
type Page struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

func (p *Page) Document() (*goquery.Document, error) {
	return DecodeHTML(p.Body, p.ContentType)
}

// DecodeHTML converts body to UTF-8 according to contentType and parses it.
func DecodeHTML(body []byte, contentType string) (*goquery.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(body))
	}
	return goquery.NewDocumentFromReader(reader)
}

type Client struct {
	http          *resty.Client
	transport     http.RoundTripper
	timeout       time.Duration
	respectRobots bool

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

type Option func(*Client)

// WithTransport routes every request through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRobots makes the client consult each host's robots.txt before
// issuing a request.
func WithRobots(respect bool) Option {
	return func(c *Client) {
		c.respectRobots = respect
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		timeout: DefaultTimeout,
		robots:  make(map[string]*robotstxt.Group),
	}
	for _, opt := range opts {
		opt(c)
	}

	client := resty.New()
	client.SetHeader("User-Agent", UserAgent)
	client.SetTimeout(c.timeout)
	client.SetRetryCount(0)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(MaxRedirects))
	if c.transport != nil {
		client.SetTransport(c.transport)
	}
	c.http = client

	return c
}

// Transport returns the round tripper requests go through, so that other
// HTTP stacks can share it.
func (c *Client) Transport() http.RoundTripper {
	if c.transport == nil {
		return http.DefaultTransport
	}
	return c.transport
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) RespectsRobots() bool {
	return c.respectRobots
}

// Get issues exactly one GET (plus any redirects). Non-2xx responses are
// returned as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	if err := c.checkRobots(ctx, rawURL); err != nil {
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		slog.DebugContext(ctx, "fetch failed", "url", rawURL, "err", err)
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	slog.DebugContext(ctx, "fetched", "url", rawURL, "status", res.StatusCode())

	if !res.IsSuccess() {
		return nil, &StatusError{URL: rawURL, Code: res.StatusCode()}
	}

	return &Page{
		URL:         finalURL(res, rawURL),
		StatusCode:  res.StatusCode(),
		ContentType: res.Header().Get("Content-Type"),
		Body:        res.Body(),
	}, nil
}

// Exists reports whether rawURL answers with a 2xx status. It asks with HEAD
// and falls back to GET for servers that do not implement HEAD.
func (c *Client) Exists(ctx context.Context, rawURL string) bool {
	if err := c.checkRobots(ctx, rawURL); err != nil {
		return false
	}

	res, err := c.http.R().
		SetContext(ctx).
		Head(rawURL)
	if err != nil {
		slog.DebugContext(ctx, "existence check failed", "url", rawURL, "err", err)
		return false
	}
	switch res.StatusCode() {
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		_, err := c.Get(ctx, rawURL)
		return err == nil
	}
	slog.DebugContext(ctx, "existence checked", "url", rawURL, "status", res.StatusCode())
	return res.IsSuccess()
}

func finalURL(res *resty.Response, fallback string) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		return res.RawResponse.Request.URL.String()
	}
	return fallback
}

func (c *Client) checkRobots(ctx context.Context, rawURL string) error {
	if !c.respectRobots {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	group := c.robotsGroup(ctx, u)
	if group != nil && !group.Test(u.Path) {
		return fmt.Errorf("fetch %s: %w", rawURL, ErrDisallowed)
	}
	return nil
}

func (c *Client) robotsGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	c.mu.Lock()
	group, ok := c.robots[u.Host]
	c.mu.Unlock()
	if ok {
		return group
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	res, err := c.http.R().
		SetContext(ctx).
		Get(robotsURL)
	if err != nil {
		slog.WarnContext(ctx, "robots.txt unavailable, allowing all", "url", robotsURL, "err", err)
	} else {
		data, err := robotstxt.FromStatusAndBytes(res.StatusCode(), res.Body())
		if err != nil {
			slog.WarnContext(ctx, "robots.txt unparsable, allowing all", "url", robotsURL, "err", err)
		} else {
			group = data.FindGroup(UserAgent)
		}
	}

	c.mu.Lock()
	c.robots[u.Host] = group
	c.mu.Unlock()
	return group
}
