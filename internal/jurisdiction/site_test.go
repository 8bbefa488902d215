package jurisdiction

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"election_spider/internal/fetch"
	"election_spider/internal/testutil"
)

const origin = "https://results.enr.clarityelections.com"

type county struct {
	name     string
	election string
	version  string
}

// fakeSite serves a small reporting site. Paths in pages get a 200 with the
// given body, everything else 404s unless a hook claims it.
type fakeSite struct {
	mu    sync.Mutex
	pages map[string]string
	hooks []func(w http.ResponseWriter, r *http.Request) bool

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	delay       time.Duration
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: make(map[string]string)}
}

func (s *fakeSite) page(path, body string) {
	s.mu.Lock()
	s.pages[path] = body
	s.mu.Unlock()
}

func (s *fakeSite) hook(h func(w http.ResponseWriter, r *http.Request) bool) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	body, ok := s.pages[r.URL.Path]
	hooks := append([]func(http.ResponseWriter, *http.Request) bool(nil), s.hooks...)
	s.mu.Unlock()

	for _, h := range hooks {
		if h(w, r) {
			return
		}
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(r.URL.Path, ".json") {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Write([]byte(body))
}

func newTestClient(t *testing.T, site *fakeSite, opts ...Option) (*Client, *testutil.RewriteTransport) {
	server := httptest.NewServer(site)
	t.Cleanup(server.Close)

	rt := testutil.NewRewriteTransport(t, server)
	http := fetch.New(fetch.WithTransport(rt))
	return NewClient(append([]Option{WithHTTP(http)}, opts...)...), rt
}

func metaRedirect(version string) string {
	return fmt.Sprintf(`<html><head><meta http-equiv="Refresh" content="0; URL=./%s/en/summary.html"></head><body></body></html>`, version)
}

func scriptRedirect(version string) string {
	return fmt.Sprintf(`<html><head><script src="./%s/js/version.js" type="text/javascript"></script></head><body></body></html>`, version)
}

func countyName(i int) string {
	return fmt.Sprintf("County%c%c", 'A'+i/26, 'A'+i%26)
}

// stateSite lays out a legacy state election with n counties that are
// reached through intermediate redirect pages.
func stateSite(n int) (*fakeSite, []county) {
	site := newFakeSite()
	site.page("/KY/50972/131636/en/summary.html", "<html>state summary</html>")

	var listing strings.Builder
	listing.WriteString("<html><body><ul>")

	counties := make([]county, n)
	for i := range counties {
		c := county{
			name:     countyName(i),
			election: fmt.Sprint(60000 + i),
			version:  fmt.Sprint(70000 + i),
		}
		counties[i] = c

		fmt.Fprintf(&listing, `<li><a href="#" value="/%s/%s/%s/en/summary.html" id="%s">%s</a></li>`,
			c.name, c.election, c.version, c.name, c.name)

		base := "/KY/" + c.name + "/" + c.election + "/"
		page := metaRedirect(c.version)
		if i%2 == 1 {
			page = scriptRedirect(c.version)
		}
		if i%3 == 0 {
			// some intermediate pages sit behind an HTTP redirect
			site.page(base+"index.html", page)
			site.hook(func(w http.ResponseWriter, r *http.Request) bool {
				if r.URL.Path != base {
					return false
				}
				http.Redirect(w, r, base+"index.html", http.StatusFound)
				return true
			})
		} else {
			site.page(base, page)
		}
		site.page(base+c.version+"/en/summary.html", "<html>county summary</html>")
	}

	listing.WriteString("</ul></body></html>")
	site.page("/KY/50972/131636/en/select-county.html", listing.String())
	return site, counties
}
