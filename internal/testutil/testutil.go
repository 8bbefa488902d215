package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// RewriteTransport sends every request to the test server while leaving
// the logical URL (host included) untouched for the caller, so clients
// can be exercised against real reporting hostnames.
type RewriteTransport struct {
	target *url.URL
	next   http.RoundTripper

	mu       sync.Mutex
	requests []string
}

func NewRewriteTransport(t testing.TB, server *httptest.Server) *RewriteTransport {
	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	return &RewriteTransport{
		target: target,
		next:   server.Client().Transport,
	}
}

func (rt *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.requests = append(rt.requests, req.Method+" "+req.URL.String())
	rt.mu.Unlock()

	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	out.Host = req.URL.Host

	res, err := rt.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	res.Request = req
	return res, nil
}

// Requests returns "METHOD url" for every request seen so far.
func (rt *RewriteTransport) Requests() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]string(nil), rt.requests...)
}

func (rt *RewriteTransport) Reset() {
	rt.mu.Lock()
	rt.requests = nil
	rt.mu.Unlock()
}
