package urltemplate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// LegacyMarker is a rendering-mode path segment older sites insert between
// the version and the language segment. It carries no hierarchy information.
const LegacyMarker = "Web01"

var (
	ErrNoMatch     = errors.New("path does not match the reporting url grammar")
	ErrNotAbsolute = errors.New("url must have a scheme and a host")
)

// <prefix>/<STATE>[/<name>]/<election>[/<version>]<tail>
var reTemplatePath = regexp.MustCompile(
	`^(?P<prefix>(?:/[^/]+)*?)/(?P<state>[A-Z]{2})(?:/(?P<name>[A-Za-z_.]+))?/(?P<election>[0-9]+)(?:/(?P<version>[0-9]+))?(?P<tail>/.*)?$`,
)

var (
	groupPrefix   = reTemplatePath.SubexpIndex("prefix")
	groupState    = reTemplatePath.SubexpIndex("state")
	groupName     = reTemplatePath.SubexpIndex("name")
	groupElection = reTemplatePath.SubexpIndex("election")
	groupVersion  = reTemplatePath.SubexpIndex("version")
	groupTail     = reTemplatePath.SubexpIndex("tail")
)

// ParseError wraps why a URL is not a reporting URL: a url.Parse error,
// ErrNotAbsolute or ErrNoMatch.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse reporting url %q: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Template is the structured form of a reporting URL. It is a value type:
// every derivation returns a modified copy.
type Template struct {
	// BaseURI is scheme, host and any path segments before the state code.
	BaseURI  string
	State    string
	Name     string
	Election string
	Version  string
	Tail     string
	RawQuery string
	Fragment string
}

// Parse decomposes raw into a Template. The legacy rendering marker is
// removed from the path before matching.
func Parse(raw string) (Template, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Template{}, &ParseError{URL: raw, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return Template{}, &ParseError{URL: raw, Err: ErrNotAbsolute}
	}

	m := reTemplatePath.FindStringSubmatch(StripLegacyMarker(u.Path))
	if m == nil {
		return Template{}, &ParseError{URL: raw, Err: ErrNoMatch}
	}

	return Template{
		BaseURI:  u.Scheme + "://" + u.Host + m[groupPrefix],
		State:    m[groupState],
		Name:     m[groupName],
		Election: m[groupElection],
		Version:  m[groupVersion],
		Tail:     m[groupTail],
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}, nil
}

// StripLegacyMarker removes every LegacyMarker segment from a URL path.
func StripLegacyMarker(path string) string {
	segments := strings.Split(path, "/")
	kept := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != LegacyMarker {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "/")
}

// HasLegacyMarker reports whether the path of raw contains the marker segment.
func HasLegacyMarker(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	for _, s := range strings.Split(u.Path, "/") {
		if s == LegacyMarker {
			return true
		}
	}
	return false
}

func (t Template) root(includeVersion bool) string {
	var b strings.Builder
	b.WriteString(t.BaseURI)
	b.WriteString("/")
	b.WriteString(t.State)
	if t.Name != "" {
		b.WriteString("/")
		b.WriteString(t.Name)
	}
	b.WriteString("/")
	b.WriteString(t.Election)
	if includeVersion && t.Version != "" {
		b.WriteString("/")
		b.WriteString(t.Version)
	}
	return b.String()
}

// Construct rebuilds a URL from the template fields followed by rel.
// The version is left out when includeVersion is false or unknown.
func (t Template) Construct(rel string, includeVersion bool) string {
	root := t.root(includeVersion)
	if rel == "" {
		return root
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return root + rel
}

// String reproduces the URL the template was parsed from, minus any legacy
// marker.
func (t Template) String() string {
	s := t.Construct(t.Tail, true)
	if t.RawQuery != "" {
		s += "?" + t.RawQuery
	}
	if t.Fragment != "" {
		s += "#" + t.Fragment
	}
	return s
}

// Host returns the host part of BaseURI.
func (t Template) Host() string {
	u, err := url.Parse(t.BaseURI)
	if err != nil {
		return ""
	}
	return u.Host
}

// HasVersion reports whether URLs built from t can address versioned
// resources.
func (t Template) HasVersion() bool {
	return t.Version != ""
}

// WithVersion returns a copy of t pinned to version. An empty version
// leaves the copy unversioned.
func (t Template) WithVersion(version string) Template {
	t.Version = version
	return t
}

// WithTail returns a copy of t with the tail replaced and any query or
// fragment dropped.
func (t Template) WithTail(tail string) Template {
	t.Tail = tail
	t.RawQuery = ""
	t.Fragment = ""
	return t
}

// Child derives the template of a sub-jurisdiction of the same state.
func (t Template) Child(name, election, version string) Template {
	return Template{
		BaseURI:  t.BaseURI,
		State:    t.State,
		Name:     name,
		Election: election,
		Version:  version,
	}
}

// StateURL is the root every sub-jurisdiction path of the state hangs off.
func (t Template) StateURL() string {
	return t.BaseURI + "/" + t.State
}
