package redirect

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is the markup a redirect page uses to carry its destination.
type Strategy int

const (
	StrategyUnknown Strategy = iota
	MetaRefresh
	ScriptRedirect
)

func (s Strategy) String() string {
	switch s {
	case MetaRefresh:
		return "meta-refresh"
	case ScriptRedirect:
		return "script"
	default:
		return "unknown"
	}
}

var ErrUnrecognized = errors.New("redirect page matches no known encoding")

// SummaryTail follows the version segment in every summary page path.
const SummaryTail = "/en/summary.html"

var (
	reSegment = regexp.MustCompile(`^[0-9]+$`)
	reURLKey  = regexp.MustCompile(`(?i)url\s*=`)
)

// ExtractTarget returns the summary path a redirect page points at, for
// example "/27401/en/summary.html".
func ExtractTarget(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse redirect page: %w", err)
	}
	target, _, err := ExtractFromDocument(doc)
	return target, err
}

// ExtractFromDocument tries the meta refresh encoding first and falls back
// to the script encoding.
func ExtractFromDocument(doc *goquery.Document) (string, Strategy, error) {
	if segment, ok := metaSegment(doc); ok {
		return "/" + segment + SummaryTail, MetaRefresh, nil
	}
	if segment, ok := scriptSegment(doc); ok {
		return "/" + segment + SummaryTail, ScriptRedirect, nil
	}
	return "", StrategyUnknown, ErrUnrecognized
}

// <meta http-equiv="refresh" content="0; URL=./27401/en/summary.html">
func metaSegment(doc *goquery.Document) (string, bool) {
	var segment string
	found := false
	doc.Find("meta[content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content := s.AttrOr("content", "")
		loc := reURLKey.FindStringIndex(content)
		if loc == nil {
			return true
		}
		target := strings.Trim(strings.TrimSpace(content[loc[1]:]), `'"`)
		segment, found = secondSegment(target)
		return false
	})
	return segment, found
}

// <script src="./129035/js/version.js"></script>
func scriptSegment(doc *goquery.Document) (string, bool) {
	scripts := doc.Find("script")
	if scripts.Length() == 0 {
		return "", false
	}
	node := scripts.Nodes[0]
	if len(node.Attr) == 0 {
		return "", false
	}
	return secondSegment(node.Attr[0].Val)
}

func secondSegment(path string) (string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || !reSegment.MatchString(parts[1]) {
		return "", false
	}
	return parts[1], true
}
