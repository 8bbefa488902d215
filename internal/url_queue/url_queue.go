package urlqueue

import (
	"net/url"
	"strings"
	"sync"
)

// Item is a jurisdiction waiting to be resolved.
type Item struct {
	URL    string
	Level  string
	Name   string
	Parent string
	Depth  int
}

// URLQueue is the crawl frontier of one election: FIFO, and every
// normalized URL is accepted at most once.
type URLQueue struct {
	Election string
	MaxDepth int

	mu    sync.Mutex
	seen  map[string]bool
	queue []Item
}

func NewURLQueue(election string, maxDepth int) *URLQueue {
	return &URLQueue{
		Election: election,
		MaxDepth: maxDepth,
		seen:     make(map[string]bool),
	}
}

// Add enqueues item unless its URL was already seen or it lies deeper than
// MaxDepth.
func (q *URLQueue) Add(item Item) bool {
	if item.Depth > q.MaxDepth {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	normalized := NormalizeURL(item.URL)
	if q.seen[normalized] {
		return false
	}
	q.seen[normalized] = true
	q.queue = append(q.queue, item)
	return true
}

func (q *URLQueue) Get() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.queue) == 0 {
		return Item{}, false
	}
	item := q.queue[0]
	q.queue = q.queue[1:]
	return item, true
}

func (q *URLQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Seen returns the number of distinct URLs accepted so far.
func (q *URLQueue) Seen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.seen)
}

// NormalizeURL drops the fragment and the legacy rendering segment, lowers
// the host and forces https, so that aliases of one page compare equal.
func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Host = strings.ToLower(strings.TrimPrefix(parsed.Host, "www."))
	parsed.Path = strings.Replace(parsed.Path, "/Web01/", "/", 1)
	parsed.RawPath = ""

	if parsed.Scheme == "" || parsed.Scheme == "http" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}
