package models

// JurisdictionRecord is the stored form of a resolved jurisdiction, one per
// normalized URL.
type JurisdictionRecord struct {
	ID            string            `bson:"_id,omitempty"`
	URL           string            `bson:"url"`
	NormalizedURL string            `bson:"normalized_url"`
	Election      string            `bson:"election"`
	Level         string            `bson:"level"`
	Name          string            `bson:"name"`
	State         string            `bson:"state"`
	ElectionID    string            `bson:"election_id"`
	Version       string            `bson:"version"`
	SummaryURL    string            `bson:"summary_url"`
	ReportURLs    map[string]string `bson:"report_urls,omitempty"`
	ParentURL     string            `bson:"parent_url,omitempty"`
	Depth         int               `bson:"depth"`
	FirstSeen     int64             `bson:"first_seen"`
	LastCrawled   int64             `bson:"last_crawled"`
	CrawlCount    int               `bson:"crawl_count"`
}

// CrawlHistory records one discovery attempt.
type CrawlHistory struct {
	ID        string `bson:"_id,omitempty"`
	Election  string `bson:"election"`
	URL       string `bson:"url"`
	Level     string `bson:"level"`
	Status    string `bson:"status"` // success, partial, error, unchanged
	Strategy  string `bson:"strategy"`
	Version   string `bson:"version"`
	Children  int    `bson:"children"`
	Failures  int    `bson:"failures"`
	Timestamp int64  `bson:"timestamp"`
	Duration  int    `bson:"duration_ms"`
	Error     string `bson:"error_message,omitempty"`
}

const (
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusError     = "error"
	StatusUnchanged = "unchanged"
)
