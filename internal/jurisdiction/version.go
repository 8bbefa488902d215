package jurisdiction

import (
	"context"
	"log/slog"
	"strings"

	urltemplate "election_spider/internal/url_template"
)

// SentinelFile is published next to every election and holds the number
// of the latest data version.
const SentinelFile = "/current_ver.txt"

// ResolveVersion reads the sentinel of the election t points at. A missing
// sentinel is not an error: the election simply has no published data yet.
func ResolveVersion(ctx context.Context, f Fetcher, t urltemplate.Template) (string, bool) {
	sentinel := t.Construct(SentinelFile, false)

	page, err := f.Get(ctx, sentinel)
	if err != nil {
		slog.DebugContext(ctx, "no current version", "url", sentinel, "err", err)
		return "", false
	}

	version := strings.TrimSpace(string(page.Body))
	if version == "" {
		return "", false
	}
	return version, true
}
