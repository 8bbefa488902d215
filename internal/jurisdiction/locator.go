package jurisdiction

import (
	"context"
	"log/slog"

	urltemplate "election_spider/internal/url_template"
)

// SummaryCandidates lists where the summary resource has lived across
// system revisions, newest first. The order is significant.
var SummaryCandidates = []string{
	"/json/en/summary.json",
	"/" + urltemplate.LegacyMarker + "/en/summary.html",
	"/en/summary.html",
}

// Locate fetches each candidate path under the versioned template, in order,
// and returns the first one that answers with a 2xx status.
func Locate(ctx context.Context, f Fetcher, t urltemplate.Template, candidates []string) (string, bool) {
	if !t.HasVersion() {
		return "", false
	}

	for _, candidate := range candidates {
		u := t.Construct(candidate, true)
		if _, err := f.Get(ctx, u); err == nil {
			return u, true
		}
	}

	slog.DebugContext(ctx, "no candidate resource found", "base", t.Construct("", true))
	return "", false
}
