package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"election_spider/internal/fetch"

	"github.com/klauspost/compress/zip"
)

var ErrEmptyArchive = errors.New("report archive has no members")

// Getter downloads a resource. *fetch.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Member is a file extracted from a report archive.
type Member struct {
	Name string
	Data []byte
}

// Ext returns the lower-cased extension of the member name, without the dot.
func (m *Member) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(m.Name)), ".")
}

// Download fetches the archive at rawURL and returns its raw bytes.
func Download(ctx context.Context, g Getter, rawURL string) ([]byte, error) {
	page, err := g.Get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("download report: %w", err)
	}
	slog.DebugContext(ctx, "report downloaded", "url", rawURL, "bytes", len(page.Body))
	return page.Body, nil
}

// Extract returns the report inside archive. Report archives carry a single
// data file; when there are several, the first XML member wins, otherwise
// the first regular file.
func Extract(archive []byte) (*Member, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open report archive: %w", err)
	}

	var chosen *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".xml") {
			chosen = f
			break
		}
		if chosen == nil {
			chosen = f
		}
	}
	if chosen == nil {
		return nil, ErrEmptyArchive
	}

	rc, err := chosen.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", chosen.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", chosen.Name, err)
	}
	return &Member{Name: chosen.Name, Data: data}, nil
}

// Fetch downloads the archive at rawURL and extracts its report.
func Fetch(ctx context.Context, g Getter, rawURL string) (*Member, error) {
	archive, err := Download(ctx, g, rawURL)
	if err != nil {
		return nil, err
	}
	return Extract(archive)
}
