package report

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"election_spider/internal/fetch"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func buildArchive(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractPrefersXML(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"readme.txt": "ignore me",
		"detail.xml": "<ElectionResult/>",
	}, "readme.txt", "detail.xml")

	m, err := Extract(archive)
	require.NoError(t, err)
	require.Equal(t, "detail.xml", m.Name)
	require.Equal(t, "xml", m.Ext())
	require.Equal(t, "<ElectionResult/>", string(m.Data))
}

func TestExtractSingleMember(t *testing.T) {
	archive := buildArchive(t, map[string]string{"detail.xls": "cells"}, "detail.xls")

	m, err := Extract(archive)
	require.NoError(t, err)
	require.Equal(t, "detail.xls", m.Name)
	require.Equal(t, "cells", string(m.Data))
}

func TestExtractEmpty(t *testing.T) {
	_, err := Extract(buildArchive(t, nil))
	require.ErrorIs(t, err, ErrEmptyArchive)

	_, err = Extract([]byte("not a zip"))
	require.Error(t, err)
}

func TestFetch(t *testing.T) {
	archive := buildArchive(t, map[string]string{"detail.xml": "<ElectionResult/>"}, "detail.xml")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/detailxml.zip" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	}))
	defer server.Close()

	client := fetch.New()
	ctx := context.Background()

	m, err := Fetch(ctx, client, server.URL+"/reports/detailxml.zip")
	require.NoError(t, err)
	require.Equal(t, "detail.xml", m.Name)

	_, err = Fetch(ctx, client, server.URL+"/reports/detailcsv.zip")
	var statusErr *fetch.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
}
