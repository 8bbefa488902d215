package db

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"election_spider/internal/config"
	"election_spider/internal/models"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMongo(t *testing.T) *MongoDB {
	if testing.Short() {
		t.Skip("needs a container runtime")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	var cfg config.DBConfig
	cfg.Connection = fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	cfg.Database = "election_spider_test"
	cfg.Collections.Jurisdictions = "jurisdictions"
	cfg.Collections.CrawlHistory = "crawl_history"

	store, err := NewMongoDB(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveJurisdictionUpserts(t *testing.T) {
	store := setupMongo(t)
	ctx := context.Background()

	const normalized = "https://results.enr.clarityelections.com/KY/50972/131636/en/summary.html"
	old := time.Now().Add(-48 * time.Hour).Unix()

	rec := &models.JurisdictionRecord{
		URL:           normalized,
		NormalizedURL: normalized,
		Election:      "ky-2014",
		Level:         "state",
		Version:       "131636",
		FirstSeen:     old,
		LastCrawled:   old,
	}
	require.NoError(t, store.SaveJurisdiction(ctx, rec))

	stale, err := store.GetStaleJurisdictions(ctx, "ky-2014", 6, 10)
	require.NoError(t, err)
	require.Equal(t, []string{normalized}, stale)

	now := time.Now().Unix()
	rec.Version = "131700"
	rec.FirstSeen = now
	rec.LastCrawled = now
	require.NoError(t, store.SaveJurisdiction(ctx, rec))

	got, err := store.GetJurisdiction(ctx, normalized)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "131700", got.Version)
	require.Equal(t, old, got.FirstSeen)
	require.Equal(t, now, got.LastCrawled)
	require.Equal(t, 2, got.CrawlCount)

	stale, err = store.GetStaleJurisdictions(ctx, "ky-2014", 6, 10)
	require.NoError(t, err)
	require.Empty(t, stale)

	stats, err := store.ElectionStats(ctx, "ky-2014")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"state": 1}, stats)
}

func TestGetJurisdictionMissing(t *testing.T) {
	store := setupMongo(t)

	got, err := store.GetJurisdiction(context.Background(), "https://results.enr.clarityelections.com/XX/1/en/summary.html")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSaveCrawlHistory(t *testing.T) {
	store := setupMongo(t)

	err := store.SaveCrawlHistory(context.Background(), &models.CrawlHistory{
		Election:  "ky-2014",
		URL:       "https://results.enr.clarityelections.com/KY/50972/131636/en/summary.html",
		Level:     "state",
		Status:    models.StatusSuccess,
		Strategy:  "html-listing",
		Children:  120,
		Timestamp: time.Now().Unix(),
	})
	require.NoError(t, err)
}
