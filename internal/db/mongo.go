package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"election_spider/internal/config"
	"election_spider/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	client        *mongo.Client
	database      *mongo.Database
	jurisdictions *mongo.Collection
	crawlHistory  *mongo.Collection
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	d := &MongoDB{
		client:        client,
		database:      db,
		jurisdictions: db.Collection(cfg.Collections.Jurisdictions),
		crawlHistory:  db.Collection(cfg.Collections.CrawlHistory),
	}

	if err := d.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) error {
	_, err := d.jurisdictions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "normalized_url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "last_crawled", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "election", Value: 1}, {Key: "level", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = d.crawlHistory.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "election", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return err
}

// SaveJurisdiction upserts rec by normalized URL. FirstSeen is only written
// on insert and CrawlCount grows by one per save.
func (d *MongoDB) SaveJurisdiction(ctx context.Context, rec *models.JurisdictionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var fields bson.M
	data, err := bson.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode jurisdiction: %w", err)
	}
	if err := bson.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("encode jurisdiction: %w", err)
	}

	delete(fields, "_id")
	delete(fields, "crawl_count")
	delete(fields, "first_seen")

	firstSeen := rec.FirstSeen
	if firstSeen == 0 {
		firstSeen = rec.LastCrawled
	}

	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"first_seen": firstSeen},
		"$inc":         bson.M{"crawl_count": 1},
	}
	filter := bson.M{"normalized_url": rec.NormalizedURL}

	_, err = d.jurisdictions.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save jurisdiction %s: %w", rec.NormalizedURL, err)
	}
	return nil
}

// GetJurisdiction returns nil without error when nothing is stored under
// normalizedURL.
func (d *MongoDB) GetJurisdiction(ctx context.Context, normalizedURL string) (*models.JurisdictionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec models.JurisdictionRecord
	err := d.jurisdictions.FindOne(ctx, bson.M{"normalized_url": normalizedURL}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get jurisdiction %s: %w", normalizedURL, err)
	}
	return &rec, nil
}

// GetStaleJurisdictions lists the normalized URLs of an election not crawled
// within the last thresholdHours, oldest first.
func (d *MongoDB) GetStaleJurisdictions(ctx context.Context, election string, thresholdHours int, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(thresholdHours) * time.Hour).Unix()

	filter := bson.M{
		"election":     election,
		"last_crawled": bson.M{"$lt": cutoff},
	}

	opts := options.Find().
		SetProjection(bson.M{"normalized_url": 1}).
		SetSort(bson.D{{Key: "last_crawled", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := d.jurisdictions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find stale jurisdictions: %w", err)
	}
	defer cursor.Close(ctx)

	type urlOnly struct {
		NormalizedURL string `bson:"normalized_url"`
	}

	var urls []string
	for cursor.Next(ctx) {
		var res urlOnly
		if err := cursor.Decode(&res); err != nil {
			slog.WarnContext(ctx, "skipping undecodable jurisdiction", "err", err)
			continue
		}
		urls = append(urls, res.NormalizedURL)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (d *MongoDB) SaveCrawlHistory(ctx context.Context, history *models.CrawlHistory) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := d.crawlHistory.InsertOne(ctx, history)
	if err != nil {
		return fmt.Errorf("save crawl history: %w", err)
	}
	return nil
}

// ElectionStats counts the stored jurisdictions of an election per level.
func (d *MongoDB) ElectionStats(ctx context.Context, election string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "election", Value: election}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$level"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := d.jurisdictions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate election stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Level string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	stats := make(map[string]int, len(results))
	for _, r := range results {
		stats[r.Level] = r.Count
	}
	return stats, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
