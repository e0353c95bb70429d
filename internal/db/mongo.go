package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"itdash/internal/config"
	"itdash/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	client  *mongo.Client
	runs    *mongo.Collection
	matches *mongo.Collection
	logger  *slog.Logger
}

// matchDocument is a match as stored, tagged with the run that produced it.
type matchDocument struct {
	RunID  string `bson:"run_id"`
	File   string `bson:"file"`
	Row    int    `bson:"row"`
	Name   string `bson:"name"`
	UII    string `bson:"uii"`
	Stored int64  `bson:"stored"`
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)
	d := &MongoDB{
		client:  client,
		runs:    database.Collection(cfg.Collections.Runs),
		matches: database.Collection(cfg.Collections.Matches),
		logger:  logger,
	}

	d.createIndexes(ctx)
	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) {
	_, err := d.runs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "agency", Value: 1}, {Key: "started", Value: -1}},
	})
	if err != nil {
		d.logger.Warn("failed to create runs index", "error", err)
	}

	_, err = d.matches.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "file", Value: 1}},
	})
	if err != nil {
		d.logger.Warn("failed to create matches index", "error", err)
	}
}

// SaveRun stores run under its ID, replacing an earlier version of it.
func (d *MongoDB) SaveRun(ctx context.Context, run *models.RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc bson.M
	data, err := bson.Marshal(run)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	delete(doc, "_id")

	_, err = d.runs.UpdateOne(ctx,
		bson.M{"_id": run.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func (d *MongoDB) SaveMatches(ctx context.Context, runID string, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().Unix()
	docs := make([]any, len(matches))
	for i, m := range matches {
		docs[i] = matchDocument{
			RunID:  runID,
			File:   m.File,
			Row:    m.Row,
			Name:   m.Record.Name,
			UII:    m.Record.UII,
			Stored: now,
		}
	}

	if _, err := d.matches.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to save matches of run %s: %w", runID, err)
	}
	return nil
}

// GetRun returns nil when no run with that ID was stored.
func (d *MongoDB) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run models.RunRecord
	err := d.runs.FindOne(ctx, bson.M{"_id": runID}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LastRuns returns the most recent runs of agency, newest first.
func (d *MongoDB) LastRuns(ctx context.Context, agency string, limit int64) ([]models.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := d.runs.Find(ctx,
		bson.M{"agency": agency},
		options.Find().SetSort(bson.D{{Key: "started", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []models.RunRecord
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
