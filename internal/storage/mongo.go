package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kshimojo/rakulens/internal/types"
)

// MongoSink writes result rows to a MongoDB collection, one document per
// product with the row offset stored alongside.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	rowOffset  int
	written    int
	mu         sync.Mutex
	logger     *slog.Logger
}

// NewMongoSink connects to MongoDB and creates the sink.
func NewMongoSink(uri, database, collection string, rowOffset int, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	if database == "" {
		database = "rakulens"
	}
	if collection == "" {
		collection = "results"
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		rowOffset:  rowOffset,
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Write(rows []*types.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	docs := make([]any, len(rows))
	for i, row := range rows {
		docs[i] = rowDocument(row, s.rowOffset+s.written+i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return &types.SinkError{Backend: "mongodb", Err: err}
	}
	s.written += len(rows)
	s.logger.Debug("rows inserted", "count", len(rows), "total", s.written)
	return nil
}

func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("mongodb sink closing", "rows_written", s.written)
	if err := s.client.Disconnect(ctx); err != nil {
		return &types.SinkError{Backend: "mongodb", Err: err}
	}
	return nil
}
