// Package storage persists per-product result rows. Rows are addressed by a
// 1-based row offset mirroring the spreadsheet layout the results feed into:
// the first product lands at the configured base offset, the next one row
// below, and so on. A single sequential writer is assumed.
package storage

import (
	"fmt"
	"log/slog"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/types"
)

// Columns is the fixed result column order. The six aggregate columns
// follow the product columns: latest date, windowed count, windowed
// average, then the high/mid/low joined texts.
var Columns = []string{
	"row",
	"item_name",
	"item_code",
	"item_url",
	"item_price",
	"latest_review_date",
	"review_count_3months",
	"average_rating_3months",
	"high_rating_reviews",
	"mid_rating_reviews",
	"low_rating_reviews",
}

// Sink is a result row destination.
type Sink interface {
	// Write persists rows; row i is addressed at base offset + i.
	Write(rows []*types.ResultRow) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the sink backend identifier.
	Name() string
}

// New creates the sink selected by the configuration.
func New(cfg *config.StorageConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case "csv":
		return NewCSVSink(cfg.OutputPath, cfg.RowOffset, logger)
	case "json":
		return NewJSONSink(cfg.OutputPath, cfg.RowOffset, logger)
	case "mongodb":
		return NewMongoSink(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.RowOffset, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
