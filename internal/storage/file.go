package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/kshimojo/rakulens/internal/types"
)

// --- CSV Sink ---

// CSVSink writes result rows to a CSV file in the fixed column order.
type CSVSink struct {
	path      string
	rowOffset int
	rows      []*types.ResultRow
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewCSVSink creates a CSV file sink.
func NewCSVSink(outputPath string, rowOffset int, logger *slog.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVSink{
		path:      outputPath,
		rowOffset: rowOffset,
		logger:    logger.With("component", "csv_sink"),
	}, nil
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(rows []*types.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	s.logger.Debug("rows buffered", "count", len(rows), "total", len(s.rows))
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.SinkError{Backend: "csv", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return &types.SinkError{Backend: "csv", Err: err}
	}
	for i, row := range s.rows {
		record := []string{
			strconv.Itoa(s.rowOffset + i),
			row.Product.Name,
			row.Product.Code,
			row.Product.URL,
			strconv.Itoa(row.Product.Price),
			row.Aggregate.LatestReviewDate,
			strconv.Itoa(row.Aggregate.CountInWindow),
			strconv.FormatFloat(row.Aggregate.AverageRating, 'f', -1, 64),
			row.Aggregate.HighRatingText,
			row.Aggregate.MidRatingText,
			row.Aggregate.LowRatingText,
		}
		if err := w.Write(record); err != nil {
			return &types.SinkError{Backend: "csv", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.SinkError{Backend: "csv", Err: err}
	}

	s.logger.Info("CSV written", "path", s.path, "rows", len(s.rows))
	return nil
}

// --- JSON Sink ---

// JSONSink writes result rows as an indented JSON array.
type JSONSink struct {
	path      string
	rowOffset int
	rows      []*types.ResultRow
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewJSONSink creates a JSON file sink.
func NewJSONSink(outputPath string, rowOffset int, logger *slog.Logger) (*JSONSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JSONSink{
		path:      outputPath,
		rowOffset: rowOffset,
		logger:    logger.With("component", "json_sink"),
	}, nil
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Write(rows []*types.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.SinkError{Backend: "json", Err: err}
	}
	defer f.Close()

	output := make([]map[string]any, len(s.rows))
	for i, row := range s.rows {
		output[i] = rowDocument(row, s.rowOffset+i)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return &types.SinkError{Backend: "json", Err: err}
	}

	s.logger.Info("JSON written", "path", s.path, "rows", len(s.rows))
	return nil
}

// rowDocument flattens a result row into the fixed column set.
func rowDocument(row *types.ResultRow, offset int) map[string]any {
	return map[string]any{
		"row":                    offset,
		"item_name":              row.Product.Name,
		"item_code":              row.Product.Code,
		"item_url":               row.Product.URL,
		"item_price":             row.Product.Price,
		"latest_review_date":     row.Aggregate.LatestReviewDate,
		"review_count_3months":   row.Aggregate.CountInWindow,
		"average_rating_3months": row.Aggregate.AverageRating,
		"high_rating_reviews":    row.Aggregate.HighRatingText,
		"mid_rating_reviews":     row.Aggregate.MidRatingText,
		"low_rating_reviews":     row.Aggregate.LowRatingText,
		"analyzed_at":            row.AnalyzedAt,
	}
}
