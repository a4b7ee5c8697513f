package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for the review pipeline.
type Metrics struct {
	// Page fetch metrics
	PagesFetched atomic.Int64
	PagesFailed  atomic.Int64
	PagesRetried atomic.Int64
	PagesSkipped atomic.Int64

	// Review metrics
	ReviewsParsed   atomic.Int64
	ReviewsInWindow atomic.Int64

	// Product metrics
	ProductsAnalyzed atomic.Int64
	ProductsFailed   atomic.Int64
	RowsWritten      atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"rakulens_pages_fetched_total", "Total review pages fetched", m.PagesFetched.Load()},
		{"rakulens_pages_failed_total", "Total review pages that exhausted retries", m.PagesFailed.Load()},
		{"rakulens_pages_retried_total", "Total page fetch retries", m.PagesRetried.Load()},
		{"rakulens_pages_skipped_total", "Total pages skipped after failure", m.PagesSkipped.Load()},
		{"rakulens_reviews_parsed_total", "Total review records parsed", m.ReviewsParsed.Load()},
		{"rakulens_reviews_in_window_total", "Total reviews inside the analysis window", m.ReviewsInWindow.Load()},
		{"rakulens_products_analyzed_total", "Total products analyzed", m.ProductsAnalyzed.Load()},
		{"rakulens_products_failed_total", "Total products ending in a sentinel aggregate", m.ProductsFailed.Load()},
		{"rakulens_rows_written_total", "Total result rows written to the sink", m.RowsWritten.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_fetched":     m.PagesFetched.Load(),
		"pages_failed":      m.PagesFailed.Load(),
		"pages_retried":     m.PagesRetried.Load(),
		"pages_skipped":     m.PagesSkipped.Load(),
		"reviews_parsed":    m.ReviewsParsed.Load(),
		"reviews_in_window": m.ReviewsInWindow.Load(),
		"products_analyzed": m.ProductsAnalyzed.Load(),
		"products_failed":   m.ProductsFailed.Load(),
		"rows_written":      m.RowsWritten.Load(),
	}
}
