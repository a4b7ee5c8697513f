// Package rakulens provides a public API for embedding the review analyzer
// as a library.
//
// Example usage:
//
//	analyzer, err := rakulens.NewAnalyzer(
//	    rakulens.WithAppID("your-app-id"),
//	    rakulens.WithRelays("https://relay.example.com/api/fetch"),
//	    rakulens.WithWindowMonths(3),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer analyzer.Close()
//
//	rows, err := analyzer.AnalyzeKeyword(ctx, "wireless earbuds")
package rakulens

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/fetcher"
	"github.com/kshimojo/rakulens/internal/pipeline"
	"github.com/kshimojo/rakulens/internal/resolver"
	"github.com/kshimojo/rakulens/internal/review"
	"github.com/kshimojo/rakulens/internal/search"
	"github.com/kshimojo/rakulens/internal/types"
)

// Product is one marketplace listing. Re-exported so library users need not
// import internal packages.
type Product = types.Product

// ResultRow pairs a product with its review aggregate.
type ResultRow = types.ResultRow

// ReviewAggregate is the per-product review summary.
type ReviewAggregate = types.ReviewAggregate

// ProgressFunc receives run progress as a percentage and a message.
type ProgressFunc = types.ProgressFunc

// Option configures an Analyzer.
type Option func(*config.Config)

// WithAppID sets the marketplace API application id used by keyword search.
func WithAppID(id string) Option {
	return func(c *config.Config) { c.Search.AppID = id }
}

// WithRelays sets the fetch-relay endpoints, tried in order.
func WithRelays(urls ...string) Option {
	return func(c *config.Config) { c.Fetcher.RelayURLs = urls }
}

// WithWindowMonths sets the trailing review window in calendar months.
func WithWindowMonths(months int) Option {
	return func(c *config.Config) { c.Review.WindowMonths = months }
}

// WithPageBudget caps how many review pages are fetched per product.
func WithPageBudget(pages int) Option {
	return func(c *config.Config) { c.Review.PageBudget = pages }
}

// WithMaxProducts caps how many products one run analyzes.
func WithMaxProducts(n int) Option {
	return func(c *config.Config) { c.Pipeline.MaxProducts = n }
}

// WithHits sets how many products a keyword search returns.
func WithHits(n int) Option {
	return func(c *config.Config) { c.Search.Hits = n }
}

// WithPriceRange bounds keyword search results; 0 means unbounded.
func WithPriceRange(min, max int) Option {
	return func(c *config.Config) {
		c.Search.MinPrice = min
		c.Search.MaxPrice = max
	}
}

// WithDelays sets the pause between review pages and between products.
func WithDelays(pageDelay, productDelay time.Duration) Option {
	return func(c *config.Config) {
		c.Review.PageDelay = pageDelay
		c.Pipeline.ProductDelay = productDelay
	}
}

// WithUserAgent sets a single custom User-Agent instead of the rotation.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) { c.Fetcher.UserAgents = []string{ua} }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// Analyzer is the high-level entry point for review analysis.
type Analyzer struct {
	cfg      *config.Config
	fetcher  *fetcher.HTTPFetcher
	search   *search.Client
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer with the given options applied over the
// defaults.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	relays := fetcher.NewRelayManager(cfg.Fetcher.RelayURLs, logger)
	httpFetcher := fetcher.NewHTTPFetcher(&cfg.Fetcher, relays, logger)

	res := resolver.New(httpFetcher, &cfg.Review, logger)
	col := review.NewCollector(httpFetcher, review.NewParser(logger), &cfg.Review, nil, logger)
	agg := review.NewAggregator(&cfg.Review, logger)

	return &Analyzer{
		cfg:      cfg,
		fetcher:  httpFetcher,
		search:   search.NewClient(httpFetcher, &cfg.Search, logger),
		pipeline: pipeline.New(res, col, agg, cfg, nil, logger),
		logger:   logger,
	}, nil
}

// Search returns products matching the keyword without analyzing them.
func (a *Analyzer) Search(ctx context.Context, keyword string) ([]Product, error) {
	return a.search.Search(ctx, keyword)
}

// AnalyzeKeyword searches for the keyword and enriches every hit with review
// statistics. One row is returned per analyzed product, failures included as
// sentinel aggregates.
func (a *Analyzer) AnalyzeKeyword(ctx context.Context, keyword string) ([]*ResultRow, error) {
	return a.AnalyzeKeywordProgress(ctx, keyword, nil)
}

// AnalyzeKeywordProgress is AnalyzeKeyword with a progress callback.
func (a *Analyzer) AnalyzeKeywordProgress(ctx context.Context, keyword string, onProgress ProgressFunc) ([]*ResultRow, error) {
	products, err := a.search.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	return a.pipeline.Run(ctx, products, onProgress), nil
}

// AnalyzeProducts enriches an already-materialized product list.
func (a *Analyzer) AnalyzeProducts(ctx context.Context, products []Product, onProgress ProgressFunc) []*ResultRow {
	return a.pipeline.Run(ctx, products, onProgress)
}

// Close releases the analyzer's network resources.
func (a *Analyzer) Close() error {
	return a.fetcher.Close()
}
