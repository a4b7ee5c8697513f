package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for rakulens.
type Config struct {
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Review   ReviewConfig   `mapstructure:"review"   yaml:"review"`
	Search   SearchConfig   `mapstructure:"search"   yaml:"search"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// FetcherConfig controls how pages are fetched through the relay.
type FetcherConfig struct {
	// Type selects the fetcher implementation: "http" or "browser".
	Type string `mapstructure:"type" yaml:"type"`

	// RelayURLs are the fetch-relay endpoints tried in order. A failing
	// endpoint is marked unhealthy and the next one is used. Empty means
	// fetch upstream URLs directly.
	RelayURLs []string `mapstructure:"relay_urls" yaml:"relay_urls"`

	// RequestTimeout caps a single fetch attempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// MaxBodySize limits how many response bytes are read.
	MaxBodySize int64 `mapstructure:"max_body_size" yaml:"max_body_size"`

	// MinBodySize is the short-body threshold below which a response is
	// treated as an error page.
	MinBodySize int `mapstructure:"min_body_size" yaml:"min_body_size"`

	// UserAgents are rotated across requests.
	UserAgents []string `mapstructure:"user_agents" yaml:"user_agents"`
}

// ReviewConfig controls the review collection loop.
type ReviewConfig struct {
	// WindowMonths is the trailing calendar-month window that bounds both
	// pagination and aggregation.
	WindowMonths int `mapstructure:"window_months" yaml:"window_months"`

	// PageBudget is the hard cap on review pages fetched per product.
	PageBudget int `mapstructure:"page_budget" yaml:"page_budget"`

	// MaxAttempts is the total tries per page (initial try plus retries).
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`

	// RetryBackoff is the linear backoff unit: attempt n waits n * RetryBackoff.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`

	// PageDelay is the pause between successfully processed pages.
	PageDelay time.Duration `mapstructure:"page_delay" yaml:"page_delay"`

	// MaxConsecutiveFailures aborts a product's feed after this many
	// whole-page failures in a row while no reviews have been collected.
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`

	// LatestDatePrefix is how many newest-first records are inspected for
	// the latest review date.
	LatestDatePrefix int `mapstructure:"latest_date_prefix" yaml:"latest_date_prefix"`
}

// SearchConfig controls the product search stage.
type SearchConfig struct {
	// Endpoint is the marketplace item-search API base URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// AppID is the marketplace API application id.
	AppID string `mapstructure:"app_id" yaml:"app_id"`

	// Hits is how many products one search returns.
	Hits int `mapstructure:"hits" yaml:"hits"`

	// MinPrice and MaxPrice bound the search; 0 means unbounded.
	MinPrice int `mapstructure:"min_price" yaml:"min_price"`
	MaxPrice int `mapstructure:"max_price" yaml:"max_price"`

	// ExcludeKeyword filters listings out of the search result.
	ExcludeKeyword string `mapstructure:"exclude_keyword" yaml:"exclude_keyword"`
}

// PipelineConfig controls the per-product orchestration loop.
type PipelineConfig struct {
	// MaxProducts caps how many products are analyzed per run.
	MaxProducts int `mapstructure:"max_products" yaml:"max_products"`

	// ProductDelay is the pause between products.
	ProductDelay time.Duration `mapstructure:"product_delay" yaml:"product_delay"`
}

// StorageConfig controls the result sink.
type StorageConfig struct {
	// Type selects the sink backend: csv, json, or mongodb.
	Type string `mapstructure:"type" yaml:"type"`

	// OutputPath is the file path for csv/json sinks.
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`

	// RowOffset is the 1-based row at which the first product is written,
	// matching the spreadsheet layout the results feed into.
	RowOffset int `mapstructure:"row_offset" yaml:"row_offset"`

	// MongoURI, MongoDatabase and MongoCollection configure the mongodb sink.
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults. The review loop
// defaults mirror the upstream feed's informal limits: a 3-month window,
// 50-page budget, 3 attempts per page and rate-limit friendly delays.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			Type:           "http",
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 << 20,
			MinBodySize:    100,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			},
		},
		Review: ReviewConfig{
			WindowMonths:           3,
			PageBudget:             50,
			MaxAttempts:            3,
			RetryBackoff:           time.Second,
			PageDelay:              500 * time.Millisecond,
			MaxConsecutiveFailures: 3,
			LatestDatePrefix:       10,
		},
		Search: SearchConfig{
			Endpoint: "https://app.rakuten.co.jp/services/api/IchibaItem/Search/20220601",
			Hits:     30,
		},
		Pipeline: PipelineConfig{
			MaxProducts:  30,
			ProductDelay: time.Second,
		},
		Storage: StorageConfig{
			Type:       "csv",
			OutputPath: "./output/reviews.csv",
			RowOffset:  2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9190,
			Path:    "/metrics",
		},
	}
}
