package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MinBodySize < 0 {
		return fmt.Errorf("fetcher.min_body_size must be >= 0")
	}
	for _, relayURL := range cfg.Fetcher.RelayURLs {
		u, err := url.Parse(relayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid relay URL %q", relayURL)
		}
	}

	if cfg.Review.WindowMonths < 1 {
		return fmt.Errorf("review.window_months must be >= 1, got %d", cfg.Review.WindowMonths)
	}
	if cfg.Review.PageBudget < 1 {
		return fmt.Errorf("review.page_budget must be >= 1, got %d", cfg.Review.PageBudget)
	}
	if cfg.Review.MaxAttempts < 1 {
		return fmt.Errorf("review.max_attempts must be >= 1, got %d", cfg.Review.MaxAttempts)
	}
	if cfg.Review.RetryBackoff < 0 {
		return fmt.Errorf("review.retry_backoff must be >= 0")
	}
	if cfg.Review.PageDelay < 0 {
		return fmt.Errorf("review.page_delay must be >= 0")
	}
	if cfg.Review.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("review.max_consecutive_failures must be >= 1, got %d", cfg.Review.MaxConsecutiveFailures)
	}
	if cfg.Review.LatestDatePrefix < 1 {
		return fmt.Errorf("review.latest_date_prefix must be >= 1, got %d", cfg.Review.LatestDatePrefix)
	}

	if cfg.Pipeline.MaxProducts < 1 {
		return fmt.Errorf("pipeline.max_products must be >= 1, got %d", cfg.Pipeline.MaxProducts)
	}
	if cfg.Pipeline.ProductDelay < 0 {
		return fmt.Errorf("pipeline.product_delay must be >= 0")
	}

	if cfg.Search.Hits < 1 {
		return fmt.Errorf("search.hits must be >= 1, got %d", cfg.Search.Hits)
	}
	if cfg.Search.MaxPrice > 0 && cfg.Search.MinPrice > cfg.Search.MaxPrice {
		return fmt.Errorf("search.min_price %d exceeds search.max_price %d", cfg.Search.MinPrice, cfg.Search.MaxPrice)
	}

	validStorageTypes := map[string]bool{
		"csv": true, "json": true, "mongodb": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, json, mongodb)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "mongodb" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required for the mongodb sink")
	}
	if cfg.Storage.RowOffset < 1 {
		return fmt.Errorf("storage.row_offset must be >= 1, got %d", cfg.Storage.RowOffset)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level %q is not valid (valid: debug, info, warn, error)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be in [1, 65535], got %d", cfg.Metrics.Port)
		}
	}

	return nil
}
