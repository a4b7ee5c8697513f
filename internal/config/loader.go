package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("RAKULENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rakulens")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".rakulens"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.relay_urls", cfg.Fetcher.RelayURLs)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.min_body_size", cfg.Fetcher.MinBodySize)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("review.window_months", cfg.Review.WindowMonths)
	v.SetDefault("review.page_budget", cfg.Review.PageBudget)
	v.SetDefault("review.max_attempts", cfg.Review.MaxAttempts)
	v.SetDefault("review.retry_backoff", cfg.Review.RetryBackoff)
	v.SetDefault("review.page_delay", cfg.Review.PageDelay)
	v.SetDefault("review.max_consecutive_failures", cfg.Review.MaxConsecutiveFailures)
	v.SetDefault("review.latest_date_prefix", cfg.Review.LatestDatePrefix)

	v.SetDefault("search.endpoint", cfg.Search.Endpoint)
	v.SetDefault("search.app_id", cfg.Search.AppID)
	v.SetDefault("search.hits", cfg.Search.Hits)
	v.SetDefault("search.min_price", cfg.Search.MinPrice)
	v.SetDefault("search.max_price", cfg.Search.MaxPrice)
	v.SetDefault("search.exclude_keyword", cfg.Search.ExcludeKeyword)

	v.SetDefault("pipeline.max_products", cfg.Pipeline.MaxProducts)
	v.SetDefault("pipeline.product_delay", cfg.Pipeline.ProductDelay)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.row_offset", cfg.Storage.RowOffset)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
