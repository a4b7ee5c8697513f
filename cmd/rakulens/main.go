package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/fetcher"
	"github.com/kshimojo/rakulens/internal/observability"
	"github.com/kshimojo/rakulens/internal/pipeline"
	"github.com/kshimojo/rakulens/internal/resolver"
	"github.com/kshimojo/rakulens/internal/review"
	"github.com/kshimojo/rakulens/internal/search"
	"github.com/kshimojo/rakulens/internal/storage"
	"github.com/kshimojo/rakulens/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	outputPath  string
	outputType  string
	appID       string
	relayURL    string
	maxProducts int
	hits        int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rakulens",
		Short: "rakulens - marketplace review research tool",
		Long: `rakulens searches a marketplace for products matching a keyword,
enriches each listing with review statistics scraped from its review feed
(latest review date, review count and average over the trailing three
months, review texts bucketed by rating tier), and writes the combined
dataset to CSV, JSON, or MongoDB for analysis.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// analyzeCmd creates the "analyze" subcommand.
func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [keyword]",
		Short: "Search products and enrich them with review statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: csv, json, mongodb")
	cmd.Flags().StringVar(&appID, "app-id", "", "marketplace API application id")
	cmd.Flags().StringVar(&relayURL, "relay", "", "fetch relay endpoint URL")
	cmd.Flags().IntVarP(&maxProducts, "max-products", "m", 0, "cap on products analyzed (0 = config default)")
	cmd.Flags().IntVar(&hits, "hits", 0, "search result size (0 = config default)")

	return cmd
}

// runAnalyze executes the analyze command.
func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	keyword := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	relays := fetcher.NewRelayManager(cfg.Fetcher.RelayURLs, logger)
	httpFetcher := fetcher.NewHTTPFetcher(&cfg.Fetcher, relays, logger)
	defer httpFetcher.Close()

	// The resolver can ride a headless browser when product pages only
	// embed their state after client-side rendering.
	var resolverFetcher fetcher.Fetcher = httpFetcher
	if cfg.Fetcher.Type == "browser" {
		browserFetcher, err := fetcher.NewBrowserFetcher(&cfg.Fetcher, true, logger)
		if err != nil {
			return fmt.Errorf("create browser fetcher: %w", err)
		}
		defer browserFetcher.Close()
		resolverFetcher = browserFetcher
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	sink, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}

	res := resolver.New(resolverFetcher, &cfg.Review, logger)
	parser := review.NewParser(logger)
	collector := review.NewCollector(httpFetcher, parser, &cfg.Review, metrics, logger)
	aggregator := review.NewAggregator(&cfg.Review, logger)
	pipe := pipeline.New(res, collector, aggregator, cfg, metrics, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	searchClient := search.NewClient(httpFetcher, &cfg.Search, logger)
	logger.Info("searching products", "keyword", keyword, "hits", cfg.Search.Hits)
	products, err := searchClient.Search(ctx, keyword)
	if err != nil {
		return fmt.Errorf("product search: %w", err)
	}
	if len(products) == 0 {
		return fmt.Errorf("no products found for keyword %q", keyword)
	}

	start := time.Now()
	rows := pipe.Run(ctx, products, func(percent int, message string) {
		fmt.Printf("\r\033[K[%3d%%] %s", percent, message)
	})
	fmt.Println()

	if err := sink.Write(rows); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if metrics != nil {
		metrics.RowsWritten.Add(int64(len(rows)))
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("close sink: %w", err)
	}

	elapsed := time.Since(start)
	analyzed := 0
	for _, row := range rows {
		if row.Aggregate.CountInWindow > 0 {
			analyzed++
		}
	}

	fmt.Printf("\nAnalysis complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Products:  %d analyzed, %d with reviews in window\n", len(rows), analyzed)
	fmt.Printf("   Output:    %s (%s)\n", cfg.Storage.OutputPath, sink.Name())
	return nil
}

// resolveCmd creates the "resolve" subcommand, a debugging aid that resolves
// a single item identifier without touching the review feed.
func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [url-or-code]",
		Short: "Resolve the canonical item identifier for a product URL or item code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyCLIOverrides(cfg)

			relays := fetcher.NewRelayManager(cfg.Fetcher.RelayURLs, logger)
			httpFetcher := fetcher.NewHTTPFetcher(&cfg.Fetcher, relays, logger)
			defer httpFetcher.Close()

			res := resolver.New(httpFetcher, &cfg.Review, logger)

			ref := referenceFromArg(args[0])
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			id, err := res.Resolve(ctx, ref)
			if err != nil {
				return fmt.Errorf("resolve: %w", err)
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().StringVar(&relayURL, "relay", "", "fetch relay endpoint URL")
	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rakulens %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  Type:             %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Relays:           %d configured\n", len(cfg.Fetcher.RelayURLs))
			fmt.Printf("  Request Timeout:  %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Min Body Size:    %d bytes\n", cfg.Fetcher.MinBodySize)
			fmt.Printf("\nReview:\n")
			fmt.Printf("  Window:           %d months\n", cfg.Review.WindowMonths)
			fmt.Printf("  Page Budget:      %d\n", cfg.Review.PageBudget)
			fmt.Printf("  Max Attempts:     %d\n", cfg.Review.MaxAttempts)
			fmt.Printf("  Page Delay:       %s\n", cfg.Review.PageDelay)
			fmt.Printf("\nPipeline:\n")
			fmt.Printf("  Max Products:     %d\n", cfg.Pipeline.MaxProducts)
			fmt.Printf("  Product Delay:    %s\n", cfg.Pipeline.ProductDelay)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:             %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:      %s\n", cfg.Storage.OutputPath)
			fmt.Printf("  Row Offset:       %d\n", cfg.Storage.RowOffset)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:          %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:             %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if appID != "" {
		cfg.Search.AppID = appID
	}
	if relayURL != "" {
		cfg.Fetcher.RelayURLs = []string{relayURL}
	}
	if maxProducts > 0 {
		cfg.Pipeline.MaxProducts = maxProducts
	}
	if hits > 0 {
		cfg.Search.Hits = hits
	}
}

// referenceFromArg decides whether a CLI argument is a product URL or a raw
// item code.
func referenceFromArg(arg string) *types.Product {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return &types.Product{URL: arg}
	}
	return &types.Product{Code: arg}
}
