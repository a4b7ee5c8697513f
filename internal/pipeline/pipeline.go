// Package pipeline sequences identifier resolution, review collection and
// aggregation per product, converting every failure into a well-formed
// sentinel aggregate. Callers always receive one aggregate per product;
// nothing in here raises past the product boundary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/fetcher"
	"github.com/kshimojo/rakulens/internal/observability"
	"github.com/kshimojo/rakulens/internal/resolver"
	"github.com/kshimojo/rakulens/internal/review"
	"github.com/kshimojo/rakulens/internal/types"
)

// Pipeline orchestrates the per-product review analysis.
type Pipeline struct {
	resolver   *resolver.Resolver
	collector  *review.Collector
	aggregator *review.Aggregator
	cfg        *config.Config
	metrics    *observability.Metrics
	logger     *slog.Logger

	// now is the clock used to freeze the window cutoff at run start;
	// injectable for tests.
	now func() time.Time
}

// New creates a Pipeline from its collaborators. metrics may be nil.
func New(res *resolver.Resolver, col *review.Collector, agg *review.Aggregator, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		resolver:   res,
		collector:  col,
		aggregator: agg,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With("component", "pipeline"),
		now:        time.Now,
	}
}

// Run analyzes up to MaxProducts products sequentially, one result row per
// product. A single window cutoff is frozen here and threaded through both
// the collector and the aggregator so no record can straddle the boundary
// during a long run. Products are spaced by ProductDelay to respect the
// upstream's informal rate limits.
func (p *Pipeline) Run(ctx context.Context, products []types.Product, onProgress types.ProgressFunc) []*types.ResultRow {
	cutoff := review.WindowCutoff(p.now(), p.cfg.Review.WindowMonths)

	total := len(products)
	if total > p.cfg.Pipeline.MaxProducts {
		total = p.cfg.Pipeline.MaxProducts
		p.logger.Info("product list capped", "listed", len(products), "analyzing", total)
	}

	rows := make([]*types.ResultRow, 0, total)
	for i := 0; i < total; i++ {
		product := products[i]
		label := fmt.Sprintf("[%d/%d] %s", i+1, total, truncateName(product.Name))

		sub := scopedProgress(onProgress, i, total, label)
		agg := p.AnalyzeProduct(ctx, &product, cutoff, sub)

		rows = append(rows, &types.ResultRow{
			Product:    product,
			Aggregate:  agg,
			AnalyzedAt: p.now(),
		})

		if ctx.Err() != nil {
			p.logger.Warn("run canceled", "analyzed", len(rows), "of", total)
			break
		}
		if i < total-1 {
			if err := fetcher.Sleep(ctx, p.cfg.Pipeline.ProductDelay); err != nil {
				break
			}
		}
	}

	onProgress.Report(100, fmt.Sprintf("analyzed %d products", len(rows)))
	return rows
}

// AnalyzeProduct runs resolution, collection and aggregation for one
// product. It never returns an error and never panics outward: every
// failure mode degrades to a sentinel aggregate whose latest-date field
// carries the reason.
func (p *Pipeline) AnalyzeProduct(ctx context.Context, product *types.Product, cutoff time.Time, onProgress types.ProgressFunc) (agg *types.ReviewAggregate) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during product analysis",
				"product", product.Name,
				"panic", r,
			)
			agg = types.EmptyAggregate(fmt.Sprintf("analysis error: %v", r))
			if p.metrics != nil {
				p.metrics.ProductsFailed.Add(1)
			}
		}
	}()

	onProgress.Report(10, "resolving item identifier")
	id, err := p.resolver.Resolve(ctx, product)
	if err != nil {
		p.logger.Warn("identifier resolution failed",
			"product", product.Name,
			"url", product.URL,
			"error", err,
		)
		onProgress.Report(100, "item identifier not found")
		if p.metrics != nil {
			p.metrics.ProductsFailed.Add(1)
		}
		return types.EmptyAggregate(fmt.Sprintf("item identifier not found: %v", err))
	}

	onProgress.Report(30, "collecting review pages")
	records, err := p.collector.Collect(ctx, id, cutoff, onProgress)
	if err != nil {
		// Only caller cancellation surfaces here; whatever was
		// accumulated is still summarized.
		p.logger.Warn("collection interrupted", "product", product.Name, "error", err)
	}

	onProgress.Report(95, "analyzing reviews")
	agg = p.aggregator.Aggregate(records, cutoff)
	if p.metrics != nil {
		p.metrics.ProductsAnalyzed.Add(1)
		p.metrics.ReviewsInWindow.Add(int64(agg.CountInWindow))
	}

	onProgress.Report(100, fmt.Sprintf("review analysis complete: %d in window", agg.CountInWindow))
	return agg
}

// scopedProgress rescales a product's 0-100 progress into its slice of the
// whole run and prefixes messages with the product label.
func scopedProgress(outer types.ProgressFunc, index, total int, label string) types.ProgressFunc {
	if outer == nil {
		return nil
	}
	return func(percent int, message string) {
		overall := (index*100 + percent) / total
		outer(overall, fmt.Sprintf("%s %s", label, message))
	}
}

// truncateName keeps progress lines readable for long listing titles.
func truncateName(name string) string {
	const max = 30
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max]) + "..."
}
