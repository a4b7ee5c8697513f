package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/fetcher"
	"github.com/kshimojo/rakulens/internal/observability"
	"github.com/kshimojo/rakulens/internal/types"
)

// reviewFeedBase is the review feed's URL scheme root. Feed pages are
// addressed by canonical item id and 1-based page number.
const reviewFeedBase = "https://review.rakuten.co.jp/item/1/"

// PageURL derives the review feed URL for an item id and page number.
func PageURL(id types.ItemID, page int) string {
	u := fmt.Sprintf("%s%s/1.1/?l2-id=item_review", reviewFeedBase, id)
	if page > 1 {
		u = fmt.Sprintf("%s&p=%d", u, page)
	}
	return u
}

// Collector pages through a product's review feed, accumulating parsed
// records until the feed ends, the time window is exhausted, or the page
// budget runs out.
//
// The feed is unbounded and newest-first with no authoritative page count;
// the window cutoff and page budget trade completeness for a hard latency
// ceiling.
type Collector struct {
	fetcher fetcher.Fetcher
	parser  *Parser
	cfg     *config.ReviewConfig
	retry   fetcher.RetryPolicy
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCollector creates a Collector. metrics may be nil.
func NewCollector(f fetcher.Fetcher, parser *Parser, cfg *config.ReviewConfig, metrics *observability.Metrics, logger *slog.Logger) *Collector {
	return &Collector{
		fetcher: f,
		parser:  parser,
		cfg:     cfg,
		retry: fetcher.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     cfg.RetryBackoff,
		},
		metrics: metrics,
		logger:  logger.With("component", "review_collector"),
	}
}

// Collect fetches and parses review pages for the item until a stop
// condition holds. Records are returned in fetch order. A product whose
// pages keep failing before anything was collected yields an empty slice,
// not an error; only caller cancellation is returned as an error.
//
// Stop conditions, checked in order after each parsed page:
//
//	(a) the page yields zero records;
//	(b) any record on the page predates the cutoff (that page's records
//	    are still kept);
//	(c) the page budget is spent.
//
// A page that exhausts its retry budget is skipped and the loop advances,
// unless MaxConsecutiveFailures pages have failed in a row with nothing
// accumulated, which abandons the feed.
func (c *Collector) Collect(ctx context.Context, id types.ItemID, cutoff time.Time, onProgress types.ProgressFunc) ([]types.ReviewRecord, error) {
	var records []types.ReviewRecord
	consecutiveFailures := 0

	for page := 1; page <= c.cfg.PageBudget; page++ {
		pageURL := PageURL(id, page)
		percent := pagePercent(page, c.cfg.PageBudget)
		onProgress.Report(percent, fmt.Sprintf("fetching review page %d (%d reviews so far)", page, len(records)))

		result, err := c.retry.Do(ctx, c.fetcher, pageURL, func(retry int) {
			if c.metrics != nil {
				c.metrics.PagesRetried.Add(1)
			}
			onProgress.Report(percent, fmt.Sprintf("retrying review page %d (%d/%d)", page, retry, c.cfg.MaxAttempts-1))
		})
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			if c.metrics != nil {
				c.metrics.PagesFailed.Add(1)
			}
			consecutiveFailures++
			c.logger.Warn("review page failed, skipping",
				"item", id,
				"page", page,
				"consecutive_failures", consecutiveFailures,
				"error", err,
			)
			onProgress.Report(percent, fmt.Sprintf("review page %d failed, moving on", page))

			if consecutiveFailures >= c.cfg.MaxConsecutiveFailures && len(records) == 0 {
				c.logger.Warn("abandoning review feed",
					"item", id,
					"failed_pages", consecutiveFailures,
				)
				onProgress.Report(percent, "review feed unreachable, giving up")
				return records, nil
			}
			if c.metrics != nil {
				c.metrics.PagesSkipped.Add(1)
			}
			continue
		}
		consecutiveFailures = 0
		if c.metrics != nil {
			c.metrics.PagesFetched.Add(1)
		}

		pageRecords := c.parser.ParsePage(result.Body)
		if len(pageRecords) == 0 {
			c.logger.Debug("empty review page, feed exhausted", "item", id, "page", page)
			onProgress.Report(percent, fmt.Sprintf("review feed ended at page %d (%d reviews)", page, len(records)))
			return records, nil
		}
		if c.metrics != nil {
			c.metrics.ReviewsParsed.Add(int64(len(pageRecords)))
		}

		// The triggering page's records are kept; the cutoff bounds
		// pagination, not page contents.
		records = append(records, pageRecords...)
		if oldest, hit := pastCutoff(pageRecords, cutoff); hit {
			c.logger.Debug("window cutoff reached",
				"item", id,
				"page", page,
				"oldest", oldest.Format("2006/1/2"),
			)
			onProgress.Report(percent, fmt.Sprintf("reached reviews older than the window (%d collected)", len(records)))
			return records, nil
		}

		c.logger.Debug("review page collected", "item", id, "page", page, "records", len(pageRecords), "total", len(records))

		if page < c.cfg.PageBudget {
			if err := fetcher.Sleep(ctx, c.cfg.PageDelay); err != nil {
				return records, err
			}
		}
	}

	c.logger.Info("page budget spent", "item", id, "budget", c.cfg.PageBudget, "records", len(records))
	return records, nil
}

// pastCutoff reports whether any record predates the cutoff, returning the
// oldest such date.
func pastCutoff(records []types.ReviewRecord, cutoff time.Time) (time.Time, bool) {
	var oldest time.Time
	hit := false
	for _, r := range records {
		if r.Date.Before(cutoff) {
			if !hit || r.Date.Before(oldest) {
				oldest = r.Date
			}
			hit = true
		}
	}
	return oldest, hit
}

// pagePercent maps a page number onto the 30-90% progress band the
// collection phase occupies within a product's analysis.
func pagePercent(page, budget int) int {
	return 30 + int(float64(page)/float64(budget)*60)
}
