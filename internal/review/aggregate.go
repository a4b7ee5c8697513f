package review

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/types"
)

// NoReviewsMessage is the sentinel reason for a product with an empty feed.
const NoReviewsMessage = "no reviews found"

// WindowCutoff returns the start of the trailing window of the given number
// of calendar months ending at now.
func WindowCutoff(now time.Time, months int) time.Time {
	return now.AddDate(0, -months, 0)
}

// Aggregator reduces collected review records into the per-product summary.
type Aggregator struct {
	cfg    *config.ReviewConfig
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg *config.ReviewConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		logger: logger.With("component", "review_aggregator"),
	}
}

// Aggregate summarizes records against the window cutoff. Records are
// expected in fetch order (the feed is newest-first); only a prefix is
// inspected for the latest date. The window filter is applied here again so
// the summary stays correct whether or not the collector already stopped at
// the cutoff.
func (a *Aggregator) Aggregate(records []types.ReviewRecord, cutoff time.Time) *types.ReviewAggregate {
	if len(records) == 0 {
		return types.EmptyAggregate(NoReviewsMessage)
	}

	agg := &types.ReviewAggregate{
		LatestReviewDate: a.latestDate(records),
	}

	var (
		high, mid, low []string
		ratingSum      int
	)
	for _, r := range records {
		if !r.InWindow(cutoff) {
			continue
		}
		agg.CountInWindow++
		ratingSum += r.Rating
		switch {
		case r.Rating >= 4:
			high = append(high, r.Text)
		case r.Rating == 3:
			mid = append(mid, r.Text)
		default:
			low = append(low, r.Text)
		}
	}

	if agg.CountInWindow > 0 {
		mean := float64(ratingSum) / float64(agg.CountInWindow)
		agg.AverageRating = math.Round(mean*100) / 100
	}
	agg.HighRatingText = strings.Join(high, types.TextJoinDelimiter)
	agg.MidRatingText = strings.Join(mid, types.TextJoinDelimiter)
	agg.LowRatingText = strings.Join(low, types.TextJoinDelimiter)

	a.logger.Debug("aggregated reviews",
		"total", len(records),
		"in_window", agg.CountInWindow,
		"average", agg.AverageRating,
		"high", len(high),
		"mid", len(mid),
		"low", len(low),
	)
	return agg
}

// latestDate picks the maximum date among the first LatestDatePrefix records
// in fetch order. The feed is assumed newest-first, so inspecting a prefix
// is enough.
func (a *Aggregator) latestDate(records []types.ReviewRecord) string {
	prefix := a.cfg.LatestDatePrefix
	if prefix > len(records) {
		prefix = len(records)
	}

	var latest time.Time
	found := false
	for _, r := range records[:prefix] {
		if r.Date.IsZero() {
			continue
		}
		if !found || r.Date.After(latest) {
			latest = r.Date
			found = true
		}
	}
	if !found {
		return types.NoDateMessage
	}
	return latest.Format("2006/1/2")
}
