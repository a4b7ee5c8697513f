package types

import (
	"time"
)

// RatingMin and RatingMax bound the valid review rating scale.
const (
	RatingMin = 1
	RatingMax = 5
)

// ReviewRecord is a single parsed review. Date and Rating are always valid;
// blocks missing either are dropped at parse time rather than produced with
// zero values.
type ReviewRecord struct {
	// Date is the review's calendar date (day granularity).
	Date time.Time

	// Rating is the reviewer's score, always within [RatingMin, RatingMax].
	Rating int

	// Text is the free-text review body, possibly empty.
	Text string
}

// InWindow reports whether the record's date falls on or after the cutoff.
func (r ReviewRecord) InWindow(cutoff time.Time) bool {
	return !r.Date.Before(cutoff)
}

// NoDateMessage is the sentinel latest-date value used when no review dates
// are available.
const NoDateMessage = "no review date"

// ReviewAggregate is the per-product output of the review pipeline. On
// upstream failure it is a sentinel: LatestReviewDate carries a human-readable
// reason and every other field is zero/empty.
type ReviewAggregate struct {
	// LatestReviewDate is the newest review date formatted YYYY/M/D, or a
	// sentinel message when no dated reviews were found.
	LatestReviewDate string

	// CountInWindow is the number of reviews inside the trailing window.
	CountInWindow int

	// AverageRating is the mean windowed rating rounded to 2 decimals,
	// 0 when the window is empty.
	AverageRating float64

	// HighRatingText, MidRatingText and LowRatingText hold the windowed
	// review bodies per tier (high >= 4, mid == 3, low <= 2), joined in
	// fetch order with TextJoinDelimiter.
	HighRatingText string
	MidRatingText  string
	LowRatingText  string
}

// TextJoinDelimiter separates individual review texts inside a tier column.
const TextJoinDelimiter = "<br>"

// EmptyAggregate returns the sentinel aggregate carrying a reason message.
func EmptyAggregate(reason string) *ReviewAggregate {
	return &ReviewAggregate{LatestReviewDate: reason}
}

// ResultRow pairs a product with its review aggregate for the result sink.
type ResultRow struct {
	Product    Product
	Aggregate  *ReviewAggregate
	AnalyzedAt time.Time
}
