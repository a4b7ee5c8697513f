package review

import (
	"strings"
	"testing"
	"time"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/types"
)

func testReviewConfig() *config.ReviewConfig {
	cfg := config.DefaultConfig().Review
	return &cfg
}

func rec(date time.Time, rating int, text string) types.ReviewRecord {
	return types.ReviewRecord{Date: date, Rating: rating, Text: text}
}

func TestAggregate(t *testing.T) {
	a := NewAggregator(testReviewConfig(), testLogger)

	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	cutoff := WindowCutoff(now, 3)

	records := []types.ReviewRecord{
		rec(now.AddDate(0, 0, -1), 5, "great"),
		rec(now.AddDate(0, 0, -5), 5, "love it"),
		rec(now.AddDate(0, 0, -10), 4, "good"),
		rec(now.AddDate(0, 0, -20), 3, "okay"),
		rec(now.AddDate(0, 0, -40), 1, "broken"),
	}

	agg := a.Aggregate(records, cutoff)

	if agg.CountInWindow != 5 {
		t.Errorf("expected 5 in window, got %d", agg.CountInWindow)
	}
	if agg.AverageRating != 3.6 {
		t.Errorf("expected average 3.6, got %v", agg.AverageRating)
	}
	if agg.LatestReviewDate != "2026/8/28" {
		t.Errorf("unexpected latest date: %q", agg.LatestReviewDate)
	}

	if got := strings.Split(agg.HighRatingText, types.TextJoinDelimiter); len(got) != 3 {
		t.Errorf("expected 3 high-tier texts, got %d: %q", len(got), agg.HighRatingText)
	}
	if agg.MidRatingText != "okay" {
		t.Errorf("unexpected mid tier: %q", agg.MidRatingText)
	}
	if agg.LowRatingText != "broken" {
		t.Errorf("unexpected low tier: %q", agg.LowRatingText)
	}
}

func TestAggregateEmpty(t *testing.T) {
	a := NewAggregator(testReviewConfig(), testLogger)

	agg := a.Aggregate(nil, time.Now())
	if agg.LatestReviewDate != NoReviewsMessage {
		t.Errorf("expected %q, got %q", NoReviewsMessage, agg.LatestReviewDate)
	}
	if agg.CountInWindow != 0 || agg.AverageRating != 0 {
		t.Errorf("sentinel aggregate not zeroed: %+v", agg)
	}
}

func TestAggregateWindowFilter(t *testing.T) {
	a := NewAggregator(testReviewConfig(), testLogger)

	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	cutoff := WindowCutoff(now, 3)

	records := []types.ReviewRecord{
		rec(now.AddDate(0, 0, -1), 5, "fresh"),
		rec(cutoff, 4, "on the boundary"),
		rec(cutoff.AddDate(0, 0, -1), 1, "stale"),
	}

	agg := a.Aggregate(records, cutoff)

	// The boundary date itself is inside the window; only the older record
	// is excluded.
	if agg.CountInWindow != 2 {
		t.Errorf("expected 2 in window, got %d", agg.CountInWindow)
	}
	if agg.AverageRating != 4.5 {
		t.Errorf("expected average 4.5, got %v", agg.AverageRating)
	}
	if agg.LowRatingText != "" {
		t.Errorf("out-of-window text leaked into low tier: %q", agg.LowRatingText)
	}
}

func TestAggregateRounding(t *testing.T) {
	a := NewAggregator(testReviewConfig(), testLogger)

	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	cutoff := WindowCutoff(now, 3)

	// 5+4+4 over 3 = 4.333... rounds to 4.33.
	records := []types.ReviewRecord{
		rec(now.AddDate(0, 0, -1), 5, ""),
		rec(now.AddDate(0, 0, -2), 4, ""),
		rec(now.AddDate(0, 0, -3), 4, ""),
	}

	agg := a.Aggregate(records, cutoff)
	if agg.AverageRating != 4.33 {
		t.Errorf("expected 4.33, got %v", agg.AverageRating)
	}
}

func TestAggregateLatestDatePrefix(t *testing.T) {
	cfg := testReviewConfig()
	cfg.LatestDatePrefix = 3
	a := NewAggregator(cfg, testLogger)

	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	cutoff := WindowCutoff(now, 3)

	// The newest date sits at index 1, inside the prefix; a newer-looking
	// date beyond the prefix must be ignored.
	records := []types.ReviewRecord{
		rec(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), 5, ""),
		rec(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), 4, ""),
		rec(time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC), 4, ""),
		rec(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), 3, ""),
	}

	agg := a.Aggregate(records, cutoff)
	if agg.LatestReviewDate != "2026/8/25" {
		t.Errorf("expected 2026/8/25, got %q", agg.LatestReviewDate)
	}
}

func TestAggregateNoDates(t *testing.T) {
	a := NewAggregator(testReviewConfig(), testLogger)

	records := []types.ReviewRecord{
		{Rating: 4, Text: "dateless"},
	}

	agg := a.Aggregate(records, time.Date(2026, 5, 29, 0, 0, 0, 0, time.UTC))
	if agg.LatestReviewDate != types.NoDateMessage {
		t.Errorf("expected %q, got %q", types.NoDateMessage, agg.LatestReviewDate)
	}
}

func TestWindowCutoff(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	got := WindowCutoff(now, 3)
	want := time.Date(2026, 5, 29, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("WindowCutoff = %v, want %v", got, want)
	}
}
