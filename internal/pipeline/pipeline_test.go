package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/resolver"
	"github.com/kshimojo/rakulens/internal/review"
	"github.com/kshimojo/rakulens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// urlFetcher serves review pages keyed by URL; unknown URLs get an empty
// page, which ends a feed.
type urlFetcher struct {
	pages map[string]string
	fail  map[string]bool
}

func (f *urlFetcher) Fetch(ctx context.Context, targetURL string) (*types.PageResult, error) {
	if f.fail[targetURL] {
		return nil, &types.FetchError{URL: targetURL, StatusCode: 500, Err: fmt.Errorf("HTTP 500"), Retryable: true}
	}
	return &types.PageResult{StatusCode: 200, Body: f.pages[targetURL], TargetURL: targetURL}, nil
}

func (f *urlFetcher) Close() error { return nil }
func (f *urlFetcher) Type() string { return "url" }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Review.MaxAttempts = 1
	cfg.Review.RetryBackoff = 0
	cfg.Review.PageDelay = 0
	cfg.Pipeline.ProductDelay = 0
	return cfg
}

func reviewPage(entries ...string) string {
	return `<html><body><ul>` + strings.Join(entries, "") + `</ul></body></html>`
}

func reviewEntry(date string, rating int, text string) string {
	return fmt.Sprintf(`<li><div class="container--x">
<span>%s</span>
<span class="text-container--a style-bold--b">%d</span>
<div class="review-body--c">%s</div>
</div></li>`, date, rating, text)
}

func newTestPipeline(cfg *config.Config, f *urlFetcher, now time.Time) *Pipeline {
	res := resolver.New(f, &cfg.Review, testLogger)
	col := review.NewCollector(f, review.NewParser(testLogger), &cfg.Review, nil, testLogger)
	agg := review.NewAggregator(&cfg.Review, testLogger)

	p := New(res, col, agg, cfg, nil, testLogger)
	p.now = func() time.Time { return now }
	return p
}

func TestRunEnrichesProducts(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	feedURL := review.PageURL("shop-a_10001518", 1)
	f := &urlFetcher{pages: map[string]string{
		feedURL: reviewPage(
			reviewEntry("2026/8/20", 5, "great"),
			reviewEntry("2026/8/10", 3, "okay"),
			reviewEntry("2026/7/1", 1, "bad"),
		),
	}}
	p := newTestPipeline(cfg, f, now)

	products := []types.Product{
		{Name: "Wireless Earbuds", Code: "shop-a:10001518"},
	}

	rows := p.Run(context.Background(), products, nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	agg := rows[0].Aggregate
	if agg.CountInWindow != 3 {
		t.Errorf("expected 3 in window, got %d", agg.CountInWindow)
	}
	if agg.LatestReviewDate != "2026/8/20" {
		t.Errorf("unexpected latest date: %q", agg.LatestReviewDate)
	}
	if agg.AverageRating != 3 {
		t.Errorf("expected average 3, got %v", agg.AverageRating)
	}
	if rows[0].Product.Name != "Wireless Earbuds" {
		t.Errorf("product not carried through: %+v", rows[0].Product)
	}
}

func TestRunSentinelOnResolutionFailure(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	// No code, a page that yields nothing, and a URL matching no known
	// shape: resolution fails, the row still exists with a sentinel.
	f := &urlFetcher{fail: map[string]bool{
		"https://example.com/nothing": true,
	}}
	p := newTestPipeline(cfg, f, now)

	products := []types.Product{
		{Name: "Mystery Listing", URL: "https://example.com/nothing"},
	}

	rows := p.Run(context.Background(), products, nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	agg := rows[0].Aggregate
	if !strings.Contains(agg.LatestReviewDate, "item identifier not found") {
		t.Errorf("expected sentinel reason, got %q", agg.LatestReviewDate)
	}
	if agg.CountInWindow != 0 || agg.AverageRating != 0 {
		t.Errorf("sentinel aggregate not zeroed: %+v", agg)
	}
}

func TestRunNoReviews(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	f := &urlFetcher{}
	p := newTestPipeline(cfg, f, now)

	rows := p.Run(context.Background(), []types.Product{{Name: "Quiet Product", Code: "shop-q:1"}}, nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Aggregate.LatestReviewDate != review.NoReviewsMessage {
		t.Errorf("expected %q, got %q", review.NoReviewsMessage, rows[0].Aggregate.LatestReviewDate)
	}
}

func TestRunCapsProducts(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxProducts = 2
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	p := newTestPipeline(cfg, &urlFetcher{}, now)

	products := []types.Product{
		{Name: "A", Code: "shop:1"},
		{Name: "B", Code: "shop:2"},
		{Name: "C", Code: "shop:3"},
	}

	rows := p.Run(context.Background(), products, nil)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestRunFrozenCutoff(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	// A review exactly at the window boundary stays in even though wall
	// time would have moved past it during a long run.
	boundary := review.WindowCutoff(now, cfg.Review.WindowMonths)
	feedURL := review.PageURL("shop-a_1", 1)
	f := &urlFetcher{pages: map[string]string{
		feedURL: reviewPage(reviewEntry(boundary.Format("2006/1/2"), 4, "boundary")),
	}}
	p := newTestPipeline(cfg, f, now)

	rows := p.Run(context.Background(), []types.Product{{Name: "A", Code: "shop-a:1"}}, nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Aggregate.CountInWindow != 1 {
		t.Errorf("boundary review excluded: %+v", rows[0].Aggregate)
	}
}

func TestRunProgress(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	p := newTestPipeline(cfg, &urlFetcher{}, now)

	var last int
	rows := p.Run(context.Background(), []types.Product{
		{Name: "A", Code: "shop:1"},
		{Name: "B", Code: "shop:2"},
	}, func(percent int, message string) {
		if percent < last-1 {
			t.Errorf("progress went backwards: %d after %d (%s)", percent, last, message)
		}
		last = percent
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if last != 100 {
		t.Errorf("expected final progress 100, got %d", last)
	}
}

func TestTruncateName(t *testing.T) {
	short := "Earbuds"
	if got := truncateName(short); got != short {
		t.Errorf("short name changed: %q", got)
	}

	long := strings.Repeat("ワ", 40)
	got := truncateName(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long name not truncated: %q", got)
	}
	if len([]rune(got)) != 33 {
		t.Errorf("unexpected truncated length: %d", len([]rune(got)))
	}
}
