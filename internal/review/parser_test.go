package review

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// reviewBlock builds one review entry in the feed's list layout.
func reviewBlock(date string, rating int, text string) string {
	return fmt.Sprintf(`<li>
  <div class="container--2Fz1B">
    <div class="review-date--1y9V2"><span>%s</span></div>
    <span class="text-container--IgSbh style-bold--1bCsE">%d</span>
    <div class="review-body--1pESv">%s</div>
  </div>
</li>`, date, rating, text)
}

func reviewPage(blocks ...string) string {
	return `<html><body><ul class="review-list">` + strings.Join(blocks, "\n") + `</ul></body></html>`
}

func TestParsePage(t *testing.T) {
	p := NewParser(testLogger)
	markup := reviewPage(
		reviewBlock("2026/8/20", 5, "とても良い商品でした"),
		reviewBlock("2026/8/15", 3, "普通です"),
		reviewBlock("2026/7/1", 1, "残念"),
	)

	records := p.ParsePage(markup)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	first := records[0]
	if !first.Date.Equal(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date: %v", first.Date)
	}
	if first.Rating != 5 {
		t.Errorf("expected rating 5, got %d", first.Rating)
	}
	if first.Text != "とても良い商品でした" {
		t.Errorf("unexpected text: %q", first.Text)
	}
}

func TestParsePageEmpty(t *testing.T) {
	p := NewParser(testLogger)

	records := p.ParsePage(`<html><body><p>no reviews here</p></body></html>`)
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	records = p.ParsePage("")
	if len(records) != 0 {
		t.Errorf("expected no records from empty markup, got %d", len(records))
	}
}

func TestParsePageDropsMalformedBlocks(t *testing.T) {
	p := NewParser(testLogger)

	noDate := `<li><div class="container--abc">
  <span class="text-container--x style-bold--y">4</span>
  <div class="review-body--z">dateless</div>
</div></li>`
	noRating := `<li><div class="container--abc">
  <div class="review-date--d"><span>2026/8/1</span></div>
  <div class="review-body--z">ratingless</div>
</div></li>`
	markup := reviewPage(noDate, noRating, reviewBlock("2026/8/10", 4, "kept"))

	records := p.ParsePage(markup)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Text != "kept" {
		t.Errorf("wrong record survived: %q", records[0].Text)
	}
}

func TestParsePageRatingBounds(t *testing.T) {
	p := NewParser(testLogger)

	// 0 and out-of-scale digits must not produce records.
	markup := reviewPage(
		reviewBlock("2026/8/10", 0, "zero"),
		reviewBlock("2026/8/10", 6, "six"),
		reviewBlock("2026/8/10", 1, "one"),
		reviewBlock("2026/8/10", 5, "five"),
	)

	records := p.ParsePage(markup)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Rating < 1 || r.Rating > 5 {
			t.Errorf("rating out of bounds: %d", r.Rating)
		}
	}
}

func TestParsePageTextOptional(t *testing.T) {
	p := NewParser(testLogger)

	noBody := `<li><div class="container--abc">
  <div class="review-date--d"><span>2026/8/5</span></div>
  <span class="text-container--x style-bold--y">3</span>
</div></li>`

	records := p.ParsePage(reviewPage(noBody))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Text != "" {
		t.Errorf("expected empty text, got %q", records[0].Text)
	}
}

func TestParsePageCleansText(t *testing.T) {
	p := NewParser(testLogger)

	markup := reviewPage(reviewBlock("2026/8/5", 4, "line one<br>line&nbsp;two   <b>bold</b>"))

	records := p.ParsePage(markup)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if strings.Contains(records[0].Text, "<") {
		t.Errorf("markup leaked into text: %q", records[0].Text)
	}
	if strings.Contains(records[0].Text, "  ") {
		t.Errorf("whitespace not collapsed: %q", records[0].Text)
	}
}

func TestParsePageRegexFallback(t *testing.T) {
	p := NewParser(testLogger)

	// Truncated markup with no enclosing document still yields records via
	// the regex segmentation path.
	fragment := `<div class="container--2Fz1B">
  <div class="review-date--1y9V2"><span>2026/8/12</span></div>
  <span class="text-container--IgSbh style-bold--1bCsE">5</span>
  <div class="review-body--1pESv">fragment review</div>
</div></li>`

	records := p.ParsePage(fragment)
	if len(records) != 1 {
		t.Fatalf("expected 1 record from fragment, got %d", len(records))
	}
	if records[0].Rating != 5 || records[0].Text != "fragment review" {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestParseDateFormats(t *testing.T) {
	cases := []struct {
		token string
		want  time.Time
	}{
		{"2026/8/20", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{"2026-08-20", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{"2026.8.20", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := parseDate(tc.token)
		if !ok {
			t.Errorf("parseDate(%q) failed", tc.token)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}

	if _, ok := parseDate("not a date"); ok {
		t.Error("expected failure for junk token")
	}
}
