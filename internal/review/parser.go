// Package review implements the review-enrichment core: parsing review feed
// markup, paginating through the feed, and aggregating the collected records
// over a trailing time window.
package review

import (
	"html"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kshimojo/rakulens/internal/types"
)

// Parser converts one page of review feed markup into structured records.
// It holds no state beyond compiled patterns; parsing never fails, malformed
// blocks are skipped individually.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a review page parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With("component", "review_parser"),
	}
}

var (
	// blockRe segments the raw markup into review blocks when the DOM
	// route finds nothing: the review-list layout opens each entry with a
	// hash-suffixed container div inside an <li>.
	blockRe = regexp.MustCompile(`(?s)<div class="container--.*?</li>`)

	dateRe = regexp.MustCompile(`(\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2})`)

	// ratingRe matches the single-digit score inside the bold-styled
	// inline element of a review block.
	ratingRe = regexp.MustCompile(`<span class="text-container--[^"]*style-bold[^"]*"[^>]*>(\d)</span>`)

	textRe = regexp.MustCompile(`(?s)<div class="review-body--[^"]*"[^>]*>(.*?)</div>`)

	tagRe = regexp.MustCompile(`<[^>]*>`)
)

// dateFormats are the date shapes seen in the feed, tried in order.
var dateFormats = []string{"2006/1/2", "2006-1-2", "2006.1.2"}

// ParsePage extracts review records from one page of markup. The result may
// be empty; it is never an error.
func (p *Parser) ParsePage(markup string) []types.ReviewRecord {
	blocks := segmentBlocks(markup)

	records := make([]types.ReviewRecord, 0, len(blocks))
	for _, block := range blocks {
		rec, ok := parseBlock(block)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	p.logger.Debug("page parsed", "blocks", len(blocks), "records", len(records))
	return records
}

// segmentBlocks splits markup into candidate review-block fragments. The DOM
// strategy runs first; the regex segmentation covers partial or truncated
// markup that no longer parses as a document tree.
func segmentBlocks(markup string) []string {
	if blocks := domBlocks(markup); len(blocks) > 0 {
		return blocks
	}
	return blockRe.FindAllString(markup, -1)
}

// domBlocks selects review list items whose subtree carries the layout's
// container marker.
func domBlocks(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var blocks []string
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		if li.Find(`div[class^="container--"]`).Length() == 0 {
			return
		}
		block, err := goquery.OuterHtml(li)
		if err != nil || block == "" {
			return
		}
		blocks = append(blocks, block)
	})
	return blocks
}

// parseBlock extracts one record from a block fragment. Date and rating are
// load-bearing: a block missing either is discarded whole. Text is optional.
func parseBlock(block string) (types.ReviewRecord, bool) {
	dateMatch := dateRe.FindStringSubmatch(block)
	if dateMatch == nil {
		return types.ReviewRecord{}, false
	}
	date, ok := parseDate(dateMatch[1])
	if !ok {
		return types.ReviewRecord{}, false
	}

	ratingMatch := ratingRe.FindStringSubmatch(block)
	if ratingMatch == nil {
		return types.ReviewRecord{}, false
	}
	rating, err := strconv.Atoi(ratingMatch[1])
	if err != nil || rating < types.RatingMin || rating > types.RatingMax {
		return types.ReviewRecord{}, false
	}

	var text string
	if m := textRe.FindStringSubmatch(block); m != nil {
		text = cleanText(m[1])
	}

	return types.ReviewRecord{Date: date, Rating: rating, Text: text}, true
}

// parseDate parses a feed date token, trying each known format.
func parseDate(token string) (time.Time, bool) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, token); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cleanText strips markup and entities from a review body and collapses
// whitespace.
func cleanText(raw string) string {
	cleaned := tagRe.ReplaceAllString(raw, "")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}
