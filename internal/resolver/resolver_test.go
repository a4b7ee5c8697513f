package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// pageFetcher serves a single canned page body for every URL.
type pageFetcher struct {
	body      string
	ratItemID string
	err       error
	calls     int
}

func (f *pageFetcher) Fetch(ctx context.Context, targetURL string) (*types.PageResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.PageResult{
		StatusCode: 200,
		Body:       f.body,
		RatItemID:  f.ratItemID,
		TargetURL:  targetURL,
	}, nil
}

func (f *pageFetcher) Close() error { return nil }
func (f *pageFetcher) Type() string { return "canned" }

func testResolverConfig() *config.ReviewConfig {
	cfg := config.DefaultConfig().Review
	cfg.MaxAttempts = 1
	cfg.RetryBackoff = 0
	return &cfg
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want types.ItemID
	}{
		{"shop-a:10001518", "shop-a_10001518"},
		{"shop-a/10001518", "shop-a_10001518"},
		{"shop-a_10001518", "shop-a_10001518"},
		{"a:b/c", "a_b_c"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.raw); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	once := Normalize("shop:123")
	twice := Normalize(string(once))
	if once != twice {
		t.Errorf("normalization not idempotent: %q vs %q", once, twice)
	}
}

func TestResolveFromCode(t *testing.T) {
	f := &pageFetcher{}
	r := New(f, testResolverConfig(), testLogger)

	id, err := r.Resolve(context.Background(), &types.Product{
		Code: "shop-a:10001518",
		URL:  "https://item.rakuten.co.jp/shop-a/10001518/",
	})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if id != "shop-a_10001518" {
		t.Errorf("unexpected id: %q", id)
	}
	// An item code resolves locally; the product page is never fetched.
	if f.calls != 0 {
		t.Errorf("expected no fetch, got %d", f.calls)
	}
}

func TestResolveNoReference(t *testing.T) {
	r := New(&pageFetcher{}, testResolverConfig(), testLogger)

	_, err := r.Resolve(context.Background(), &types.Product{Name: "nameless"})
	if !errors.Is(err, types.ErrNoReference) {
		t.Errorf("expected ErrNoReference, got %v", err)
	}
}

func TestResolveFromInitialState(t *testing.T) {
	body := `<html><head><script>
window.__INITIAL_STATE__ = {"rat":{"genericParameter":{"ratItemId":"shop-b/20002000"}}};
</script></head><body></body></html>`
	f := &pageFetcher{body: body}
	r := New(f, testResolverConfig(), testLogger)

	id, err := r.Resolve(context.Background(), &types.Product{URL: "https://example.com/product"})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if id != "shop-b_20002000" {
		t.Errorf("unexpected id: %q", id)
	}
}

func TestResolveFromItemInfoSku(t *testing.T) {
	body := `<html><body><script>
{"api":{"data":{"itemInfoSku":{"shopId":347890,"itemId":10001518}}}}
</script></body></html>`
	f := &pageFetcher{body: body}
	r := New(f, testResolverConfig(), testLogger)

	id, err := r.Resolve(context.Background(), &types.Product{URL: "https://example.com/product"})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if id != "347890_10001518" {
		t.Errorf("unexpected id: %q", id)
	}
}

func TestResolveFromRatItemIDLiteral(t *testing.T) {
	body := `<html><body><script>var tracking = {"ratItemId": "shop-c/30003000", "other": 1};</script></body></html>`
	f := &pageFetcher{body: body}
	r := New(f, testResolverConfig(), testLogger)

	id, err := r.Resolve(context.Background(), &types.Product{URL: "https://example.com/product"})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if id != "shop-c_30003000" {
		t.Errorf("unexpected id: %q", id)
	}
}

func TestResolvePreExtractedID(t *testing.T) {
	// A structured relay may hand back the identifier with no markup at all.
	f := &pageFetcher{ratItemID: "shop-d/40004000"}
	r := New(f, testResolverConfig(), testLogger)

	id, err := r.Resolve(context.Background(), &types.Product{URL: "https://example.com/product"})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if id != "shop-d_40004000" {
		t.Errorf("unexpected id: %q", id)
	}
}

func TestResolveFallsBackToURLPatterns(t *testing.T) {
	fetchErr := &types.FetchError{URL: "x", StatusCode: 500, Err: fmt.Errorf("HTTP 500"), Retryable: true}

	cases := []struct {
		url  string
		want types.ItemID
	}{
		{"https://item.rakuten.co.jp/item/shop-a:10001518?ref=1", "shop-a_10001518"},
		{"https://example.com/search?itemCode=shop-b:123&x=1", "shop-b_123"},
		{"https://i.rakuten.co.jp/shop-c/30003000/", "30003000"},
	}
	for _, tc := range cases {
		f := &pageFetcher{err: fetchErr}
		r := New(f, testResolverConfig(), testLogger)

		id, err := r.Resolve(context.Background(), &types.Product{URL: tc.url})
		if err != nil {
			t.Errorf("resolve %s: %v", tc.url, err)
			continue
		}
		if id != tc.want {
			t.Errorf("resolve %s = %q, want %q", tc.url, id, tc.want)
		}
	}
}

func TestResolveNotFound(t *testing.T) {
	f := &pageFetcher{body: "<html><body>nothing of interest, padding padding padding padding padding</body></html>"}
	r := New(f, testResolverConfig(), testLogger)

	_, err := r.Resolve(context.Background(), &types.Product{URL: "https://example.com/nothing"})
	if !errors.Is(err, types.ErrIdentifierNotFound) {
		t.Errorf("expected ErrIdentifierNotFound, got %v", err)
	}
}
