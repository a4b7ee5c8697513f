// Package resolver turns a product reference (item code and/or product page
// URL) into the canonical item identifier used to address the review feed.
//
// The product page markup is uncontrolled third-party HTML whose embedded
// state varies by rendering path, so resolution layers several extraction
// strategies instead of relying on a single parse.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/fetcher"
	"github.com/kshimojo/rakulens/internal/types"
)

// Delimiter is the single separator character of a canonical item id.
const Delimiter = "_"

var normalizer = strings.NewReplacer("/", Delimiter, ":", Delimiter)

// Normalize collapses all path and colon separators of a raw identifier to
// the canonical delimiter. Normalizing an already-normalized id is a no-op.
func Normalize(raw string) types.ItemID {
	return types.ItemID(normalizer.Replace(raw))
}

// Resolver resolves canonical item identifiers.
type Resolver struct {
	fetcher fetcher.Fetcher
	retry   fetcher.RetryPolicy
	logger  *slog.Logger
}

// New creates a Resolver fetching product pages via f.
func New(f fetcher.Fetcher, cfg *config.ReviewConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		fetcher: f,
		retry: fetcher.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     cfg.RetryBackoff,
		},
		logger: logger.With("component", "resolver"),
	}
}

// Resolve produces the canonical item id for a product. Strategy order,
// first success wins:
//
//  1. normalize the item code directly, without any network call;
//  2. fetch the product page (bounded attempts) and run the embedded-state
//     extraction strategies over it;
//  3. pattern-match known path shapes in the product URL itself.
//
// types.ErrIdentifierNotFound is returned when every strategy fails.
func (r *Resolver) Resolve(ctx context.Context, p *types.Product) (types.ItemID, error) {
	if p.Code != "" {
		id := Normalize(p.Code)
		r.logger.Debug("resolved from item code", "code", p.Code, "id", id)
		return id, nil
	}
	if p.URL == "" {
		return "", types.ErrNoReference
	}

	if id, ok := r.resolveFromPage(ctx, p.URL); ok {
		return id, nil
	}

	if raw, ok := idFromURL(p.URL); ok {
		id := Normalize(raw)
		r.logger.Debug("resolved from url pattern", "url", p.URL, "id", id)
		return id, nil
	}

	return "", types.ErrIdentifierNotFound
}

// resolveFromPage fetches the product page and tries the body strategies.
func (r *Resolver) resolveFromPage(ctx context.Context, pageURL string) (types.ItemID, bool) {
	page, err := r.retry.Do(ctx, r.fetcher, pageURL, func(retry int) {
		r.logger.Debug("product page retry", "url", pageURL, "retry", retry)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", false
		}
		r.logger.Warn("product page unavailable, falling back to url patterns",
			"url", pageURL, "error", err)
		return "", false
	}

	// A structured relay may have pre-extracted the identifier.
	if page.RatItemID != "" {
		return Normalize(page.RatItemID), true
	}

	for _, s := range bodyStrategies {
		raw, ok := s.extract(page.Body)
		if !ok {
			continue
		}
		id := Normalize(raw)
		r.logger.Debug("resolved from page body", "strategy", s.name, "id", id)
		return id, true
	}

	r.logger.Warn("no item id in product page markup", "url", pageURL, "bytes", len(page.Body))
	return "", false
}
