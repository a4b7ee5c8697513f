package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/types"
)

// BrowserFetcher implements Fetcher with a headless browser via Rod. Some
// marketplace rendering paths only embed the item state after client-side
// scripts run, so the resolver can be pointed at this fetcher instead of the
// relay when the passthrough markup keeps coming back without it.
type BrowserFetcher struct {
	browser *rod.Browser
	cfg     *config.FetcherConfig
	logger  *slog.Logger
	stealth bool
	mu      sync.Mutex
}

// NewBrowserFetcher launches a headless Chromium and connects to it.
func NewBrowserFetcher(cfg *config.FetcherConfig, useStealth bool, logger *slog.Logger) (*BrowserFetcher, error) {
	launchURL, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf := &BrowserFetcher{
		browser: browser,
		cfg:     cfg,
		logger:  logger.With("component", "browser_fetcher"),
		stealth: useStealth,
	}
	bf.logger.Info("browser fetcher ready", "stealth", useStealth)
	return bf, nil
}

// Fetch navigates to the target URL and returns the rendered markup.
func (bf *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*types.PageResult, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	start := time.Now()

	var page *rod.Page
	var err error
	if bf.stealth {
		page, err = stealth.Page(bf.browser)
	} else {
		page, err = bf.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, &types.FetchError{URL: targetURL, Err: err, Retryable: true}
	}
	defer page.Close()

	page = page.Context(ctx)

	if len(bf.cfg.UserAgents) > 0 {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: bf.cfg.UserAgents[0],
		})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.cfg.RequestTimeout
	if err := page.Timeout(timeout).Navigate(targetURL); err != nil {
		return nil, &types.FetchError{URL: targetURL, Err: err, Retryable: true}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", targetURL, "error", err)
	}

	markup, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: targetURL, Err: err, Retryable: true}
	}

	if len(markup) < bf.cfg.MinBodySize {
		return nil, &types.FetchError{
			URL:        targetURL,
			StatusCode: 200,
			Err:        fmt.Errorf("%w: %d bytes", types.ErrShortBody, len(markup)),
			Retryable:  true,
		}
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", targetURL,
		"size", len(markup),
		"duration", duration,
	)

	// Rod does not expose navigation status codes directly; a rendered
	// document is treated as success.
	return &types.PageResult{
		StatusCode:    200,
		Body:          markup,
		TargetURL:     targetURL,
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}, nil
}

// Close shuts the browser down.
func (bf *BrowserFetcher) Close() error {
	return bf.browser.Close()
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
