package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/types"
)

// HTTPFetcher implements Fetcher over net/http, routing requests through the
// relay manager. It understands both relay response shapes: passthrough raw
// markup and the structured JSON envelope.
type HTTPFetcher struct {
	client     *http.Client
	cfg        *config.FetcherConfig
	relays     *RelayManager
	logger     *slog.Logger
	userAgents []string
	uaIndex    atomic.Int64
}

// relayEnvelope is the structured relay response shape. Some relay paths
// pre-extract the item identifier and return it alongside (or instead of)
// the page markup.
type relayEnvelope struct {
	HTML      string `json:"html"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RatItemID string `json:"ratItemId"`
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.FetcherConfig, relays *RelayManager, logger *slog.Logger) *HTTPFetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		cfg:        cfg,
		relays:     relays,
		logger:     logger.With("component", "http_fetcher"),
		userAgents: cfg.UserAgents,
	}
}

// Fetch retrieves targetURL through the preferred relay and returns the page.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*types.PageResult, error) {
	relayBase, err := f.relays.Next()
	if err != nil {
		return nil, &types.FetchError{URL: targetURL, Err: err, Retryable: false}
	}
	requestURL := RequestURL(relayBase, targetURL)

	ctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: targetURL, Err: err, Retryable: false}
	}

	httpReq.Header.Set("User-Agent", f.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		fe := &types.FetchError{URL: targetURL, Err: err, Retryable: isRetryableError(err)}
		if isTimeoutError(err) {
			fe.Err = fmt.Errorf("%w: %v", types.ErrTimeout, err)
			fe.Retryable = true
		}
		f.relays.MarkFailure(relayBase, err)
		return nil, fe
	}
	defer httpResp.Body.Close()

	// The relay reports an upstream timeout as 504; it is retry-eligible
	// like a local timeout.
	if httpResp.StatusCode == http.StatusGatewayTimeout {
		f.relays.MarkFailure(relayBase, types.ErrTimeout)
		return nil, &types.FetchError{
			URL:        targetURL,
			StatusCode: httpResp.StatusCode,
			Err:        types.ErrTimeout,
			Retryable:  true,
		}
	}

	if httpResp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		err := fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet)))
		f.relays.MarkFailure(relayBase, err)
		return nil, &types.FetchError{
			URL:        targetURL,
			StatusCode: httpResp.StatusCode,
			Err:        err,
			Retryable:  true,
		}
	}

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}
	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: targetURL, Err: err, Retryable: false}
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: targetURL, Err: err, Retryable: true}
	}

	result := &types.PageResult{
		StatusCode:    httpResp.StatusCode,
		Body:          string(raw),
		TargetURL:     targetURL,
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}

	// A structured relay answers with a JSON envelope; any other JSON body
	// (e.g. a search API response) passes through untouched.
	if looksLikeJSON(httpResp, raw) {
		var env relayEnvelope
		if err := json.Unmarshal(raw, &env); err == nil {
			if env.Error != "" {
				relayErr := &types.RelayError{Endpoint: relayBase, Code: env.Error, Message: env.Message}
				f.relays.MarkFailure(relayBase, relayErr)
				return nil, &types.FetchError{URL: targetURL, StatusCode: httpResp.StatusCode, Err: relayErr, Retryable: true}
			}
			if env.HTML != "" || env.RatItemID != "" {
				result.Body = env.HTML
				result.RatItemID = env.RatItemID
			}
		}
	}

	if !result.IsSuccess() {
		f.relays.MarkFailure(relayBase, fmt.Errorf("HTTP %d", httpResp.StatusCode))
		return nil, &types.FetchError{
			URL:        targetURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", httpResp.StatusCode),
			Retryable:  true,
		}
	}

	// A pre-extracted identifier with no markup is still a usable result.
	if result.RatItemID == "" && len(result.Body) < f.cfg.MinBodySize {
		f.relays.MarkFailure(relayBase, types.ErrShortBody)
		return nil, &types.FetchError{
			URL:        targetURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("%w: %d bytes", types.ErrShortBody, len(result.Body)),
			Retryable:  true,
		}
	}

	f.relays.MarkSuccess(relayBase)
	f.logger.Debug("fetch complete",
		"url", targetURL,
		"status", result.StatusCode,
		"size", len(result.Body),
		"duration", duration,
	)
	return result, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// nextUserAgent returns the next User-Agent in rotation.
func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "rakulens/" + config.Version
	}
	idx := f.uaIndex.Add(1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// looksLikeJSON reports whether a response body could be a structured relay
// envelope rather than passthrough markup.
func looksLikeJSON(resp *http.Response, body []byte) bool {
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return true
	}
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	return strings.HasPrefix(trimmed, "{")
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isTimeoutError reports whether an error is a timeout of any flavor.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isRetryableError checks if a network error warrants a retry.
// Covers timeouts, connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// Caller cancellation is not retryable; a per-attempt deadline is.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}
