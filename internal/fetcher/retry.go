package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/kshimojo/rakulens/internal/types"
)

// RetryPolicy bounds repeated fetch attempts for a single URL. Backoff is
// linear: retry n waits n * Backoff before firing.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do fetches targetURL under the policy. onRetry, if non-nil, is invoked
// with the retry number (1-based) before each backoff wait; it must not
// affect control flow. The last attempt's error is returned when the
// budget is exhausted. Non-retryable errors end the loop immediately.
func (p RetryPolicy) Do(ctx context.Context, f Fetcher, targetURL string, onRetry func(retry int)) (*types.PageResult, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			retry := attempt - 1
			if onRetry != nil {
				onRetry(retry)
			}
			if err := Sleep(ctx, time.Duration(retry)*p.Backoff); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, targetURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var fe *types.FetchError
		if errors.As(err, &fe) && !fe.IsRetryable() {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
