package fetcher

import (
	"context"
	"time"

	"github.com/kshimojo/rakulens/internal/types"
)

// Fetcher retrieves one upstream page, normally through a fetch relay that
// lifts the marketplace's cross-origin restrictions.
type Fetcher interface {
	// Fetch retrieves the content at the given upstream URL.
	Fetch(ctx context.Context, targetURL string) (*types.PageResult, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Sleep waits for d or until the context is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
