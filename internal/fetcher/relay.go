package fetcher

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/kshimojo/rakulens/internal/types"
)

// RelayManager hands out fetch-relay endpoints in configured order. The
// first endpoint is preferred; when one keeps failing it is marked unhealthy
// and the next takes over. With no endpoints configured, targets are fetched
// directly.
type RelayManager struct {
	endpoints []*relayEndpoint
	mu        sync.RWMutex
	logger    *slog.Logger
}

type relayEndpoint struct {
	base     string
	healthy  bool
	failures int
	lastErr  error
	lastUse  time.Time
}

// relayFailureThreshold is how many consecutive failures sideline an endpoint.
const relayFailureThreshold = 3

// NewRelayManager creates a RelayManager over the configured relay base URLs.
func NewRelayManager(relayURLs []string, logger *slog.Logger) *RelayManager {
	rm := &RelayManager{
		endpoints: make([]*relayEndpoint, 0, len(relayURLs)),
		logger:    logger.With("component", "relay_manager"),
	}
	for _, raw := range relayURLs {
		if _, err := url.Parse(raw); err != nil {
			logger.Warn("invalid relay URL", "url", raw, "error", err)
			continue
		}
		rm.endpoints = append(rm.endpoints, &relayEndpoint{base: raw, healthy: true})
	}
	if len(rm.endpoints) > 0 {
		rm.logger.Info("relay manager initialized", "endpoints", len(rm.endpoints))
	}
	return rm
}

// Next returns the preferred healthy relay base URL. An empty base with a
// nil error means requests go directly to the target. When every endpoint
// has been sidelined, types.ErrNoRelay is returned.
func (rm *RelayManager) Next() (string, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if len(rm.endpoints) == 0 {
		return "", nil
	}
	for _, ep := range rm.endpoints {
		if ep.healthy {
			return ep.base, nil
		}
	}
	return "", types.ErrNoRelay
}

// RequestURL builds the relay request URL for a target, or returns the
// target itself when no relay base is given.
func RequestURL(relayBase, targetURL string) string {
	if relayBase == "" {
		return targetURL
	}
	sep := "?"
	if u, err := url.Parse(relayBase); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return relayBase + sep + "url=" + url.QueryEscape(targetURL)
}

// MarkFailure records a failure against an endpoint; after
// relayFailureThreshold consecutive failures it is sidelined.
func (rm *RelayManager) MarkFailure(relayBase string, err error) {
	if relayBase == "" {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, ep := range rm.endpoints {
		if ep.base != relayBase {
			continue
		}
		ep.failures++
		ep.lastErr = err
		if ep.healthy && ep.failures >= relayFailureThreshold {
			ep.healthy = false
			rm.logger.Warn("relay endpoint sidelined",
				"endpoint", relayBase,
				"failures", ep.failures,
				"error", err,
			)
		}
		return
	}
}

// MarkSuccess resets an endpoint's failure streak.
func (rm *RelayManager) MarkSuccess(relayBase string) {
	if relayBase == "" {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, ep := range rm.endpoints {
		if ep.base == relayBase {
			ep.failures = 0
			ep.lastUse = time.Now()
			return
		}
	}
}
