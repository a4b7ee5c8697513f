package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout            = errors.New("request timed out")
	ErrShortBody          = errors.New("response body too short, likely an error page")
	ErrNoReference        = errors.New("product has neither url nor item code")
	ErrIdentifierNotFound = errors.New("item identifier not found")
	ErrNoRelay            = errors.New("no healthy relay endpoint available")
	ErrPageExhausted      = errors.New("page attempts exhausted")
	ErrFeedAbandoned      = errors.New("consecutive page failures with no reviews, feed abandoned")
)

// FetchError wraps errors that occur while fetching through the relay.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// RelayError is a structured error envelope returned by a relay endpoint.
type RelayError struct {
	Endpoint string
	Code     string
	Message  string
}

func (e *RelayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay error from %s: %s - %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("relay error from %s: %s", e.Endpoint, e.Code)
}

// ParseError wraps errors that occur while extracting data from markup.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SinkError wraps errors from a result sink backend.
type SinkError struct {
	Backend string
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error (%s): %v", e.Backend, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
