package types

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageResult is the outcome of fetching one page through the relay
// collaborator. The relay answers in one of two shapes: passthrough (raw
// page markup in Body) or a structured JSON envelope, in which case Body
// holds the envelope's html field and RatItemID any pre-extracted item
// identifier.
type PageResult struct {
	// StatusCode is the HTTP status reported by the relay.
	StatusCode int

	// Body is the page markup.
	Body string

	// RatItemID is an item identifier pre-extracted by a structured relay,
	// empty in passthrough mode.
	RatItemID string

	// TargetURL is the upstream URL that was fetched.
	TargetURL string

	// FetchDuration is how long the fetch took.
	FetchDuration time.Duration

	// FetchedAt is when the response was received.
	FetchedAt time.Time

	doc *goquery.Document
}

// IsSuccess reports a 2xx status.
func (r *PageResult) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsServerError reports a 5xx status.
func (r *PageResult) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// IsTimeout reports whether the relay signalled an upstream timeout.
// HTTP 504 from the relay is treated as a timeout, not a generic 5xx.
func (r *PageResult) IsTimeout() bool {
	return r.StatusCode == 504
}

// Document returns the body parsed as a goquery document, lazily initialized.
func (r *PageResult) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	r.doc = doc
	return doc, nil
}
