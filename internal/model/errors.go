package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNotFound is returned by repository operations targeting a row that
// does not exist.
var ErrNotFound = errors.New("not found")

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ScrapeError marks a failure attributable to scraping one company: a parse
// failure, a missing board/tenant, or exhausted retries against an ATS or a
// rendered page. The controller records it and continues with the next company.
type ScrapeError struct {
	Op  string // e.g. "greenhouse", "workday", "render"
	Err error
}

func (e *ScrapeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError wraps err as a classified scrape failure.
func NewScrapeError(op string, err error) *ScrapeError {
	return &ScrapeError{Op: op, Err: err}
}

// IsTransient reports whether err is a transient network failure worth
// retrying: HTTP 429/5xx, timeouts, and connection-level errors.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// IsScrapeFailure reports whether err is classified for the scrape recovery
// policy: a ScrapeError, or any transient network failure.
func IsScrapeFailure(err error) bool {
	if err == nil {
		return false
	}
	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) {
		return true
	}
	return IsTransient(err)
}
