// Package apierr classifies upstream API failures into machine-checkable
// reason codes. Classification happens at the HTTP status level so callers
// never have to inspect error text.
package apierr

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Reason is a machine-checkable failure category.
type Reason int

const (
	// ReasonTransient covers timeouts, connection failures and 5xx
	// responses. Retried with soft backoff.
	ReasonTransient Reason = iota
	// ReasonRateLimited covers HTTP 429 and provider throttle responses.
	// Retried with full exponential backoff and a weight-window reset.
	ReasonRateLimited
	// ReasonNotFound covers 4xx responses other than throttling. Not
	// retried: the request will not heal on its own.
	ReasonNotFound
)

func (r Reason) String() string {
	switch r {
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// Error carries the reason code alongside the endpoint that produced it.
type Error struct {
	Reason   Reason
	Endpoint string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Endpoint, e.Reason, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// FromStatus builds an Error from an HTTP response status.
func FromStatus(endpoint string, status int) *Error {
	reason := ReasonTransient
	switch {
	case status == http.StatusTooManyRequests || status == 418:
		// 418 is the Binance IP auto-ban status; treat it as throttling.
		reason = ReasonRateLimited
	case status >= 400 && status < 500:
		reason = ReasonNotFound
	}
	return &Error{Reason: reason, Endpoint: endpoint, Status: status}
}

// Wrap builds a transport-level Error around err.
func Wrap(endpoint string, err error) *Error {
	return &Error{Reason: ReasonTransient, Endpoint: endpoint, Err: err}
}

// ReasonOf extracts the reason code from err. Plain errors, including net
// timeouts, classify as transient.
func ReasonOf(err error) Reason {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Reason
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonTransient
	}
	return ReasonTransient
}

// IsRateLimited reports whether err carries the rate-limited reason.
func IsRateLimited(err error) bool { return ReasonOf(err) == ReasonRateLimited }

// Retryable reports whether the executor should attempt err again.
func Retryable(err error) bool { return ReasonOf(err) != ReasonNotFound }
