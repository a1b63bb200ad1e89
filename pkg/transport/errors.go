package transport

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidMethod is returned at construction time when a MultipartUpload
// request uses a method other than PUT or POST.
var ErrInvalidMethod = errors.New("transport: multipart upload requires PUT or POST")

// ErrInvalidURL is returned at construction time when a request URL fails to
// parse.
var ErrInvalidURL = errors.New("transport: invalid URL")

// StatusError wraps a non-2xx HTTP response so the retrier's classifier can
// inspect the status code without the transport and retrier packages
// depending on each other's concrete types.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: unexpected status %d", e.StatusCode)
}

// Retryable reports whether the status is worth retrying: the 5xx family
// plus request-timeout (408). It satisfies the RetryableError pattern so
// classification composes with other retryable errors via errors.As.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 408 || e.StatusCode >= 500
}

// RetryableError is implemented by errors that know whether they are worth
// retrying. IsTransient checks for it before falling back to network-level
// heuristics.
type RetryableError interface {
	error
	Retryable() bool
}

// IsTransient classifies err per the dispatch core's retry policy:
// transient iff it carries a retryable status (*StatusError with 5xx/408),
// or it is an I/O-level failure (connection refused, reset, timeout, DNS)
// with no HTTP response at all. Anything else — 4xx other than 408,
// malformed URLs, unsupported methods — is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, ErrInvalidMethod) || errors.Is(err, ErrInvalidURL) {
		return false
	}

	return false
}
