package executor

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a RequestExecutor with a token-bucket throttle, the
// in-process analogue of a resource gate: once the bucket is empty, Submit
// blocks the calling goroutine until a token is available rather than
// flooding the underlying executor.
type RateLimited struct {
	next    RequestExecutor
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter allowing rps requests per second
// and a burst of burst requests.
func NewRateLimited(next RequestExecutor, rps float64, burst int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Submit waits for a token, then delegates to the wrapped executor.
func (r *RateLimited) Submit(task func()) (RequestHandle, error) {
	if err := r.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}
	return r.next.Submit(task)
}

// Shutdown delegates to the wrapped executor.
func (r *RateLimited) Shutdown() { r.next.Shutdown() }

// IsShutdown delegates to the wrapped executor.
func (r *RateLimited) IsShutdown() bool { return r.next.IsShutdown() }
