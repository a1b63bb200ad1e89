package transport

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker wrapping a Transport.
type BreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// ConsecutiveFailures is the number of consecutive failed attempts
	// that trips the breaker open.
	ConsecutiveFailures uint32

	// OpenTimeout is how long the breaker stays open before allowing a
	// single probe request through (half-open).
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns sensible defaults: trip after 5 consecutive
// failures, stay open for 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{Name: name, ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// Breaker wraps a Transport with a circuit breaker so that a downstream
// outage fails attempts immediately instead of feeding the retrier's
// exponential backoff loop with attempts it knows will fail.
type Breaker struct {
	next    Transport
	breaker *gobreaker.CircuitBreaker[*Response]
}

// NewBreaker wraps next with a circuit breaker configured by cfg.
func NewBreaker(next Transport, cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*Response](settings),
	}
}

// Do executes req through the breaker. When the breaker is open, it returns
// gobreaker.ErrOpenState without calling next — that error is permanent (it
// does not implement RetryableError), so a RetryingRequest surfaces it to
// the caller instead of burning through its retry budget against a service
// that is known to be down.
func (b *Breaker) Do(ctx context.Context, req Request) (*Response, error) {
	return b.breaker.Execute(func() (*Response, error) {
		return b.next.Do(ctx, req)
	})
}

// IsShutdown delegates to the wrapped transport.
func (b *Breaker) IsShutdown() bool { return b.next.IsShutdown() }

// State reports the breaker's current state, for diagnostics/logging.
func (b *Breaker) State() gobreaker.State { return b.breaker.State() }
