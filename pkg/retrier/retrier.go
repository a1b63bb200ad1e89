package retrier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/syncdispatch/pkg/executor"
	"github.com/bft-labs/syncdispatch/pkg/log"
)

// AttemptFunc performs one attempt of the outbound operation and returns its
// result, or an error to be classified and possibly retried.
type AttemptFunc[R any] func(ctx context.Context) (R, error)

// CompletionFunc is invoked exactly once, with the final result on success or
// the last error once retries are exhausted or the error was permanent.
type CompletionFunc[R any] func(result R, err error)

// OwningQueue lets a RetryingRequest remove itself from a parent collection
// once it reaches a terminal state, mirroring how a replicator tracks its
// outstanding requests without the dispatch core depending on a concrete
// collection type.
type OwningQueue[R any] interface {
	Remove(req *RetryingRequest[R])
}

// Config configures retry behavior for a RetryingRequest.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt. Total
	// attempts made is MaxRetries+1.
	MaxRetries int

	// BaseRetryDelay is multiplied by 2^(retryCount-1) to compute the delay
	// before each retry.
	BaseRetryDelay time.Duration

	// Classifier decides whether an attempt's error is transient (worth
	// retrying) or permanent.
	Classifier Classifier

	// Logger receives structured logs for attempts, retries, and terminal
	// outcomes. Defaults to a no-op logger.
	Logger log.Logger

	// OnRetry, if set, is invoked each time a transient failure is scheduled
	// for another attempt. It fires once per actual retry, never for
	// terminal failures, letting callers count retries distinctly from
	// successes and exhaustion.
	OnRetry func(retryCount int, delay time.Duration, err error)
}

// RetryingRequest dispatches a single outbound operation, retrying transient
// failures with exponential backoff until MaxRetries is exhausted, a
// permanent error is classified, or the request executor shuts down.
//
// A RetryingRequest is used once: call Submit to start it, and rely on the
// completion callback for the outcome. It is safe to call Cancel and Await
// concurrently with an in-flight attempt.
type RetryingRequest[R any] struct {
	requestExecutor executor.RequestExecutor
	workExecutor    executor.ScheduledExecutor
	attempt         AttemptFunc[R]
	onCompletion    CompletionFunc[R]
	preCompletion   CompletionFunc[R]
	cfg             Config
	owningQueue     OwningQueue[R]

	mu         sync.Mutex
	retryCount int
	retryTask  executor.ScheduledTask
	pending    chan executor.RequestHandle

	completed atomic.Bool
}

// Option configures optional RetryingRequest behavior.
type Option[R any] func(*RetryingRequest[R])

// WithPreCompletion sets a callback invoked with each attempt's raw outcome
// before the retry decision is made, mirroring an onPreCompletion hook used
// for response-body buffering ahead of the terminal callback.
func WithPreCompletion[R any](fn CompletionFunc[R]) Option[R] {
	return func(r *RetryingRequest[R]) { r.preCompletion = fn }
}

// WithOwningQueue registers a queue that the request removes itself from on
// terminal completion.
func WithOwningQueue[R any](q OwningQueue[R]) Option[R] {
	return func(r *RetryingRequest[R]) { r.owningQueue = q }
}

// New creates a RetryingRequest. requestExecutor must have more than one
// worker: a single-worker pool would deadlock the retry loop against
// itself.
func New[R any](
	requestExecutor executor.RequestExecutor,
	workExecutor executor.ScheduledExecutor,
	cfg Config,
	attempt AttemptFunc[R],
	onCompletion CompletionFunc[R],
	opts ...Option[R],
) *RetryingRequest[R] {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	r := &RetryingRequest[R]{
		requestExecutor: requestExecutor,
		workExecutor:    workExecutor,
		attempt:         attempt,
		onCompletion:    onCompletion,
		cfg:             cfg,
		pending:         make(chan executor.RequestHandle, cfg.MaxRetries+1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit dispatches the next attempt (the initial attempt, or a retry) to
// the request executor. compressed indicates the outbound body should be
// sent gzip-compressed; it is threaded through to AttemptFunc via ctx.
func (r *RetryingRequest[R]) Submit(ctx context.Context, compressed bool) {
	if compressed {
		ctx = withCompressed(ctx)
	}
	r.submit(ctx)
}

func (r *RetryingRequest[R]) submit(ctx context.Context) {
	handle, err := r.requestExecutor.Submit(func() {
		result, attemptErr := r.attempt(ctx)
		if r.preCompletion != nil {
			r.preCompletion(result, attemptErr)
		}
		r.onAttemptFinished(ctx, result, attemptErr)
	})
	if err != nil {
		var zero R
		r.complete(zero, fmt.Errorf("%w: %w", ErrExecutorShutdown, err))
		return
	}

	select {
	case r.pending <- handle:
	default:
		// Pending queue is sized for MaxRetries+1 attempts; this can only
		// happen if Submit is called more times than the retry loop does.
	}
}

func (r *RetryingRequest[R]) onAttemptFinished(ctx context.Context, result R, attemptErr error) {
	if attemptErr == nil {
		r.complete(result, nil)
		return
	}

	if r.cfg.Classifier == nil || !r.cfg.Classifier.IsTransient(attemptErr) {
		r.complete(result, attemptErr)
		return
	}

	r.mu.Lock()
	if r.retryCount >= r.cfg.MaxRetries {
		r.mu.Unlock()
		r.complete(result, fmt.Errorf("%w: %w", ErrRetryExhausted, attemptErr))
		return
	}

	if r.requestExecutor.IsShutdown() {
		r.mu.Unlock()
		r.complete(result, fmt.Errorf("%w: %w", ErrExecutorShutdown, attemptErr))
		return
	}

	r.retryCount++
	retryCount := r.retryCount
	delay := r.cfg.BaseRetryDelay * time.Duration(int64(1)<<uint(retryCount-1))
	r.retryTask = r.workExecutor.Schedule(delay, func() {
		r.submit(ctx)
	})
	r.mu.Unlock()

	if r.cfg.OnRetry != nil {
		r.cfg.OnRetry(retryCount, delay, attemptErr)
	}

	r.cfg.Logger.Warn("retrying attempt",
		log.Int("retry_count", retryCount),
		log.Duration("delay", delay),
		log.Err(attemptErr),
	)
}

// complete latches the terminal outcome and invokes the completion callback
// exactly once, regardless of how many attempts are racing.
func (r *RetryingRequest[R]) complete(result R, err error) {
	if !r.completed.CompareAndSwap(false, true) {
		return
	}
	if err != nil {
		r.cfg.Logger.Error("request failed", log.Err(err))
	} else {
		r.cfg.Logger.Debug("request completed")
	}
	r.onCompletion(result, err)
	if r.owningQueue != nil {
		r.owningQueue.Remove(r)
	}
}

// Cancel prevents a scheduled retry from running. It never interrupts an
// attempt already running on the request executor, and it never causes the
// completion callback to fire with a cancellation error: an attempt in
// flight at cancellation time still delivers its outcome to the callback,
// while a retry cancelled before it ran produces no callback at all.
// Cancel always returns false.
func (r *RetryingRequest[R]) Cancel() bool {
	r.mu.Lock()
	task := r.retryTask
	r.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
	return false
}

// IsDone reports whether the request has reached a terminal outcome.
func (r *RetryingRequest[R]) IsDone() bool {
	return r.completed.Load()
}

// Await blocks until the request reaches a terminal outcome, draining
// pending attempt handles as they complete. The result is surfaced
// exclusively through the completion callback, never through Await's
// return.
func (r *RetryingRequest[R]) Await() {
	for {
		if r.completed.Load() {
			return
		}
		r.mu.Lock()
		rc := r.retryCount
		r.mu.Unlock()
		if rc > r.cfg.MaxRetries || r.requestExecutor.IsShutdown() {
			return
		}
		handle, ok := <-r.pending
		if !ok {
			return
		}
		handle.Await()
	}
}

type compressedKey struct{}

func withCompressed(ctx context.Context) context.Context {
	return context.WithValue(ctx, compressedKey{}, true)
}

// Compressed reports whether ctx was marked for gzip-compressed submission
// by Submit.
func Compressed(ctx context.Context) bool {
	v, _ := ctx.Value(compressedKey{}).(bool)
	return v
}
