// Package retrier dispatches a single outbound operation and retries it on
// transient failure with exponential backoff, tracking the in-flight attempt
// so the caller can wait for or cancel it.
//
// A RetryingRequest runs its first attempt on a request executor with more
// than one worker (it blocks that worker while awaiting the attempt's
// outcome and, on retry, resubmits from a scheduled executor's goroutine).
// Exactly one of the completion callback's invocations happens per request,
// latched with a compare-and-swap so a retry racing a late in-flight result
// can never double-fire it.
//
// # Usage
//
//	r := retrier.New(requestExec, scheduledExec, retrier.Config{
//	    MaxRetries:      3,
//	    BaseRetryDelay:  4 * time.Second,
//	    Classifier:      retrier.ClassifierFunc(transport.IsTransient),
//	}, attemptFunc, func(result domain.PushResult, err error) {
//	    // called exactly once, success or final failure
//	})
//	r.Submit(ctx, false)
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package retrier

// Version is the current version of the retrier module.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version that is compatible with this version.
const MinCompatibleVersion = "1.0.0"
