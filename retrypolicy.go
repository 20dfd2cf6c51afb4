package httpqueue

import (
	"sync"
	"time"
)

// Default retry policy parameters, per spec.md §4.5.
const (
	DefaultTimeout          = 2500 * time.Millisecond
	DefaultMaxRetries       = 1
	DefaultBackoffMultiplier = 1.0
)

// RetryPolicy is a stateful object owned by a single Request, tracking the
// current per-attempt timeout and retry count across a network dispatcher's
// retry loop (spec.md §4.5). It is not safe for use by more than one
// in-flight attempt at a time, matching "retries loop back to the HTTP
// invocation suspension point within the same network worker" (spec.md §5).
type RetryPolicy struct {
	mu                sync.Mutex
	currentTimeout    time.Duration
	currentRetryCount int
	backoffMultiplier float64
	maxRetries        int
}

// NewRetryPolicy returns a RetryPolicy with the spec's default rule:
// 2500ms initial timeout, one retry, backoff multiplier 1.0 (the timeout
// doubles on each retry).
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		currentTimeout:    DefaultTimeout,
		backoffMultiplier: DefaultBackoffMultiplier,
		maxRetries:        DefaultMaxRetries,
	}
}

// NewRetryPolicyWithBackoff returns a RetryPolicy with caller-supplied
// parameters.
func NewRetryPolicyWithBackoff(initialTimeout time.Duration, maxRetries int, backoffMultiplier float64) *RetryPolicy {
	return &RetryPolicy{
		currentTimeout:    initialTimeout,
		backoffMultiplier: backoffMultiplier,
		maxRetries:        maxRetries,
	}
}

// CurrentTimeout returns the timeout to use for the next HTTP attempt.
func (r *RetryPolicy) CurrentTimeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTimeout
}

// RetryCount returns the number of retries consumed so far.
func (r *RetryPolicy) RetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRetryCount
}

// Retry records an attempt at retrying err. It grows the current timeout by
// the configured backoff multiplier and increments the retry count. If the
// retry budget is exhausted, it returns err unchanged so the caller
// surfaces the original error; otherwise it returns nil, signaling the
// caller should loop back to the HTTP invocation.
func (r *RetryPolicy) Retry(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentRetryCount++
	r.currentTimeout += time.Duration(float64(r.currentTimeout) * r.backoffMultiplier)
	if r.currentRetryCount > r.maxRetries {
		return err
	}
	return nil
}
