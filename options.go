package httpqueue

import (
	"log/slog"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// QueueOption configures a Queue at construction time. Use the With*
// functions below to build a slice of options, mirroring the teacher's
// TransportOption pattern.
type QueueOption func(*Queue)

// WithNetworkWorkers sets the size of the network dispatcher's worker pool
// (spec.md §4.4). Default is 4. Values less than 1 are clamped to 1.
func WithNetworkWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n < 1 {
			n = 1
		}
		q.networkWorkers = n
	}
}

// WithLogger replaces the logger stored on this Queue (by default the
// package-level logger). The Queue's dispatchers write no log records.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = l
	}
}

// WithExecutor overrides the Executor used to run delivery and error
// listener callbacks. Default is GoroutineExecutor.
func WithExecutor(exec Executor) QueueOption {
	return func(q *Queue) {
		q.executor = exec
	}
}

// WithEventListener registers a listener notified of every lifecycle event
// across every request the Queue dispatches.
func WithEventListener(l EventListener) QueueOption {
	return func(q *Queue) {
		q.eventListener = l
	}
}

// WithFinishedListener registers a listener notified once per request, when
// it leaves the pipeline for any terminal reason.
func WithFinishedListener(l FinishedListener) QueueOption {
	return func(q *Queue) {
		q.finishedListener = l
	}
}

// WithResilience wraps the HTTPStack's Execute calls with a failsafe-go
// circuit breaker, layered outside the queue's own per-request retry
// policy. See resilience.go and CircuitBreakerBuilder.
func WithResilience(cb circuitbreaker.CircuitBreaker[*NetworkResponse]) QueueOption {
	return func(q *Queue) {
		q.circuitBreaker = cb
	}
}
