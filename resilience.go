package httpqueue

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// ResilientStack wraps an HTTPStack with failsafe-go policies layered
// outside the pipeline's own per-request RetryPolicy (spec.md §4.5 governs
// per-request retries; this is an additional, optional, queue-wide layer
// for cross-request protection like circuit breaking).
type ResilientStack struct {
	Stack          HTTPStack
	CircuitBreaker circuitbreaker.CircuitBreaker[*NetworkResponse]
}

// CircuitBreakerBuilder returns a pre-configured circuit breaker builder
// that opens on transport errors or 5xx responses. Sensible defaults: five
// consecutive failures to open, two consecutive successes to close again,
// 60s before probing half-open.
func CircuitBreakerBuilder() circuitbreaker.Builder[*NetworkResponse] {
	return circuitbreaker.NewBuilder[*NetworkResponse]().
		HandleIf(func(r *NetworkResponse, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

// Execute runs req through the wrapped stack, routed through the circuit
// breaker when one is configured.
func (r ResilientStack) Execute(ctx context.Context, req *NetworkRequest) (*NetworkResponse, error) {
	if r.CircuitBreaker == nil {
		return r.Stack.Execute(ctx, req)
	}
	return failsafe.Get(func() (*NetworkResponse, error) {
		return r.Stack.Execute(ctx, req)
	}, r.CircuitBreaker)
}
