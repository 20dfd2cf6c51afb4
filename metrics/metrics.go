// Package metrics defines a generic interface for collecting dispatch
// pipeline metrics, implementable by any monitoring backend (Prometheus,
// OpenTelemetry, Datadog, etc.) without the core httpqueue package taking a
// dependency on any of them.
package metrics

import "time"

// Collector receives measurements from the request dispatch pipeline.
// Implementations must be safe for concurrent use: every method can be
// called from either the cache dispatcher goroutine or any network
// dispatcher worker goroutine.
type Collector interface {
	// RecordQueued is called once when a request is admitted into the queue,
	// routed to either the cache or network queue.
	RecordQueued(route string)

	// RecordCacheLookup records a single cache-dispatcher lookup.
	// result is one of "hit", "stale", "miss".
	RecordCacheLookup(result string, duration time.Duration)

	// RecordNetworkAttempt records one HTTP attempt made by the network
	// dispatcher, including retried attempts.
	// outcome is one of "success", "retry", "error".
	RecordNetworkAttempt(outcome string, statusCode int, duration time.Duration)

	// RecordCoalesced is called when a request joins an in-flight request as
	// a follower instead of triggering its own network fetch.
	RecordCoalesced()

	// RecordFinished is called exactly once per request, when it leaves the
	// pipeline. state is one of "delivered", "failed", "canceled".
	RecordFinished(state string, totalDuration time.Duration)
}

// NoOpCollector implements Collector with no-op operations, used as the
// default when metrics are not enabled.
type NoOpCollector struct{}

func (NoOpCollector) RecordQueued(route string)                                            {}
func (NoOpCollector) RecordCacheLookup(result string, duration time.Duration)               {}
func (NoOpCollector) RecordNetworkAttempt(outcome string, statusCode int, d time.Duration)  {}
func (NoOpCollector) RecordCoalesced()                                                      {}
func (NoOpCollector) RecordFinished(state string, totalDuration time.Duration)              {}

// DefaultCollector is the default no-op collector used when metrics are not
// configured.
var DefaultCollector Collector = NoOpCollector{}

var _ Collector = NoOpCollector{}
