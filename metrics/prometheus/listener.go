package prometheus

import (
	"sync"
	"time"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/metrics"
)

// EventListener bridges httpqueue.Event lifecycle notifications into a
// metrics.Collector, so a Queue can be instrumented without its core
// package depending on any metrics backend.
type EventListener struct {
	collector metrics.Collector

	mu           sync.Mutex
	queuedAt     map[*httpqueue.Request]time.Time
	cacheStart   map[*httpqueue.Request]time.Time
	attemptStart map[*httpqueue.Request]time.Time
}

// NewEventListener creates an EventListener feeding collector. If collector
// is nil, metrics.DefaultCollector is used.
func NewEventListener(collector metrics.Collector) *EventListener {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &EventListener{
		collector:    collector,
		queuedAt:     make(map[*httpqueue.Request]time.Time),
		cacheStart:   make(map[*httpqueue.Request]time.Time),
		attemptStart: make(map[*httpqueue.Request]time.Time),
	}
}

func (l *EventListener) OnEvent(e httpqueue.Event) {
	switch e.Kind {
	case httpqueue.EventQueued:
		route := "network"
		if e.Request.CachePolicy.ShouldCache {
			route = "cache"
		}
		l.collector.RecordQueued(route)
		l.mu.Lock()
		l.queuedAt[e.Request] = time.Now()
		l.mu.Unlock()

	case httpqueue.EventCacheLookupStarted:
		l.mu.Lock()
		l.cacheStart[e.Request] = time.Now()
		l.mu.Unlock()

	case httpqueue.EventCacheLookupFinished:
		l.mu.Lock()
		start, ok := l.cacheStart[e.Request]
		delete(l.cacheStart, e.Request)
		l.mu.Unlock()
		if !ok {
			return
		}
		result := "miss"
		if e.CacheHit {
			result = "hit"
		}
		l.collector.RecordCacheLookup(result, time.Since(start))

	case httpqueue.EventAwaitingLeader:
		l.collector.RecordCoalesced()

	case httpqueue.EventNetworkAttemptStarted:
		l.mu.Lock()
		l.attemptStart[e.Request] = time.Now()
		l.mu.Unlock()

	case httpqueue.EventNetworkAttemptFinished:
		l.mu.Lock()
		start, ok := l.attemptStart[e.Request]
		delete(l.attemptStart, e.Request)
		l.mu.Unlock()
		if !ok {
			return
		}
		outcome := "success"
		statusCode := 0
		if e.Err != nil {
			outcome = "error"
			if reqErr, ok := e.Err.(httpqueue.RequestError); ok {
				if resp := reqErr.Response(); resp != nil {
					statusCode = resp.StatusCode
				}
			}
		}
		l.collector.RecordNetworkAttempt(outcome, statusCode, time.Since(start))

	case httpqueue.EventFinished:
		l.mu.Lock()
		start, ok := l.queuedAt[e.Request]
		delete(l.queuedAt, e.Request)
		l.mu.Unlock()

		state := "delivered"
		switch {
		case e.Request.IsCanceled():
			state = "canceled"
		case e.Err != nil:
			state = "failed"
		}
		var dur time.Duration
		if ok {
			dur = time.Since(start)
		}
		l.collector.RecordFinished(state, dur)
	}
}

var _ httpqueue.EventListener = (*EventListener)(nil)
