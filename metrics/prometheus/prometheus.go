// Package prometheus provides a Prometheus-backed metrics.Collector for
// httpqueue, plus an EventListener that feeds it from the dispatch
// pipeline's lifecycle events. This package is optional and only imported
// when Prometheus metrics are needed.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sandrolain/httpqueue/metrics"
)

// Collector implements metrics.Collector for Prometheus.
type Collector struct {
	queued          *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLookupDur  *prometheus.HistogramVec
	networkAttempts *prometheus.CounterVec
	networkDur      *prometheus.HistogramVec
	coalesced       prometheus.Counter
	finished        *prometheus.CounterVec
	finishedDur     *prometheus.HistogramVec
}

// CollectorConfig configures the Prometheus collector.
type CollectorConfig struct {
	// Registry is the Prometheus registry to use. If nil, uses
	// prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace for metrics (default "httpqueue").
	Namespace string

	// Subsystem for metrics (optional).
	Subsystem string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels
}

// NewCollector creates a Prometheus collector with default registry and
// configuration.
func NewCollector() *Collector {
	return NewCollectorWithConfig(CollectorConfig{})
}

// NewCollectorWithRegistry creates a Prometheus collector registered on reg.
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	return NewCollectorWithConfig(CollectorConfig{Registry: reg})
}

// NewCollectorWithConfig creates a Prometheus collector with custom
// configuration.
func NewCollectorWithConfig(config CollectorConfig) *Collector {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "httpqueue"
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		queued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name: "requests_queued_total", Help: "Total number of requests admitted into the queue",
				ConstLabels: config.ConstLabels,
			},
			[]string{"route"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name: "cache_lookups_total", Help: "Total number of cache-dispatcher lookups",
				ConstLabels: config.ConstLabels,
			},
			[]string{"result"},
		),
		cacheLookupDur: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name:        "cache_lookup_duration_seconds",
				Help:        "Duration of cache-dispatcher lookups in seconds",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1},
				ConstLabels: config.ConstLabels,
			},
			[]string{"result"},
		),
		networkAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name: "network_attempts_total", Help: "Total number of network dispatcher attempts",
				ConstLabels: config.ConstLabels,
			},
			[]string{"outcome", "status_code"},
		),
		networkDur: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name:        "network_attempt_duration_seconds",
				Help:        "Duration of a single network attempt in seconds",
				Buckets:     []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30},
				ConstLabels: config.ConstLabels,
			},
			[]string{"outcome"},
		),
		coalesced: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name: "requests_coalesced_total", Help: "Total number of requests that joined an in-flight leader instead of dispatching",
				ConstLabels: config.ConstLabels,
			},
		),
		finished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name: "requests_finished_total", Help: "Total number of requests that left the pipeline",
				ConstLabels: config.ConstLabels,
			},
			[]string{"state"},
		),
		finishedDur: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace, Subsystem: config.Subsystem,
				Name:        "request_total_duration_seconds",
				Help:        "End-to-end duration from queued to finished in seconds",
				Buckets:     []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
				ConstLabels: config.ConstLabels,
			},
			[]string{"state"},
		),
	}
}

func (c *Collector) RecordQueued(route string) {
	c.queued.WithLabelValues(route).Inc()
}

func (c *Collector) RecordCacheLookup(result string, duration time.Duration) {
	c.cacheLookups.WithLabelValues(result).Inc()
	c.cacheLookupDur.WithLabelValues(result).Observe(duration.Seconds())
}

func (c *Collector) RecordNetworkAttempt(outcome string, statusCode int, duration time.Duration) {
	code := ""
	if statusCode != 0 {
		code = strconv.Itoa(statusCode)
	}
	c.networkAttempts.WithLabelValues(outcome, code).Inc()
	c.networkDur.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (c *Collector) RecordCoalesced() {
	c.coalesced.Inc()
}

func (c *Collector) RecordFinished(state string, totalDuration time.Duration) {
	c.finished.WithLabelValues(state).Inc()
	c.finishedDur.WithLabelValues(state).Observe(totalDuration.Seconds())
}

var _ metrics.Collector = (*Collector)(nil)
