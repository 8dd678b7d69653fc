// Package metrics exposes the Prometheus counters and call-duration
// histogram the fetch coordinator updates, following the teacher's
// sync.Once-guarded singleton-accessor pattern (observability/metrics/potso.go).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch tracks external call activity across all provider adapters.
type Fetch struct {
	calls        *prometheus.CounterVec
	retries      *prometheus.CounterVec
	failures     *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

var (
	fetchOnce     sync.Once
	fetchRegistry *Fetch
)

// FetchMetrics returns the lazily-initialised fetch coordinator metrics registry.
func FetchMetrics() *Fetch {
	fetchOnce.Do(func() {
		fetchRegistry = &Fetch{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "govanalytics",
				Subsystem: "fetch",
				Name:      "calls_total",
				Help:      "Count of provider adapter calls by source and call kind.",
			}, []string{"source", "kind"}),
			retries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "govanalytics",
				Subsystem: "fetch",
				Name:      "retries_total",
				Help:      "Count of retry attempts by source and call kind.",
			}, []string{"source", "kind"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "govanalytics",
				Subsystem: "fetch",
				Name:      "failures_total",
				Help:      "Count of exhausted (surfaced) failures by source, call kind, and error kind.",
			}, []string{"source", "kind", "error_kind"}),
			fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "govanalytics",
				Subsystem: "fetch",
				Name:      "fallbacks_total",
				Help:      "Count of fallback-chain advances by call kind, from source to source.",
			}, []string{"kind", "from_source", "to_source"}),
			cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "govanalytics",
				Subsystem: "fetch",
				Name:      "cache_hits_total",
				Help:      "Count of response cache hits by call kind.",
			}, []string{"kind"}),
			cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "govanalytics",
				Subsystem: "fetch",
				Name:      "cache_misses_total",
				Help:      "Count of response cache misses by call kind.",
			}, []string{"kind"}),
			callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "govanalytics",
				Subsystem: "fetch",
				Name:      "call_duration_seconds",
				Help:      "Observed provider adapter call latency by source and call kind.",
			}, []string{"source", "kind"}),
		}
		prometheus.MustRegister(
			fetchRegistry.calls,
			fetchRegistry.retries,
			fetchRegistry.failures,
			fetchRegistry.fallbacks,
			fetchRegistry.cacheHits,
			fetchRegistry.cacheMisses,
			fetchRegistry.callDuration,
		)
	})
	return fetchRegistry
}

func (f *Fetch) RecordCall(source, kind string, seconds float64) {
	if f == nil {
		return
	}
	f.calls.WithLabelValues(source, kind).Inc()
	f.callDuration.WithLabelValues(source, kind).Observe(seconds)
}

func (f *Fetch) RecordRetry(source, kind string) {
	if f == nil {
		return
	}
	f.retries.WithLabelValues(source, kind).Inc()
}

func (f *Fetch) RecordFailure(source, kind, errorKind string) {
	if f == nil {
		return
	}
	f.failures.WithLabelValues(source, kind, errorKind).Inc()
}

func (f *Fetch) RecordFallback(kind, fromSource, toSource string) {
	if f == nil {
		return
	}
	f.fallbacks.WithLabelValues(kind, fromSource, toSource).Inc()
}

func (f *Fetch) RecordCacheHit(kind string) {
	if f == nil {
		return
	}
	f.cacheHits.WithLabelValues(kind).Inc()
}

func (f *Fetch) RecordCacheMiss(kind string) {
	if f == nil {
		return
	}
	f.cacheMisses.WithLabelValues(kind).Inc()
}
