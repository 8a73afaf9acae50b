// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medx_ingest_requests_total",
			Help: "Total ingest requests, labeled by HTTP outcome.",
		},
		[]string{"status"},
	)
	RenderFetchAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medx_render_fetch_attempts_total",
			Help: "Total attempts against the render dependency, including retries.",
		},
	)
	RenderFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medx_render_direct_fallbacks_total",
			Help: "Direct-fetch fallbacks taken after a render 502/503/504.",
		},
	)
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medx_render_cache_hits_total",
			Help: "Render-HTML cache hits.",
		},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medx_render_cache_misses_total",
			Help: "Render-HTML cache misses.",
		},
	)
	ExtractDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medx_extract_duration_seconds",
			Help:    "Duration of the harvest/merge stage per request.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(IngestRequests)
	prometheus.MustRegister(RenderFetchAttempts)
	prometheus.MustRegister(RenderFallbacks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ExtractDuration)
}
