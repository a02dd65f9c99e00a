// Package metrics defines the prometheus counters and histograms shared by
// the store backends, wrappers, and readers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "obspec_http_requests_total",
		Help: "HTTP requests issued by httpstore, by method and status code",
	},
	[]string{"method", "code"},
)

var CacheHitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "obspec_cache_hits_total",
		Help: "Whole-object cache hits by store name",
	},
	[]string{"store"},
)

var CacheMissesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "obspec_cache_misses_total",
		Help: "Whole-object cache misses by store name",
	},
	[]string{"store"},
)

var CacheEvictionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "obspec_cache_evictions_total",
		Help: "Whole-object cache LRU evictions by store name",
	},
	[]string{"store"},
)

var CacheSizeBytes = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "obspec_cache_size_bytes",
		Help: "Current whole-object cache occupancy in bytes",
	},
	[]string{"store"},
)

var BlockCacheEvictionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "obspec_block_cache_evictions_total",
		Help: "Block reader cache evictions",
	},
	[]string{"path"},
)

var SplitPartsHistogram = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "obspec_split_parts",
		Help:    "Number of parts a splitting wrapper issued for a single get",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	},
)

var RequestLatencyHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "obspec_request_latency_seconds",
		Help:    "Store call latency by method",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
	},
	[]string{"method"},
)
