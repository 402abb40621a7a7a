package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache reads that found an entry, by backend and namespace
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footy_cache_hits_total",
			Help: "Total number of cache reads that found an entry",
		},
		[]string{"backend", "namespace"}, // "sqlite"|"redis", "raw"|"derived"
	)

	// CacheMisses tracks cache reads without an entry
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footy_cache_misses_total",
			Help: "Total number of cache reads without an entry",
		},
		[]string{"backend"},
	)

	// CacheWrites tracks entries written
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footy_cache_writes_total",
			Help: "Total number of cache entries written",
		},
		[]string{"backend", "namespace"},
	)

	// CacheFlushed tracks entries removed by flush operations
	CacheFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footy_cache_flushed_total",
			Help: "Total number of cache entries removed by flush",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footy_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "flush", "stats"
	)
)

func namespace(k Key) string {
	if k.IsDerived() {
		return "derived"
	}
	return "raw"
}
