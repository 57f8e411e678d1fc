package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by key tier (book, page_range, page, ...).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"},
	)

	// CacheMisses tracks lookups that found nothing or an expired entry.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"tier"},
	)
)
