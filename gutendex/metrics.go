package gutendex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_gutendex_requests_total",
			Help: "Gutendex metadata requests by operation and outcome",
		},
		[]string{"op", "outcome"}, // outcome: ok, error, status, malformed
	)

	upstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storia_gutendex_request_duration_seconds",
			Help:    "Latency of Gutendex metadata requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
