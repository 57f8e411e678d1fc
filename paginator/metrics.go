package paginator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_paginator_fetches_total",
			Help: "Requests to text hosts by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: head, sample, range
	)

	fetchedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storia_paginator_fetched_bytes_total",
		Help: "Bytes of book text downloaded by range fetches",
	})
)
