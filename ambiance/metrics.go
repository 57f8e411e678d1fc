package ambiance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_audio_generations_total",
			Help: "Audio generation attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storia_audio_generation_duration_seconds",
		Help:    "Latency of successful ElevenLabs generations",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	})

	fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_audio_fallbacks_total",
			Help: "Fallback audio served, by which link of the chain answered",
		},
		[]string{"kind"}, // file, neutral, silence
	)

	musicCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_music_cache_requests_total",
			Help: "Page music cache lookups",
		},
		[]string{"result"},
	)

	analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storia_ambiance_analyses_total",
			Help: "Ambiance analyses by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	analyzerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storia_ambiance_analyzer_duration_seconds",
		Help:    "Run time of the external ambiance analyzer",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)
