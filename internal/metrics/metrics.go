package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScenesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sceneseek_scenes_detected_total",
		Help: "Total number of scene boundaries detected across all videos",
	})

	FramesEmbeddedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sceneseek_frames_embedded_total",
		Help: "Total number of representative frames embedded, by outcome",
	}, []string{"outcome"})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sceneseek_queries_total",
		Help: "Total number of retrieval queries, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sceneseek_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	ActiveEmbedWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sceneseek_active_embed_workers",
		Help: "Number of embedding workers currently busy",
	})
)
