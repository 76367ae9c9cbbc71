package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/web-emcee/emcee/hls"
)

var (
	// probeDuration tracks how long media analysis takes, cache hits included
	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "emcee_probe_duration_seconds",
		Help:    "Duration of media probe operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 14), // 1ms to ~16s
	})

	// segmentsStarted counts transcoder processes launched for segments
	segmentsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emcee_segments_started_total",
		Help: "Total segment transcodes started",
	})

	// segmentsCompleted counts segments streamed to the end
	segmentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emcee_segments_completed_total",
		Help: "Total segment transcodes streamed to completion",
	})

	// segmentsFailed counts segments whose transcoder died on its own
	segmentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emcee_segments_failed_total",
		Help: "Total segment transcodes that failed",
	})
)

func registerSessionsGauge(sessions *hls.SessionManager) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "emcee_active_sessions",
		Help: "Continuous transcode sessions currently tracked",
	}, func() float64 {
		return float64(sessions.Count())
	})
}
