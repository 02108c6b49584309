// Package metrics provides internal Prometheus metrics for the
// conversation pipeline. This package is internal and should not be
// imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records pipeline metrics.
type Collector struct {
	turnsTotal         *prometheus.CounterVec
	turnDuration       prometheus.Histogram
	retrievalDuration  prometheus.Histogram
	retrievalChunks    prometheus.Histogram
	generationDuration prometheus.Histogram
	detectionsTotal    *prometheus.CounterVec
	ungroundedTotal    prometheus.Counter
}

// NewCollector registers pipeline metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns processed, by outcome.",
		}, []string{"status"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Knowledge-store retrieval latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_chunks",
			Help:      "Evidence chunks returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		generationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Language-model generation latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		detectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Disease detections by label.",
		}, []string{"label"}),
		ungroundedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ungrounded_answers_total",
			Help:      "Answers produced without knowledge-base evidence.",
		}),
	}
}

// ObserveTurn records one completed pipeline run.
func (c *Collector) ObserveTurn(status string, elapsed time.Duration) {
	c.turnsTotal.WithLabelValues(status).Inc()
	c.turnDuration.Observe(elapsed.Seconds())
}

// ObserveRetrieval records one retrieval attempt.
func (c *Collector) ObserveRetrieval(elapsed time.Duration, chunks int) {
	c.retrievalDuration.Observe(elapsed.Seconds())
	c.retrievalChunks.Observe(float64(chunks))
}

// ObserveGeneration records one generation call.
func (c *Collector) ObserveGeneration(elapsed time.Duration) {
	c.generationDuration.Observe(elapsed.Seconds())
}

// ObserveDetection records one detection result.
func (c *Collector) ObserveDetection(label string) {
	c.detectionsTotal.WithLabelValues(label).Inc()
}

// ObserveUngrounded records an answer generated without evidence.
func (c *Collector) ObserveUngrounded() {
	c.ungroundedTotal.Inc()
}
