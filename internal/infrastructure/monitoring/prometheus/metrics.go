// Package prometheus defines the operational metrics emitted by the
// query-understanding core and their registration against a Prometheus
// registry.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates every collector the core emits. A single instance is
// constructed at startup and injected into the pipeline, ranker, cache, and
// HTTP layers.
type Metrics struct {
	// Pipeline stages.
	StageDuration  *prometheus.HistogramVec // stage: normalize|deterministic|coverage|probabilistic|merge
	EntitiesFound  *prometheus.HistogramVec // source: pattern|gazetteer|proper_noun|probabilistic
	GateDecisions  *prometheus.CounterVec   // decision: invoked|skipped_coverage|skipped_high_value|skipped_stopwords
	ExtractorFails *prometheus.CounterVec   // reason: timeout|bad_response|auth|quota|unavailable
	NoSignalTotal  prometheus.Counter

	// Ranking.
	RankDuration       prometheus.Histogram
	RankPoolSize       prometheus.Histogram
	RankDiversityDrops *prometheus.CounterVec // scope: table|document

	// Cache.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// HTTP.
	HTTPRequestsTotal   *prometheus.CounterVec // route, status
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics constructs and registers all collectors on reg. Passing a fresh
// registry in tests keeps collectors isolated between test cases.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cpms",
			Subsystem: "query",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"stage"}),
		EntitiesFound: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cpms",
			Subsystem: "query",
			Name:      "entities_found",
			Help:      "Entities retained per request, by source.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}, []string{"source"}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpms",
			Subsystem: "query",
			Name:      "probabilistic_gate_total",
			Help:      "Coverage-gate decisions for the probabilistic stage.",
		}, []string{"decision"}),
		ExtractorFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpms",
			Subsystem: "query",
			Name:      "probabilistic_failures_total",
			Help:      "Probabilistic extractor failures downgraded to empty results.",
		}, []string{"reason"}),
		NoSignalTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cpms",
			Subsystem: "query",
			Name:      "no_signal_total",
			Help:      "Requests that yielded neither entities nor candidates.",
		}),
		RankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cpms",
			Subsystem: "rank",
			Name:      "duration_seconds",
			Help:      "Wall time of a full ranking pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		RankPoolSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cpms",
			Subsystem: "rank",
			Name:      "pool_size",
			Help:      "Candidate-pool size per ranking request.",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000},
		}),
		RankDiversityDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpms",
			Subsystem: "rank",
			Name:      "diversity_drops_total",
			Help:      "Candidates removed by diversification caps.",
		}, []string{"scope"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cpms",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Extraction-cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cpms",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Extraction-cache misses.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpms",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cpms",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.StageDuration, m.EntitiesFound, m.GateDecisions, m.ExtractorFails,
		m.NoSignalTotal, m.RankDuration, m.RankPoolSize, m.RankDiversityDrops,
		m.CacheHits, m.CacheMisses, m.HTTPRequestsTotal, m.HTTPRequestDuration,
	)
	return m
}

// ObserveStage records one stage duration. Nil-safe so components can be
// constructed without metrics in tests.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordGate records one coverage-gate decision.
func (m *Metrics) RecordGate(decision string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(decision).Inc()
}

// RecordExtractorFailure records one downgraded probabilistic failure.
func (m *Metrics) RecordExtractorFailure(reason string) {
	if m == nil {
		return
	}
	m.ExtractorFails.WithLabelValues(reason).Inc()
}
