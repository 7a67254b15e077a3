// Package metrics exposes kernel counters and latencies to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifescore_events_processed_total",
		Help: "Total number of life events appended, labelled by event type.",
	}, []string{"type"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifescore_events_rejected_total",
		Help: "Total number of event drafts rejected, labelled by reason.",
	}, []string{"reason"})

	EventsReversed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifescore_events_reversed_total",
		Help: "Total number of life events reversed.",
	})

	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifescore_compensations_total",
		Help: "Compensating actions applied during reversal, labelled by reference kind and outcome.",
	}, []string{"kind", "outcome"})

	ScoreRecomputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifescore_score_recomputations_total",
		Help: "Total number of score recomputations.",
	})

	ScoreCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifescore_score_cache_lookups_total",
		Help: "Score cache lookups, labelled by result (hit, miss, error).",
	}, []string{"result"})

	ScoreComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lifescore_score_compute_duration_ms",
		Help:    "Latency of a full score recomputation in milliseconds, store reads included.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	Purges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifescore_purges_total",
		Help: "Total number of bulk purges.",
	})
)
