package metrics

import (
	"context"
	"errors"
	"time"

	"kuanb/gosm-matcher/routing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Match outcomes used as the "result" label
const (
	ResultMatched   = "matched"
	ResultMismatch  = "mismatch"
	ResultUnmatched = "unmatched"
	ResultCanceled  = "canceled"
	ResultError     = "error"
)

var (
	matchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapmatch_trajectories_total",
		Help: "Trajectories processed by outcome",
	}, []string{"result"})

	matchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapmatch_match_duration_seconds",
		Help:    "Time spent matching and projecting one trajectory",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	observationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mapmatch_observations_total",
		Help: "Observations received for matching",
	})

	observationsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mapmatch_observations_skipped_total",
		Help: "Observations left out of the lattice",
	})

	partitionsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mapmatch_partitions_written_total",
		Help: "Batch partitions flushed to the export sink",
	})
)

// Classify maps a matcher error to a result label
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultMatched
	case errors.Is(err, routing.ErrProjectionMismatch):
		return ResultMismatch
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	case errors.Is(err, routing.ErrNoMatch),
		errors.Is(err, routing.ErrNoCandidate),
		errors.Is(err, routing.ErrNoFeasiblePath),
		errors.Is(err, routing.ErrEmptyTrajectory),
		errors.Is(err, routing.ErrMissingTimestamps):
		return ResultUnmatched
	default:
		return ResultError
	}
}

// ObserveMatch records one matching call
func ObserveMatch(result string, elapsed time.Duration, observations, skipped int) {
	matchTotal.WithLabelValues(result).Inc()
	matchDuration.Observe(elapsed.Seconds())
	observationsTotal.Add(float64(observations))
	observationsSkipped.Add(float64(skipped))
}

func PartitionWritten() {
	partitionsWritten.Inc()
}
