// Package metrics exposes Prometheus counters for worker runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"webhookworker/internal/models"
)

const namespace = "webhookworker"

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder collects run metrics on its own registry.
type Recorder struct {
	registry    *prometheus.Registry
	fetched     prometheus.Counter
	valid       prometheus.Counter
	discarded   *prometheus.CounterVec
	selected    prometheus.Gauge
	runDuration prometheus.Histogram
	runs        *prometheus.CounterVec
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Records received from the source.",
		}),
		valid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_valid_total",
			Help:      "Records that passed validation.",
		}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_discarded_total",
			Help:      "Records dropped, by pipeline stage.",
		}, []string{"stage"}),
		selected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_selected",
			Help:      "Records kept by the last top-N selection.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a worker run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Worker runs, by outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(r.fetched, r.valid, r.discarded, r.selected, r.runDuration, r.runs)

	// pre-create label values so they export as zero
	r.discarded.WithLabelValues(string(models.StageValidate))
	r.discarded.WithLabelValues(string(models.StageTransform))
	r.runs.WithLabelValues(OutcomeSuccess)
	r.runs.WithLabelValues(OutcomeFailure)

	return r
}

// ObservePipeline records the counts of a pipeline run.
func (r *Recorder) ObservePipeline(stats models.Stats, discards []models.Discard) {
	r.fetched.Add(float64(stats.Total))
	r.valid.Add(float64(stats.ValidCount))
	r.selected.Set(float64(stats.SelectedCount))

	for _, d := range discards {
		r.discarded.WithLabelValues(string(d.Stage)).Inc()
	}
}

// ObserveRun records the outcome and duration of a whole run.
func (r *Recorder) ObserveRun(outcome string, duration time.Duration) {
	r.runs.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// WriteTextfile writes all metrics in the Prometheus text format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
