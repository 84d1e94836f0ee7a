// Package metrics exports batch outcomes in the Prometheus text format so a
// node_exporter textfile collector can pick them up after each run.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/backmassage/posepipe/internal/batch"
)

const namespace = "posepipe"

// Recorder accumulates metrics over one process lifetime. In watch mode the
// counters keep growing across runs.
type Recorder struct {
	registry *prometheus.Registry

	itemsTotal    *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	batchDuration *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Work items finished, by stage and terminal status.",
		}, []string{"stage", "status"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent running the stage for one item.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
		batchDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of the most recent batch run.",
		}, []string{"stage"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_last_run_timestamp_seconds",
			Help:      "Unix time the most recent batch run finished.",
		}, []string{"stage"}),
	}

	r.registry.MustRegister(r.itemsTotal)
	r.registry.MustRegister(r.itemDuration)
	r.registry.MustRegister(r.batchDuration)
	r.registry.MustRegister(r.lastRun)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveReport adds a finalized report. Every status gets a series, zero
// or not, so dashboards see the full label set from the first run.
func (r *Recorder) ObserveReport(rep *batch.Report, elapsed time.Duration, finished time.Time) {
	for _, s := range batch.Statuses {
		r.itemsTotal.WithLabelValues(rep.Stage, string(s)).Add(float64(rep.Count(s)))
	}
	for _, res := range rep.Results {
		// Up-to-date and collision results never ran the stage.
		if res.Duration > 0 {
			r.itemDuration.WithLabelValues(rep.Stage).Observe(res.Duration.Seconds())
		}
	}
	r.batchDuration.WithLabelValues(rep.Stage).Set(elapsed.Seconds())
	r.lastRun.WithLabelValues(rep.Stage).Set(float64(finished.Unix()))
}

// WriteFile writes the current metrics to path atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
