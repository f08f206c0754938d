// Package metrics records pipeline activity in Prometheus collectors on a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
)

const namespace = "lathe"

var _ ports.Metrics = (*Recorder)(nil)

// Recorder implements ports.Metrics.
type Recorder struct {
	registry *prometheus.Registry

	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	watchBatches  prometheus.Counter
	watchTriggers prometheus.Counter
	previewUp     prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its collectors along with build information.
func NewRecorder(version string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task outcomes by task and outcome.",
		}, []string{"task", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Build runs by mode and status.",
		}, []string{"mode", "status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Build run wall time in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		watchBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_batches_total",
			Help:      "Debounced watch batches that triggered a run.",
		}),
		watchTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_triggered_tasks_total",
			Help:      "Tasks triggered by watch batches.",
		}),
		previewUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preview_up",
			Help:      "Whether the preview server answered its last probe.",
		}),
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information of the running binary.",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)

	r.registry.MustRegister(
		r.tasksTotal,
		r.taskDuration,
		r.runsTotal,
		r.runDuration,
		r.watchBatches,
		r.watchTriggers,
		r.previewUp,
		buildInfo,
	)
	return r
}

// Registry returns the private registry the collectors live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// TaskFinished records a task outcome. Only executed tasks observe a duration.
func (r *Recorder) TaskFinished(task, outcome string, elapsed time.Duration) {
	r.tasksTotal.WithLabelValues(task, outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeFailed {
		r.taskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
	}
}

// RunFinished records a completed build run.
func (r *Recorder) RunFinished(run *domain.BuildRun) {
	r.runsTotal.WithLabelValues(string(run.Mode), string(run.Status)).Inc()
	r.runDuration.Observe(run.Duration().Seconds())
}

// WatchBatch records one watch batch.
func (r *Recorder) WatchBatch(tasks int) {
	r.watchBatches.Inc()
	r.watchTriggers.Add(float64(tasks))
}

// PreviewUp records the preview server's liveness.
func (r *Recorder) PreviewUp(up bool) {
	if up {
		r.previewUp.Set(1)
		return
	}
	r.previewUp.Set(0)
}

// Task outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeCached  = "cached"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)
