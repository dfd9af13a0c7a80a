// Package metrics provides the Prometheus collector for the orchestration
// engine. This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector gathers engine execution metrics. A nil *Collector is valid:
// every method is a no-op on it, so components can carry an optional
// collector without nil checks at call sites.
type Collector struct {
	workflowsStarted    prometheus.Counter
	workflowsFinished   *prometheus.CounterVec
	workflowDuration    prometheus.Histogram
	stageExecutions     *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	classifications     *prometheus.CounterVec
	snapshotSaveFailure prometheus.Counter
}

// NewCollector registers the engine metrics on reg (the default registerer
// when reg is nil) under the given namespace.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		workflowsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_started_total",
			Help:      "Total number of workflow runs started",
		}),
		workflowsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_finished_total",
			Help:      "Total number of workflow runs finished, by terminal status",
		}, []string{"status"}),
		workflowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "End-to-end workflow duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		stageExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of stage executions, by stage and terminal status",
		}, []string{"stage", "status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage handler duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_classifications_total",
			Help:      "Total number of task classifications, by resulting task type",
		}, []string{"task_type"}),
		snapshotSaveFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_save_failures_total",
			Help:      "Total number of failed workflow snapshot writes",
		}),
	}
}

// WorkflowStarted counts a run start.
func (c *Collector) WorkflowStarted() {
	if c == nil {
		return
	}
	c.workflowsStarted.Inc()
}

// WorkflowFinished counts a run finish and observes its duration.
func (c *Collector) WorkflowFinished(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.workflowsFinished.WithLabelValues(status).Inc()
	c.workflowDuration.Observe(duration.Seconds())
}

// StageFinished counts a stage reaching a terminal status.
func (c *Collector) StageFinished(stage, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stageExecutions.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// Classified counts a classification decision.
func (c *Collector) Classified(taskType string) {
	if c == nil {
		return
	}
	c.classifications.WithLabelValues(taskType).Inc()
}

// SnapshotSaveFailed counts a failed snapshot write.
func (c *Collector) SnapshotSaveFailed() {
	if c == nil {
		return
	}
	c.snapshotSaveFailure.Inc()
}
