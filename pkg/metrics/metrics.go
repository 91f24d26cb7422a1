package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every modelctl metric. It is separate from the default
// registry so textfile exports only carry run metrics.
var Registry = prometheus.NewRegistry()

var (
	// Stage metrics
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelctl_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage"},
	)

	StageResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelctl_stage_results_total",
			Help: "Pipeline stage results by stage and status",
		},
		[]string{"stage", "status"},
	)

	StageWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelctl_stage_warnings_total",
			Help: "Non-fatal findings by stage and kind",
		},
		[]string{"stage", "kind"},
	)

	// Run metrics
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelctl_run_duration_seconds",
			Help:    "Whole pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelctl_runs_total",
			Help: "Pipeline runs by model type, environment and result",
		},
		[]string{"model_type", "environment", "result"},
	)

	// Cluster capacity observed by the resource audit
	AcceleratorNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelctl_accelerator_nodes",
			Help: "Accelerator-capable nodes observed by the last audit",
		},
	)

	AvailableAccelerators = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelctl_available_accelerators",
			Help: "Unallocated accelerator units observed by the last audit",
		},
	)

	// Rollout metrics
	RolloutPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelctl_rollout_polls_total",
			Help: "Rollout status polls",
		},
	)
)

func init() {
	// Register all metrics
	Registry.MustRegister(StageDuration)
	Registry.MustRegister(StageResults)
	Registry.MustRegister(StageWarnings)
	Registry.MustRegister(RunDuration)
	Registry.MustRegister(RunsTotal)
	Registry.MustRegister(AcceleratorNodes)
	Registry.MustRegister(AvailableAccelerators)
	Registry.MustRegister(RolloutPolls)
	Registry.MustRegister(collectors.NewBuildInfoCollector())
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for pickup by a node exporter textfile collector
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
