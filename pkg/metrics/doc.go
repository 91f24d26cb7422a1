/*
Package metrics provides Prometheus metrics for modelctl runs.

modelctl is a short-lived process, so nothing is scraped. Metrics are
collected in a dedicated Registry during a run and, when --metrics-file is
set, written once at exit in the Prometheus text format for a node exporter
textfile collector to pick up.

# Metrics

	modelctl_stage_duration_seconds{stage}             histogram
	modelctl_stage_results_total{stage,status}         counter
	modelctl_stage_warnings_total{stage,kind}          counter
	modelctl_runs_total{model_type,environment,result} counter
	modelctl_accelerator_nodes                         gauge
	modelctl_available_accelerators                    gauge
	modelctl_rollout_polls_total                       counter

# Timing

	timer := metrics.NewTimer()
	err := stage.Run(ctx)
	timer.ObserveDurationVec(metrics.StageDuration, string(stage.Name()))
*/
package metrics
