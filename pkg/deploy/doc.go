/*
Package deploy implements the model deployment pipeline.

An Orchestrator takes raw invocation parameters through seven stages, in a
fixed order, and records one Entry per executed stage in an Outcome:

	┌──────────────────── DEPLOYMENT PIPELINE ────────────────────┐
	│                                                               │
	│  resolve         validate input, look up the model profile    │
	│     │                                                         │
	│  prerequisites   required commands, credential, session       │
	│     │                                                         │
	│  resource-audit  accelerator nodes, free units, storage       │
	│     │                                                         │
	│  namespace       create if absent, always apply policy        │
	│     │                                                         │
	│  release         build spec, helm upgrade --install           │
	│     │                                                         │
	│  rollout         poll until converged or timed out            │
	│     │                                                         │
	│  health          resolve route, probe health path once        │
	└───────────────────────────────────────────────────────────────┘

# Findings

Every stage reports through StageError. Fatal kinds stop the pipeline at
that stage and later stages never start. Warning kinds are attached to the
stage's entry and the run still exits 0:

	Fatal:   ValidationError, MissingTool, NotAuthenticated,
	         NoAcceleratorCapacity, NoStorageBackend,
	         NamespaceProvisionFailed, ReleaseSubmissionFailed,
	         RolloutTimeout, HealthCheckFailed, Internal
	Warning: AcceleratorsSaturated, NoHealthyEndpoints, RouteNotFound,
	         EnvironmentOverridesMissing

Prerequisite failures are collected before the stage fails, so the
returned error lists every missing command at once in Causes.

# Dry Run

Read-only stages run for real. The namespace stage only checks existence,
the release stage asks the release manager to render and validate without
installing, and rollout and health have nothing to act on. Those four
stages finish as skipped-dry-run and no mutating cluster call is made.

# Rollout

The rollout stage polls RolloutStatus on a ticker until the deployment
converges or the request timeout elapses. On timeout the most recent pod
logs are fetched with a fresh deadline and attached to the failure as
Detail. A converged workload with no ready endpoints is a warning.

# Usage

	orch := deploy.New(config.NewResolver(config.DefaultCatalog()), deploy.Options{
		Cluster:  cluster.NewKube(cluster.Options{AcceleratorResource: "nvidia.com/gpu"}),
		Releases: release.NewHelm("helm"),
		ChartDir: "./helm",
	})

	out := orch.Run(ctx, config.Params{
		ModelType:      "llama-7b",
		Namespace:      "ai-inference",
		Environment:    "staging",
		TimeoutSeconds: 600,
	})
	fmt.Println(out.Summary())
	os.Exit(out.ExitCode())
*/
package deploy
