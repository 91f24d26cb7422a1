/*
Package types defines the core data model shared by every modelctl package.

The types here are plain values with no behavior beyond small validity
helpers. They describe what is being deployed (ModelType, Environment,
DeploymentRequest), how it is deployed (ModelProfile), what the cluster
looked like when it was audited (ResourceSnapshot), and how far the
pipeline got (StageName, StageStatus, Severity).

# Lifecycle

	DeploymentRequest  built once by config.Resolver, never mutated
	ModelProfile       loaded from the embedded catalog at process start
	ResourceSnapshot   produced once per run by the resource audit
	StageStatus        pending -> running -> succeeded | failed | skipped-dry-run

# Closed Enumerations

ModelType and Environment are closed sets. Use Valid to test membership;
ModelTypes and Environments list the members in their canonical order,
which is also the order used by the profile catalog and help text.
*/
package types
