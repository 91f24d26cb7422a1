package types

import (
	"time"

	"github.com/samber/lo"
)

// ModelType identifies one of the supported model deployments
type ModelType string

const (
	ModelLlama7B         ModelType = "llama-7b"
	ModelLlama13B        ModelType = "llama-13b"
	ModelLlama70B        ModelType = "llama-70b"
	ModelStableDiffusion ModelType = "stable-diffusion"
	ModelCodeLlama       ModelType = "code-llama"
)

// ModelTypes lists the closed set of accepted model types, in catalog order
var ModelTypes = []ModelType{
	ModelLlama7B,
	ModelLlama13B,
	ModelLlama70B,
	ModelStableDiffusion,
	ModelCodeLlama,
}

// Valid reports whether m is a member of the closed model enum
func (m ModelType) Valid() bool {
	return lo.Contains(ModelTypes, m)
}

// Environment is the deployment target tier
type Environment string

const (
	EnvironmentDev        Environment = "dev"
	EnvironmentStaging    Environment = "staging"
	EnvironmentProduction Environment = "production"
)

// Environments lists the accepted environments
var Environments = []Environment{
	EnvironmentDev,
	EnvironmentStaging,
	EnvironmentProduction,
}

// Valid reports whether e is a known environment
func (e Environment) Valid() bool {
	return lo.Contains(Environments, e)
}

// DeploymentRequest is the resolved, validated invocation. It is built once
// by the resolver and passed by value to every stage.
type DeploymentRequest struct {
	ModelType      ModelType
	Namespace      string
	Environment    Environment
	DryRun         bool
	Verbose        bool
	TimeoutSeconds int
}

// Timeout returns the request deadline as a duration
func (r DeploymentRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ResourceOverrides are the per-model resource settings passed to the release
type ResourceOverrides struct {
	Memory       string `yaml:"memory" json:"memory"`
	Accelerators int    `yaml:"accelerators" json:"accelerators"`
}

// ModelProfile is the static, read-only deployment description of a model type
type ModelProfile struct {
	ModelType ModelType `yaml:"modelType" json:"modelType"`

	// ReleaseName is a template rendered with the model type and environment
	ReleaseName string `yaml:"releaseName" json:"releaseName"`

	// Chart is the chart directory name relative to the chart root
	Chart string `yaml:"chart" json:"chart"`

	Resources ResourceOverrides `yaml:"resources" json:"resources"`

	// Features names the sub-charts enabled for this model
	Features []string `yaml:"features" json:"features"`

	// Variant is set for models that reuse another model's base profile
	Variant string `yaml:"variant,omitempty" json:"variant,omitempty"`

	// Workload is the deployment (and service) name to monitor
	Workload string `yaml:"workload" json:"workload"`

	// Route is the external route name; models sharing a route share a family
	Route string `yaml:"route" json:"route"`
}

// ResourceSnapshot is the cluster capacity observed by the resource audit
type ResourceSnapshot struct {
	GPUNodeCount          int   `json:"gpuNodeCount"`
	AvailableAccelerators int64 `json:"availableAccelerators"`
	StorageClassCount     int   `json:"storageClassCount"`
}

// Verdict classifies a resource snapshot
type Verdict string

const (
	VerdictOK    Verdict = "ok"
	VerdictWarn  Verdict = "warn"
	VerdictFatal Verdict = "fatal"
)

// StageName identifies a pipeline stage
type StageName string

const (
	StageResolve       StageName = "resolve"
	StagePrerequisites StageName = "prerequisites"
	StageResourceAudit StageName = "resource-audit"
	StageNamespace     StageName = "namespace"
	StageRelease       StageName = "release"
	StageRollout       StageName = "rollout"
	StageHealth        StageName = "health"
)

// Stages lists every stage in execution order
var Stages = []StageName{
	StageResolve,
	StagePrerequisites,
	StageResourceAudit,
	StageNamespace,
	StageRelease,
	StageRollout,
	StageHealth,
}

// StageStatus is the lifecycle state of a stage entry
type StageStatus string

const (
	StatusPending       StageStatus = "pending"
	StatusRunning       StageStatus = "running"
	StatusSucceeded     StageStatus = "succeeded"
	StatusFailed        StageStatus = "failed"
	StatusSkippedDryRun StageStatus = "skipped-dry-run"
)

// Terminal reports whether no further transition is allowed
func (s StageStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkippedDryRun:
		return true
	}
	return false
}

// Severity grades an error or finding
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityFatal   Severity = "fatal"
)
