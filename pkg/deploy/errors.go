package deploy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuemby/modelctl/pkg/types"
)

// Kind classifies a stage finding
type Kind string

const (
	// Bad input; never reaches the cluster
	KindValidation Kind = "ValidationError"

	// Environment not ready
	KindMissingTool      Kind = "MissingTool"
	KindNotAuthenticated Kind = "NotAuthenticated"

	// Infrastructure absent
	KindNoAcceleratorCapacity Kind = "NoAcceleratorCapacity"
	KindNoStorageBackend      Kind = "NoStorageBackend"

	// Operational warnings
	KindAcceleratorsSaturated       Kind = "AcceleratorsSaturated"
	KindNoHealthyEndpoints          Kind = "NoHealthyEndpoints"
	KindRouteNotFound               Kind = "RouteNotFound"
	KindEnvironmentOverridesMissing Kind = "EnvironmentOverridesMissing"

	// Stage execution failures
	KindNamespaceProvisionFailed Kind = "NamespaceProvisionFailed"
	KindReleaseSubmissionFailed  Kind = "ReleaseSubmissionFailed"
	KindRolloutTimeout           Kind = "RolloutTimeout"
	KindHealthCheckFailed        Kind = "HealthCheckFailed"

	// Programming or collaborator errors outside the taxonomy
	KindInternal Kind = "Internal"
)

// Severity returns the default severity of a kind
func (k Kind) Severity() types.Severity {
	switch k {
	case KindAcceleratorsSaturated, KindNoHealthyEndpoints, KindRouteNotFound, KindEnvironmentOverridesMissing:
		return types.SeverityWarning
	}
	return types.SeverityFatal
}

// StageError is a classified stage finding. Fatal findings halt the
// pipeline; warnings are attached to the stage entry and reported.
type StageError struct {
	Kind     Kind            `json:"kind"`
	Stage    types.StageName `json:"stage"`
	Severity types.Severity  `json:"severity"`
	Message  string          `json:"message"`

	// Detail carries diagnostic output such as a log excerpt or the
	// release manager's error output
	Detail string `json:"detail,omitempty"`

	// Causes lists the individual findings an aggregate error collects
	Causes []*StageError `json:"causes,omitempty"`

	Err error `json:"-"`
}

func newStageError(stage types.StageName, kind Kind, err error, format string, args ...any) *StageError {
	return &StageError{
		Kind:     kind,
		Stage:    stage,
		Severity: kind.Severity(),
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	}
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the finding halts the pipeline
func (e *StageError) Fatal() bool {
	return e.Severity == types.SeverityFatal
}

// MarshalJSON includes the wrapped error text as cause
func (e *StageError) MarshalJSON() ([]byte, error) {
	type plain StageError
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(struct {
		*plain
		Cause string `json:"cause,omitempty"`
	}{(*plain)(e), cause})
}

// IsFatal reports whether err halts the pipeline. Errors that are not
// stage findings are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Fatal()
	}
	return true
}

// KindOf returns the kind of a stage finding, or KindInternal
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
