package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cuemby/modelctl/pkg/types"
	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/util/validation"
)

// IssueCode classifies a violated input constraint
type IssueCode string

const (
	InvalidModelType   IssueCode = "InvalidModelType"
	InvalidEnvironment IssueCode = "InvalidEnvironment"
	InvalidNamespace   IssueCode = "InvalidNamespace"
	InvalidTimeout     IssueCode = "InvalidTimeout"
)

// Issue is one violated constraint
type Issue struct {
	Code    IssueCode
	Message string
}

// ValidationError aggregates every violated input constraint
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	msgs := lo.Map(e.Issues, func(i Issue, _ int) string {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	})
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add records an issue
func (e *ValidationError) Add(code IssueCode, format string, args ...any) {
	e.Issues = append(e.Issues, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Has reports whether an issue with code was recorded
func (e *ValidationError) Has(code IssueCode) bool {
	return lo.ContainsBy(e.Issues, func(i Issue) bool { return i.Code == code })
}

// OrNil returns nil when no issue was recorded
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// MissingProfileError reports a valid model type with no catalog entry.
// This is a programming error in the catalog, not bad user input.
type MissingProfileError struct {
	ModelType types.ModelType
}

func (e *MissingProfileError) Error() string {
	return fmt.Sprintf("no deployment profile for model type %s", e.ModelType)
}

// Params is the raw invocation parameter set
type Params struct {
	ModelType      string
	Namespace      string
	Environment    string
	DryRun         bool
	Verbose        bool
	TimeoutSeconds int
}

// Resolver validates raw parameters and resolves the model profile
type Resolver struct {
	catalog *Catalog
}

// NewResolver creates a resolver over catalog
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// MaxTimeoutSeconds is the largest timeout whose duration fits in a time.Duration
const MaxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// Resolve validates p and returns the immutable request with its profile.
// Every violated constraint is reported, not only the first.
func (r *Resolver) Resolve(p Params) (types.DeploymentRequest, types.ModelProfile, error) {
	verr := &ValidationError{}

	model := types.ModelType(p.ModelType)
	if !model.Valid() {
		verr.Add(InvalidModelType, "model type %q is not one of %s", p.ModelType, joinEnum(types.ModelTypes))
	}

	env := types.Environment(p.Environment)
	if !env.Valid() {
		verr.Add(InvalidEnvironment, "environment %q is not one of %s", p.Environment, joinEnum(types.Environments))
	}

	namespace := p.Namespace
	if errs := validation.IsDNS1123Label(namespace); len(errs) > 0 {
		verr.Add(InvalidNamespace, "namespace %q: %s", p.Namespace, strings.Join(errs, ", "))
	}

	switch {
	case p.TimeoutSeconds <= 0:
		verr.Add(InvalidTimeout, "timeout must be greater than zero, got %d", p.TimeoutSeconds)
	case int64(p.TimeoutSeconds) > MaxTimeoutSeconds:
		verr.Add(InvalidTimeout, "timeout must be at most %d seconds, got %d", MaxTimeoutSeconds, p.TimeoutSeconds)
	}

	if err := verr.OrNil(); err != nil {
		return types.DeploymentRequest{}, types.ModelProfile{}, err
	}

	profile, ok := r.catalog.Profile(model)
	if !ok {
		return types.DeploymentRequest{}, types.ModelProfile{}, &MissingProfileError{ModelType: model}
	}

	req := types.DeploymentRequest{
		ModelType:      model,
		Namespace:      namespace,
		Environment:    env,
		DryRun:         p.DryRun,
		Verbose:        p.Verbose,
		TimeoutSeconds: p.TimeoutSeconds,
	}
	return req, profile, nil
}

func joinEnum[T ~string](values []T) string {
	return strings.Join(lo.Map(values, func(v T, _ int) string { return string(v) }), ", ")
}
