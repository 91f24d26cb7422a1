package release

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"dario.cat/mergo"
	"emperror.dev/errors"
	"github.com/cuemby/modelctl/pkg/types"
	"github.com/ettle/strcase"
	"github.com/huandu/xstrings"
	"github.com/mitchellh/hashstructure/v2"
	"k8s.io/apimachinery/pkg/util/validation"
)

// maxNameLength is the longest release name the release manager accepts
const maxNameLength = 53

// Override keys set on every release
const (
	KeyModelType   = "model.type"
	KeyVariant     = "model.variant"
	KeyEnvironment = "environment"
	KeyMemory      = "resources.limits.memory"
)

// Spec is a declarative release request
type Spec struct {
	Name       string
	Chart      string
	Namespace  string
	ValuesFile string
	Overrides  map[string]string
	Timeout    time.Duration
	DryRun     bool

	// Wait makes helm block until the workload is ready. BuildSpec leaves
	// it unset; rollout convergence is polled by the caller.
	Wait bool

	// DefaultValues is set when no environment-specific values file exists
	// and the default values file was used instead
	DefaultValues bool `hash:"ignore"`
}

// OverrideList returns the overrides as sorted key=value pairs
func (s Spec) OverrideList() []string {
	keys := make([]string, 0, len(s.Overrides))
	for k := range s.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+s.Overrides[k])
	}
	return pairs
}

// Fingerprint hashes the inputs that define the release content. Two
// submissions with equal fingerprints render the same release.
func (s Spec) Fingerprint() (string, error) {
	h, err := hashstructure.Hash(struct {
		Name       string
		Chart      string
		Namespace  string
		ValuesFile string
		Overrides  map[string]string
	}{s.Name, s.Chart, s.Namespace, s.ValuesFile, s.Overrides}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", errors.Wrap(err, "hash release spec")
	}
	return strconv.FormatUint(h, 16), nil
}

// Options carry the installation-specific inputs of BuildSpec
type Options struct {
	// ChartDir holds one chart directory per profile chart
	ChartDir string

	// ValuesDir holds values.yaml and values-<environment>.yaml; defaults
	// to ChartDir
	ValuesDir string

	// AcceleratorResource is the resource name the accelerator limit is set on
	AcceleratorResource string

	// EnvironmentOverrides are merged over the profile overrides
	EnvironmentOverrides map[types.Environment]map[string]string

	// Extra overrides are applied last
	Extra map[string]string
}

// DefaultEnvironmentOverrides are the built-in per-environment parameters
func DefaultEnvironmentOverrides() map[types.Environment]map[string]string {
	return map[types.Environment]map[string]string{
		types.EnvironmentDev:        {"replicaCount": "1", "autoscaling.enabled": "false"},
		types.EnvironmentStaging:    {"replicaCount": "1", "autoscaling.enabled": "false"},
		types.EnvironmentProduction: {"replicaCount": "2", "autoscaling.enabled": "true"},
	}
}

// ReleaseName renders the profile's release name template
func ReleaseName(req types.DeploymentRequest, profile types.ModelProfile) (string, error) {
	tmpl, err := template.New("release").Option("missingkey=error").Parse(profile.ReleaseName)
	if err != nil {
		return "", fmt.Errorf("parse release name template: %w", err)
	}

	var buf bytes.Buffer
	data := struct {
		ModelType   types.ModelType
		Environment types.Environment
		Namespace   string
	}{req.ModelType, req.Environment, req.Namespace}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render release name: %w", err)
	}

	name := buf.String()
	if len(name) > maxNameLength {
		return "", fmt.Errorf("release name %q exceeds %d characters", name, maxNameLength)
	}
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return "", fmt.Errorf("release name %q: %s", name, strings.Join(errs, ", "))
	}
	return name, nil
}

// BuildSpec derives the release request for a resolved deployment. The
// same model type and environment always yield the same release name, so
// resubmission upgrades in place.
func BuildSpec(req types.DeploymentRequest, profile types.ModelProfile, opts Options) (Spec, error) {
	name, err := ReleaseName(req, profile)
	if err != nil {
		return Spec{}, err
	}

	overrides := map[string]string{
		KeyModelType:   string(req.ModelType),
		KeyEnvironment: string(req.Environment),
	}
	for _, feature := range profile.Features {
		overrides[strcase.ToCamel(feature)+".enabled"] = "true"
	}
	if profile.Variant != "" {
		overrides[KeyVariant] = profile.Variant
	}
	if profile.Resources.Memory != "" {
		overrides[KeyMemory] = profile.Resources.Memory
	}
	if profile.Resources.Accelerators > 0 && opts.AcceleratorResource != "" {
		overrides[AcceleratorKey(opts.AcceleratorResource)] = strconv.Itoa(profile.Resources.Accelerators)
	}

	if env, ok := opts.EnvironmentOverrides[req.Environment]; ok {
		if err := mergo.Merge(&overrides, env, mergo.WithOverride); err != nil {
			return Spec{}, fmt.Errorf("merge %s overrides: %w", req.Environment, err)
		}
	}
	if len(opts.Extra) > 0 {
		if err := mergo.Merge(&overrides, opts.Extra, mergo.WithOverride); err != nil {
			return Spec{}, fmt.Errorf("merge extra overrides: %w", err)
		}
	}

	valuesDir := opts.ValuesDir
	if valuesDir == "" {
		valuesDir = opts.ChartDir
	}
	valuesFile, defaulted := ValuesFile(valuesDir, req.Environment)

	return Spec{
		Name:          name,
		Chart:         filepath.Join(opts.ChartDir, profile.Chart),
		Namespace:     req.Namespace,
		ValuesFile:    valuesFile,
		Overrides:     overrides,
		Timeout:       req.Timeout(),
		DryRun:        req.DryRun,
		DefaultValues: defaulted,
	}, nil
}

// AcceleratorKey returns the override key for an accelerator limit. Dots
// in the resource name are escaped so they are not read as nesting.
func AcceleratorKey(resource string) string {
	return "resources.limits." + strings.ReplaceAll(resource, ".", `\.`)
}

// ValuesFile returns values-<env>.yaml under dir when present, otherwise
// values.yaml (or "" when that is absent too). defaulted reports that the
// environment-specific file was missing.
func ValuesFile(dir string, env types.Environment) (path string, defaulted bool) {
	specific := filepath.Join(dir, fmt.Sprintf("values-%s.yaml", env))
	if _, err := os.Stat(specific); err == nil {
		return specific, false
	}

	fallback := filepath.Join(dir, "values.yaml")
	if _, err := os.Stat(fallback); err == nil {
		return fallback, true
	}
	return "", true
}

// ParseSetFlags parses repeated key=value arguments
func ParseSetFlags(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, sep, value := xstrings.Partition(v, "=")
		key = strings.TrimSpace(key)
		if sep == "" || key == "" {
			return nil, fmt.Errorf("invalid override %q, expected key=value", v)
		}
		out[key] = value
	}
	return out, nil
}
