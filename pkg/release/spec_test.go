package release

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/modelctl/pkg/config"
	"github.com/cuemby/modelctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(m types.ModelType, env types.Environment, dryRun bool) types.DeploymentRequest {
	return types.DeploymentRequest{
		ModelType:      m,
		Namespace:      "ai-inference",
		Environment:    env,
		DryRun:         dryRun,
		TimeoutSeconds: 600,
	}
}

func profile(t *testing.T, m types.ModelType) types.ModelProfile {
	t.Helper()
	p, ok := config.DefaultCatalog().Profile(m)
	require.True(t, ok)
	return p
}

func chartDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("replicaCount: 1\n"), 0o644))
	}
	return dir
}

func TestBuildSpec_LargestModelElevated(t *testing.T) {
	opts := Options{ChartDir: chartDir(t, "values.yaml"), AcceleratorResource: "nvidia.com/gpu"}

	spec, err := BuildSpec(request(types.ModelLlama70B, types.EnvironmentDev, true), profile(t, types.ModelLlama70B), opts)
	require.NoError(t, err)

	assert.Equal(t, "llama-70b-dev", spec.Name)
	assert.Equal(t, "320Gi", spec.Overrides[KeyMemory])
	assert.Equal(t, "4", spec.Overrides[`resources.limits.nvidia\.com/gpu`])
	assert.True(t, spec.DryRun)
	assert.False(t, spec.Wait)
	assert.Equal(t, 600*time.Second, spec.Timeout)
}

func TestBuildSpec_CodeVariantReusesBaseResources(t *testing.T) {
	opts := Options{ChartDir: chartDir(t), AcceleratorResource: "nvidia.com/gpu"}

	base, err := BuildSpec(request(types.ModelLlama7B, types.EnvironmentStaging, false), profile(t, types.ModelLlama7B), opts)
	require.NoError(t, err)
	code, err := BuildSpec(request(types.ModelCodeLlama, types.EnvironmentStaging, false), profile(t, types.ModelCodeLlama), opts)
	require.NoError(t, err)

	assert.Equal(t, "code", code.Overrides[KeyVariant])
	assert.NotContains(t, base.Overrides, KeyVariant)
	assert.Equal(t, base.Overrides[KeyMemory], code.Overrides[KeyMemory])
	assert.Equal(t, base.Overrides[AcceleratorKey("nvidia.com/gpu")], code.Overrides[AcceleratorKey("nvidia.com/gpu")])
	assert.NotEqual(t, base.Name, code.Name)
}

func TestBuildSpec_FeatureKeys(t *testing.T) {
	spec, err := BuildSpec(request(types.ModelStableDiffusion, types.EnvironmentProduction, false), profile(t, types.ModelStableDiffusion), Options{ChartDir: "/charts"})
	require.NoError(t, err)

	assert.Equal(t, "true", spec.Overrides["stableDiffusion.enabled"])
	assert.Equal(t, filepath.Join("/charts", "diffusion-inference"), spec.Chart)
}

func TestBuildSpec_OverridePrecedence(t *testing.T) {
	opts := Options{
		ChartDir:            chartDir(t),
		AcceleratorResource: "nvidia.com/gpu",
		EnvironmentOverrides: map[types.Environment]map[string]string{
			types.EnvironmentProduction: {"replicaCount": "3", KeyMemory: "48Gi"},
		},
		Extra: map[string]string{"replicaCount": "5"},
	}

	spec, err := BuildSpec(request(types.ModelLlama13B, types.EnvironmentProduction, false), profile(t, types.ModelLlama13B), opts)
	require.NoError(t, err)

	assert.Equal(t, "48Gi", spec.Overrides[KeyMemory])
	assert.Equal(t, "5", spec.Overrides["replicaCount"])
	assert.Equal(t, "llama-13b", spec.Overrides[KeyModelType])
}

func TestBuildSpec_SameInputsSameRelease(t *testing.T) {
	opts := Options{ChartDir: chartDir(t, "values.yaml"), AcceleratorResource: "nvidia.com/gpu"}
	req := request(types.ModelLlama7B, types.EnvironmentStaging, false)

	first, err := BuildSpec(req, profile(t, types.ModelLlama7B), opts)
	require.NoError(t, err)
	second, err := BuildSpec(req, profile(t, types.ModelLlama7B), opts)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)

	a, err := first.Fingerprint()
	require.NoError(t, err)
	b, err := second.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	second.Overrides["replicaCount"] = "9"
	c, err := second.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestValuesFile(t *testing.T) {
	tests := []struct {
		name          string
		files         []string
		wantFile      string
		wantDefaulted bool
	}{
		{"environment specific", []string{"values.yaml", "values-staging.yaml"}, "values-staging.yaml", false},
		{"fallback to default", []string{"values.yaml", "values-production.yaml"}, "values.yaml", true},
		{"nothing present", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chartDir(t, tt.files...)
			path, defaulted := ValuesFile(dir, types.EnvironmentStaging)

			if tt.wantFile == "" {
				assert.Empty(t, path)
			} else {
				assert.Equal(t, filepath.Join(dir, tt.wantFile), path)
			}
			assert.Equal(t, tt.wantDefaulted, defaulted)
		})
	}
}

func TestBuildSpec_ValuesDirOverridesChartDir(t *testing.T) {
	values := chartDir(t, "values-dev.yaml")
	spec, err := BuildSpec(request(types.ModelLlama7B, types.EnvironmentDev, false), profile(t, types.ModelLlama7B),
		Options{ChartDir: "/charts", ValuesDir: values})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(values, "values-dev.yaml"), spec.ValuesFile)
	assert.False(t, spec.DefaultValues)
}

func TestReleaseName_Invalid(t *testing.T) {
	req := request(types.ModelLlama7B, types.EnvironmentDev, false)

	_, err := ReleaseName(req, types.ModelProfile{ReleaseName: "{{ .Missing }}"})
	assert.Error(t, err)

	_, err = ReleaseName(req, types.ModelProfile{ReleaseName: "Upper_Case"})
	assert.Error(t, err)

	name, err := ReleaseName(req, types.ModelProfile{ReleaseName: "{{ .ModelType }}-{{ .Environment }}"})
	require.NoError(t, err)
	assert.Equal(t, "llama-7b-dev", name)
}

func TestParseSetFlags(t *testing.T) {
	got, err := ParseSetFlags([]string{"replicaCount=2", "image.tag=v1=beta", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"replicaCount": "2",
		"image.tag":    "v1=beta",
		"empty":        "",
	}, got)

	_, err = ParseSetFlags([]string{"novalue"})
	assert.Error(t, err)

	_, err = ParseSetFlags([]string{"=x"})
	assert.Error(t, err)
}

func TestOverrideList_Sorted(t *testing.T) {
	s := Spec{Overrides: map[string]string{"b": "2", "a": "1", "c": "3"}}
	assert.Equal(t, []string{"a=1", "b=2", "c=3"}, s.OverrideList())
}
