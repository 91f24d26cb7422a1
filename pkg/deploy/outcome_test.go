package deploy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/modelctl/pkg/cluster"
	"github.com/cuemby/modelctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		snapshot types.ResourceSnapshot
		verdict  types.Verdict
		kind     Kind
	}{
		{"sufficient", types.ResourceSnapshot{GPUNodeCount: 3, AvailableAccelerators: 2, StorageClassCount: 1}, types.VerdictOK, ""},
		{"no nodes", types.ResourceSnapshot{GPUNodeCount: 0, AvailableAccelerators: 0, StorageClassCount: 1}, types.VerdictFatal, KindNoAcceleratorCapacity},
		{"no nodes no storage", types.ResourceSnapshot{}, types.VerdictFatal, KindNoAcceleratorCapacity},
		{"no storage", types.ResourceSnapshot{GPUNodeCount: 1, AvailableAccelerators: 1}, types.VerdictFatal, KindNoStorageBackend},
		{"saturated", types.ResourceSnapshot{GPUNodeCount: 2, StorageClassCount: 1}, types.VerdictWarn, KindAcceleratorsSaturated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, finding := Classify(tt.snapshot)
			assert.Equal(t, tt.verdict, verdict)
			if tt.kind == "" {
				assert.Nil(t, finding)
				return
			}
			require.NotNil(t, finding)
			assert.Equal(t, tt.kind, finding.Kind)
			assert.Equal(t, tt.verdict == types.VerdictFatal, finding.Fatal())
		})
	}
}

func TestSnapshot(t *testing.T) {
	s := Snapshot([]cluster.Node{
		{Name: "a", AllocatableAccelerators: 4, AllocatedAccelerators: 1},
		{Name: "b", AllocatableAccelerators: 2, AllocatedAccelerators: 5},
	}, []string{"gp3", "standard"})

	assert.Equal(t, types.ResourceSnapshot{GPUNodeCount: 2, AvailableAccelerators: 3, StorageClassCount: 2}, s)
}

func TestKindSeverity(t *testing.T) {
	warnings := []Kind{KindAcceleratorsSaturated, KindNoHealthyEndpoints, KindRouteNotFound, KindEnvironmentOverridesMissing}
	for _, k := range warnings {
		assert.Equal(t, types.SeverityWarning, k.Severity(), string(k))
	}

	fatal := []Kind{
		KindValidation, KindMissingTool, KindNotAuthenticated, KindNoAcceleratorCapacity, KindNoStorageBackend,
		KindNamespaceProvisionFailed, KindReleaseSubmissionFailed, KindRolloutTimeout, KindHealthCheckFailed, KindInternal,
	}
	for _, k := range fatal {
		assert.Equal(t, types.SeverityFatal, k.Severity(), string(k))
	}
}

func TestStageError_Classification(t *testing.T) {
	cause := errors.New("connection refused")
	se := newStageError(types.StageNamespace, KindNamespaceProvisionFailed, cause, "failed to create namespace %s", "ai-inference")
	wrapped := fmt.Errorf("run: %w", se)

	assert.True(t, IsFatal(wrapped))
	assert.Equal(t, KindNamespaceProvisionFailed, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "namespace: NamespaceProvisionFailed: failed to create namespace ai-inference: connection refused", se.Error())

	warn := newStageError(types.StageHealth, KindRouteNotFound, nil, "route missing")
	assert.False(t, IsFatal(warn))

	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestStageError_JSONIncludesCause(t *testing.T) {
	se := newStageError(types.StageRelease, KindReleaseSubmissionFailed, errors.New("exit status 1"), "failed to submit release x")

	data, err := json.Marshal(se)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "ReleaseSubmissionFailed",
		"stage": "release",
		"severity": "fatal",
		"message": "failed to submit release x",
		"cause": "exit status 1"
	}`, string(data))
}

func TestOutcome_FinishedEntriesAreImmutable(t *testing.T) {
	now := time.Now()
	out := &Outcome{}

	i := out.begin(types.StageNamespace, now)
	assert.Equal(t, types.StatusRunning, out.Entries[i].Status)

	out.finish(i, types.StatusSucceeded, "created", nil, nil, now.Add(time.Second))
	out.finish(i, types.StatusFailed, "late", nil, newStageError(types.StageNamespace, KindInternal, nil, "late"), now.Add(2*time.Second))

	assert.Equal(t, types.StatusSucceeded, out.Entries[i].Status)
	assert.Equal(t, "created", out.Entries[i].Message)
	assert.Equal(t, time.Second, out.Entries[i].Duration)
	assert.Nil(t, out.Err)
}

func TestOutcome_Summary(t *testing.T) {
	req := types.DeploymentRequest{ModelType: types.ModelLlama7B, Environment: types.EnvironmentStaging}

	ok := &Outcome{Request: req}
	assert.Equal(t, "Deployment of llama-7b to staging succeeded", ok.Summary())

	warned := &Outcome{Request: req, Entries: []Entry{{
		Warnings: []*StageError{newStageError(types.StageHealth, KindRouteNotFound, nil, "route missing")},
	}}}
	assert.Equal(t, "Deployment of llama-7b to staging succeeded with 1 warning(s)", warned.Summary())

	failed := &Outcome{Request: req, Err: newStageError(types.StageRollout, KindRolloutTimeout, nil, "not ready")}
	failed.Err.Stage = types.StageRollout
	assert.Equal(t, "Deployment of llama-7b to staging failed at rollout: RolloutTimeout: not ready", failed.Summary())
	assert.Equal(t, 1, failed.ExitCode())
}

func TestOutcome_Reports(t *testing.T) {
	h := newHarness(t)
	h.cluster.ready = false
	h.cluster.logs = "OOMKilled\n"
	p := params("llama-7b", "dev", false)
	p.TimeoutSeconds = 1
	out := h.run(p)

	var text bytes.Buffer
	require.NoError(t, out.WriteText(&text))
	assert.Contains(t, text.String(), "STAGE")
	assert.Contains(t, text.String(), "resource-audit")
	assert.Contains(t, text.String(), "Failure: rollout: RolloutTimeout")
	assert.Contains(t, text.String(), "OOMKilled")

	var js bytes.Buffer
	require.NoError(t, out.WriteJSON(&js))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, out.RunID, decoded["runId"])
	assert.Len(t, decoded["entries"], 6)
}
