package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/cuemby/modelctl/pkg/config"
	"github.com/cuemby/modelctl/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProfiles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeProfiles(&buf, config.DefaultCatalog().Profiles()))

	out := buf.String()
	assert.Contains(t, out, "MODEL")
	for _, model := range []string{"llama-7b", "llama-13b", "llama-70b", "stable-diffusion", "code-llama"} {
		assert.Contains(t, out, model)
	}
}

func TestRunResult(t *testing.T) {
	tests := []struct {
		name string
		run  storage.RunRecord
		want string
	}{
		{"clean", storage.RunRecord{Succeeded: true}, "succeeded"},
		{"warnings", storage.RunRecord{Succeeded: true, Warnings: 2}, "succeeded (2 warning(s))"},
		{"failed", storage.RunRecord{FailedStage: "rollout"}, "failed at rollout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runResult(&tt.run))
		})
	}
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	err := writeRuns(&buf, []*storage.RunRecord{{
		ID:          "run-1",
		ModelType:   "llama-7b",
		Environment: "staging",
		Namespace:   "ai-inference",
		Succeeded:   true,
		StartedAt:   time.Now(),
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "RUN ID")
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "llama-7b")
}

func TestRootFlags(t *testing.T) {
	for _, name := range []string{"model-type", "namespace", "environment", "dry-run", "verbose", "timeout", "set", "output"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, config.DefaultTimeoutSeconds, func() int {
		v, err := rootCmd.Flags().GetInt("timeout")
		require.NoError(t, err)
		return v
	}())
}

func TestShowRelease(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for _, runID := range []string{"run-1", "run-2"} {
		_, err := store.RecordRelease(&storage.ReleaseRecord{
			Name:        "llama-7b-staging",
			Namespace:   "ai-inference",
			ModelType:   "llama-7b",
			Environment: "staging",
			LastRunID:   runID,
			UpdatedAt:   time.Now(),
		})
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, showRelease(&buf, store, "ai-inference", "llama-7b-staging"))
	assert.Contains(t, buf.String(), "llama-7b-staging")
	assert.Regexp(t, `Revision:\s+2`, buf.String())
	assert.Regexp(t, `Last run:\s+run-2`, buf.String())

	err = showRelease(&buf, store, "other", "llama-7b-staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not recorded in namespace other")
}
