package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// RunRecord is the persisted summary of one orchestrator run
type RunRecord struct {
	ID          string    `json:"id"`
	ModelType   string    `json:"modelType"`
	Environment string    `json:"environment"`
	Namespace   string    `json:"namespace"`
	DryRun      bool      `json:"dryRun"`
	Succeeded   bool      `json:"succeeded"`
	FailedStage string    `json:"failedStage,omitempty"`
	Error       string    `json:"error,omitempty"`
	Warnings    int       `json:"warnings"`
	LogPath     string    `json:"logPath,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`

	// Report is the full outcome report as JSON
	Report json.RawMessage `json:"report,omitempty"`
}

// ReleaseRecord is the ledger entry of one release name
type ReleaseRecord struct {
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace"`
	ModelType   string    `json:"modelType"`
	Environment string    `json:"environment"`
	Chart       string    `json:"chart"`
	Fingerprint string    `json:"fingerprint"`
	Revision    int       `json:"revision"`
	LastRunID   string    `json:"lastRunId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store defines the interface for run history storage
type Store interface {
	// Runs
	SaveRun(run *RunRecord) error
	GetRun(id string) (*RunRecord, error)
	ListRuns(limit int) ([]*RunRecord, error)

	// Releases. RecordRelease upserts by name and increments the revision.
	RecordRelease(release *ReleaseRecord) (*ReleaseRecord, error)
	GetRelease(namespace, name string) (*ReleaseRecord, error)
	ListReleases() ([]*ReleaseRecord, error)

	// Utility
	Close() error
}
