/*
Package storage provides BoltDB-backed persistence for modelctl's run history
and release ledger.

Every orchestrator run is recorded with its full outcome report, and every
submitted release is tracked by name so that repeated deployments of the same
model and environment show up as revisions of one release rather than as new
releases.

# Architecture

	┌──────────────────── BOLTDB STORAGE ────────────────────┐
	│                                                          │
	│  BoltStore                                               │
	│    File: <stateDir>/modelctl.db                          │
	│                                                          │
	│  Buckets                                                 │
	│    runs      <startedAt UTC>/<run id>  -> RunRecord      │
	│    releases  <namespace>/<name>        -> ReleaseRecord  │
	│                                                          │
	│  Values are JSON. Run keys sort by start time so the     │
	│  newest runs are read with a reverse cursor.             │
	└──────────────────────────────────────────────────────────┘

# Release Ledger

RecordRelease is an upsert keyed by namespace and release name:

	first submission   -> Revision 1, CreatedAt = UpdatedAt
	later submissions  -> Revision n+1, CreatedAt preserved

Dry-run submissions are not recorded.

# Usage

	store, err := storage.NewBoltStore("./.modelctl")
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(10)

# Concurrency

bbolt allows one writer per file. The store is opened with a one second lock
timeout so a second concurrent modelctl process fails fast instead of
blocking.
*/
package storage
