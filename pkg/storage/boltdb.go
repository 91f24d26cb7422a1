package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketRuns     = []byte("runs")
	bucketReleases = []byte("releases")
)

// runKeyLayout sorts lexicographically in time order
const runKeyLayout = "20060102T150405.000000000Z"

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "modelctl.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketReleases} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func runKey(run *RunRecord) []byte {
	return []byte(run.StartedAt.UTC().Format(runKeyLayout) + "/" + run.ID)
}

func releaseKey(namespace, name string) []byte {
	return []byte(namespace + "/" + name)
}

// Run operations
func (s *BoltStore) SaveRun(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return b.Put(runKey(run), data)
	})
}

func (s *BoltStore) GetRun(id string) (*RunRecord, error) {
	var run *RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		return b.ForEach(func(k, v []byte) error {
			if !strings.HasSuffix(string(k), "/"+id) {
				return nil
			}
			run = &RunRecord{}
			return json.Unmarshal(v, run)
		})
	})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *BoltStore) ListRuns(limit int) ([]*RunRecord, error) {
	var runs []*RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, &run)
		}
		return nil
	})
	return runs, err
}

// Release operations
func (s *BoltStore) RecordRelease(release *ReleaseRecord) (*ReleaseRecord, error) {
	stored := *release
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReleases)
		key := releaseKey(release.Namespace, release.Name)

		now := stored.UpdatedAt
		if now.IsZero() {
			now = time.Now()
		}
		stored.UpdatedAt = now
		stored.Revision = 1
		stored.CreatedAt = now

		if data := b.Get(key); data != nil {
			var existing ReleaseRecord
			if err := json.Unmarshal(data, &existing); err != nil {
				return err
			}
			stored.Revision = existing.Revision + 1
			stored.CreatedAt = existing.CreatedAt
		}

		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *BoltStore) GetRelease(namespace, name string) (*ReleaseRecord, error) {
	var release ReleaseRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReleases)
		data := b.Get(releaseKey(namespace, name))
		if data == nil {
			return fmt.Errorf("release %s/%s: %w", namespace, name, ErrNotFound)
		}
		return json.Unmarshal(data, &release)
	})
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (s *BoltStore) ListReleases() ([]*ReleaseRecord, error) {
	var releases []*ReleaseRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReleases)
		return b.ForEach(func(k, v []byte) error {
			var release ReleaseRecord
			if err := json.Unmarshal(v, &release); err != nil {
				return err
			}
			releases = append(releases, &release)
			return nil
		})
	})
	return releases, err
}

var _ Store = (*BoltStore)(nil)
