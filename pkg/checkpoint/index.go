package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketCheckpoints = "checkpoints"

// Record is the structured resume sidecar for one source fingerprint. It
// carries the true segment-level progress that the prose checkpoint file
// cannot express, so restarts skip segments that are already covered.
type Record struct {
	Path         string    `json:"path"`
	LastEndSec   float64   `json:"last_end_sec"`
	SegmentsDone int       `json:"segments_done"`
	Completed    bool      `json:"completed"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Index is a BoltDB store mapping fingerprints to checkpoint records.
type Index struct {
	db *bolt.DB
}

// OpenIndex opens (or creates) the resume index database.
func OpenIndex(dbPath string) (*Index, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open resume index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketCheckpoints))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create checkpoints bucket: %w", err)
	}

	return &Index{db: db}, nil
}

// Get returns the record for a fingerprint, or nil when none exists or the
// recorded checkpoint file has since disappeared (stale records are
// dropped so the caller falls back to the directory scan).
func (ix *Index) Get(fp Fingerprint) (*Record, error) {
	var record *Record
	err := ix.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketCheckpoints))
		if bucket == nil {
			return nil
		}
		value := bucket.Get([]byte(fp.Key()))
		if value == nil {
			return nil
		}
		var r Record
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("failed to decode resume record: %w", err)
		}
		record = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if record != nil {
		if _, statErr := os.Stat(record.Path); statErr != nil {
			_ = ix.Delete(fp)
			return nil, nil
		}
	}

	return record, nil
}

// Put stores or replaces the record for a fingerprint.
func (ix *Index) Put(fp Fingerprint, record *Record) error {
	record.UpdatedAt = time.Now()
	return ix.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketCheckpoints))
		if bucket == nil {
			return fmt.Errorf("checkpoints bucket not found")
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode resume record: %w", err)
		}
		return bucket.Put([]byte(fp.Key()), data)
	})
}

// Delete removes the record for a fingerprint.
func (ix *Index) Delete(fp Fingerprint) error {
	return ix.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketCheckpoints))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(fp.Key()))
	})
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}
