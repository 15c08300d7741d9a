// Package storage keeps the experiment history of deslab in a BoltDB file.
// It holds one record per experiment run and metadata about the datasets the
// runs were made on, so past results can be listed and compared.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	dbFile = "deslab.db"

	runsBucket     = "runs"     // run records keyed by start time and ID
	datasetsBucket = "datasets" // dataset metadata keyed by name
)

// ErrNotFound is returned when a run or dataset does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store provides persistent storage for run history using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the database in dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(datasetsBucket)); err != nil {
			return fmt.Errorf("create datasets bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// MethodResult is the outcome of one selection method in a run.
type MethodResult struct {
	Name           string  `json:"name"`
	Accuracy       float64 `json:"accuracy"`
	FitSeconds     float64 `json:"fit_seconds"`
	PredictSeconds float64 `json:"predict_seconds"`
}

// RunRecord describes a finished experiment run.
type RunRecord struct {
	ID           string            `json:"id"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
	Dataset      string            `json:"dataset"`
	Samples      int               `json:"samples"`
	Features     int               `json:"features"`
	Classes      int               `json:"classes"`
	PoolSize     int               `json:"pool_size"`
	PoolAccuracy float64           `json:"pool_accuracy"`
	Results      []MethodResult    `json:"results"`
	Params       map[string]string `json:"params,omitempty"`
}

// runKey orders runs by start time; the ID keeps keys unique.
func runKey(started time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", started.UnixNano(), id))
}

// SaveRun stores rec, assigning an ID and start time when they are empty.
// It returns the stored record.
func (s *Store) SaveRun(rec RunRecord) (RunRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	rec.StartedAt = rec.StartedAt.UTC()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return b.Put(runKey(rec.StartedAt, rec.ID), data)
	})
	return rec, err
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	var rec RunRecord
	suffix := []byte("_" + id)
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !bytes.HasSuffix(k, suffix) {
				continue
			}
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", id, err)
			}
			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return RunRecord{}, err
	}
	if !found {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, rec)
		}
		return nil
	})

	return runs, err
}

// RunsBetween returns the runs started within [start, end], oldest first.
func (s *Store) RunsBetween(start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d~", end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			runs = append(runs, rec)
		}
		return nil
	})

	return runs, err
}
