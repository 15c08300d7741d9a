package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// DatasetRecord describes a dataset an experiment ran on.
type DatasetRecord struct {
	Name     string    `json:"name"`
	Source   string    `json:"source"` // file path, URL or "synthetic"
	Rows     int       `json:"rows"`
	Features []string  `json:"features"`
	Classes  []string  `json:"classes"`
	SeenAt   time.Time `json:"seen_at"`
}

// StoreDataset records dataset metadata, replacing any previous record with
// the same name.
func (s *Store) StoreDataset(record DatasetRecord) error {
	if record.Name == "" {
		return fmt.Errorf("dataset record needs a name")
	}
	if record.SeenAt.IsZero() {
		record.SeenAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(datasetsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal dataset record: %w", err)
		}
		return b.Put([]byte(record.Name), data)
	})
}

// GetDataset returns the metadata stored for name.
func (s *Store) GetDataset(name string) (DatasetRecord, error) {
	var record DatasetRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(datasetsBucket)).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("dataset %s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(v, &record)
	})
	return record, err
}
