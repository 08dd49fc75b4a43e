package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSelections = []byte("selections")

// Store persists selection decisions to a bbolt database so a
// restart does not re-sniff every previously opened file. Entries
// carry the program revision they were made against; stale entries
// are rejected on read by the catalog, so the store never has to be
// perfectly current.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (or creates) the selection database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSelections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the persisted selection for filePath.
func (s *Store) Get(filePath string) (selection, bool) {
	var entry selection
	found := false

	_ = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSelections).Get([]byte(filePath))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil // ignore corrupt entries
		}
		found = true
		return nil
	})

	return entry, found
}

// Put records the selection for filePath.
func (s *Store) Put(filePath string, entry selection) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSelections).Put([]byte(filePath), data)
	})
}

// Delete removes the selection for filePath, if any.
func (s *Store) Delete(filePath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSelections).Delete([]byte(filePath))
	})
}

// DeleteByProgram removes every selection that referenced
// programPath. Used when a parser program changes or disappears.
func (s *Store) DeleteByProgram(programPath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSelections)

		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var entry selection
			if json.Unmarshal(v, &entry) == nil && entry.ProgramPath == programPath {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
