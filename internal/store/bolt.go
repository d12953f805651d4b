package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"

	"github.com/ThalitaPinheiro/defacto/internal/spec"
)

var documentsBucket = []byte("documents")

// BoltBackend keeps documents in a bolt database, one key per document.
type BoltBackend struct {
	db  *bolt.DB
	key []byte
}

// NewBolt opens (or creates) the database at path and binds the backend to
// the document stored under key.
func NewBolt(path, key string) (*BoltBackend, error) {
	if key == "" {
		return nil, fmt.Errorf("store: bolt document key is empty")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt database %s: %w", path, err)
	}
	return &BoltBackend{db: db, key: []byte(key)}, nil
}

func (b *BoltBackend) Load() (*spec.Document, error) {
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(documentsBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(b.key); v != nil {
			// v is only valid for the life of the transaction.
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: read bolt document: %w", err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return spec.Parse(raw, string(b.key))
}

func (b *BoltBackend) Save(doc *spec.Document) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(documentsBucket)
		if err != nil {
			return err
		}
		return bucket.Put(b.key, value)
	})
}

// Close the database and release the file lock.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}
