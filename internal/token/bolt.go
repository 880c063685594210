package token

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("storectl")

// BoltPersister stores values in a local bbolt file. It is the fallback for
// hosts without a usable keychain (CI runners, containers).
type BoltPersister struct {
	db *bbolt.DB
}

var _ Persister = (*BoltPersister)(nil)

// OpenBoltPersister opens (or creates) the bbolt file at path
func OpenBoltPersister(path string) (*BoltPersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token bucket: %w", err)
	}

	return &BoltPersister{db: db}, nil
}

// Close closes the underlying bbolt database
func (b *BoltPersister) Close() error {
	return b.db.Close()
}

func (b *BoltPersister) Get(key string) (string, error) {
	var value string
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(boltBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (b *BoltPersister) Set(key, value string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
}

func (b *BoltPersister) Remove(key string) error {
	// bbolt's Delete is a no-op for missing keys
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}
