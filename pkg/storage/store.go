// Package storage provides BoltDB-backed local persistence shared by the
// Vault Indexer's side table, the Peer Node's blob store, and the
// Directory Relay device id, using a single embedded database with one
// bucket per concern.
package storage

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Store is a single-file BoltDB database holding one or more named
// buckets. Components open their own bucket rather than their own file,
// so a single fsync-backed database backs all of a device's local state.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the BoltDB database at
// <dataDir>/<name>.
func Open(dataDir, name string) (*Store, error) {
	path := filepath.Join(dataDir, name)
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bucket returns a handle scoped to the named bucket, creating it if it
// does not yet exist.
func (s *Store) Bucket(name string) (*Bucket, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return &Bucket{db: s.db, name: []byte(name)}, nil
}

// Bucket is a handle to a single named bucket within a Store.
type Bucket struct {
	db   *bolt.DB
	name []byte
}

// Put writes value under key, overwriting any existing entry.
func (b *Bucket) Put(key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Put([]byte(key), value)
	})
}

// Get returns the value stored under key, or (nil, false) if absent.
// The returned slice is a copy and safe to retain after the call.
func (b *Bucket) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.name).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (b *Bucket) Delete(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Delete([]byte(key))
	})
}

// ForEach calls fn for every key/value pair currently in the bucket, in
// key order. fn must not retain the byte slices it receives.
func (b *Bucket) ForEach(fn func(key, value []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).ForEach(fn)
	})
}
